// Command trainapp fine-tunes the plant-disease classifier on a
// directory-per-class image dataset and exports the model artifact.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/agrishield/agrishield-ai/training"
)

func main() {
	cfg := training.FromEnv()

	res, err := training.Run(cfg)
	if err != nil {
		if ce, ok := training.AsConfigError(err); ok {
			fmt.Fprintf(os.Stderr, "Missing dataset directory: %s\n", ce.Dir)
			fmt.Fprintf(os.Stderr, "Set %s to the root containing class subfolders.\n", ce.EnvVar)
			os.Exit(1)
		}
		log.Fatal(err)
	}

	log.Printf("model written to %s", res.ModelPath)
	log.Printf("class names written to %s (%d classes)", res.ClassNamesPath, len(res.ClassNames))
	log.Printf("best validation accuracy: %.4f", res.BestValAccuracy)
}
