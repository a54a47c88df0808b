// Package inference loads an exported model artifact and classifies
// uploaded images for the backend service.
package inference

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"github.com/agrishield/agrishield-ai/artifact"
	"github.com/agrishield/agrishield-ai/dataset"
	"github.com/agrishield/agrishield-ai/model"
	"github.com/agrishield/agrishield-ai/nn"
)

// DefaultTopK bounds multi-class results when the caller does not ask for a
// specific count.
const DefaultTopK = 5

// Config locates the model artifact: a directory holding config.yaml, the
// weights file and the class-name list.
type Config struct {
	ModelDir string
}

// Inference owns one loaded model.
type Inference struct {
	cfg    artifact.Config
	clf    *model.Classifier
	labels []string

	// The network keeps per-layer forward state, so inference is
	// serialized.
	mu sync.Mutex
}

// New loads the artifact. The class-name file order defines the mapping
// from output units to labels.
func New(c Config) (*Inference, error) {
	cfgPath := filepath.Join(c.ModelDir, "config.yaml")
	cfg, err := artifact.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	labels, err := artifact.ReadClassNames(filepath.Join(c.ModelDir, cfg.LabelsFile))
	if err != nil {
		return nil, err
	}
	if cfg.Classes != 0 && cfg.Classes != len(labels) {
		return nil, fmt.Errorf("inference: config declares %d classes but %s lists %d",
			cfg.Classes, cfg.LabelsFile, len(labels))
	}

	clf, err := model.New(len(labels), 0)
	if err != nil {
		return nil, err
	}
	weights, err := artifact.LoadWeights(filepath.Join(c.ModelDir, cfg.WeightsFile))
	if err != nil {
		return nil, err
	}
	if err := clf.Restore(weights); err != nil {
		return nil, err
	}
	clf.SetTraining(false)

	log.Printf("inference: loaded model %q (%d classes) from %s", cfg.Name, len(labels), c.ModelDir)
	return &Inference{cfg: cfg, clf: clf, labels: labels}, nil
}

// Labels returns the class names in output order.
func (i *Inference) Labels() []string {
	return append([]string(nil), i.labels...)
}

// InferLabel is one ranked prediction.
type InferLabel struct {
	Prob  float64 `json:"probability"`
	Label string  `json:"label"`
}

type sortByProb []InferLabel

func (s sortByProb) Len() int           { return len(s) }
func (s sortByProb) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s sortByProb) Less(i, j int) bool { return s[i].Prob > s[j].Prob }

// Infer decodes an uploaded image and returns the top-k predictions.
func (i *Inference) Infer(image []byte, k int) ([]InferLabel, error) {
	img, err := dataset.DecodeImage(bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	input := model.Preprocess(img)

	i.mu.Lock()
	logits, err := i.clf.Forward(input)
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}
	probs := nn.Softmax(logits)

	if len(probs.Data) != len(i.labels) {
		return nil, fmt.Errorf("inference: %d outputs for %d labels", len(probs.Data), len(i.labels))
	}

	infers := make([]InferLabel, len(i.labels))
	for idx, p := range probs.Data {
		infers[idx] = InferLabel{Prob: p, Label: i.labels[idx]}
	}
	sort.Sort(sortByProb(infers))

	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(infers) {
		k = len(infers)
	}
	return infers[:k], nil
}
