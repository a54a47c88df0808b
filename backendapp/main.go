package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrishield/agrishield-ai/backendapp/api"
	"github.com/agrishield/agrishield-ai/inference"
)

// Specific dev origins plus the wildcard, matching the shipped policy.
const defaultOrigins = "http://localhost:5173,http://localhost:3000,*"

func main() {
	modelDir := flag.String("modeldir", "", "Directory holding the exported model artifact")
	flag.Parse()

	var i *inference.Inference
	if *modelDir != "" {
		var err error
		if i, err = inference.New(inference.Config{ModelDir: *modelDir}); err != nil {
			log.Fatal(err)
		}
	} else {
		log.Print("no -modeldir given, serving without a model")
	}

	origins := strings.Split(envOr("ALLOWED_ORIGINS", defaultOrigins), ",")

	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20
	r.Use(api.CORS(origins))

	a := api.APIs{I: i}
	r.GET("/", a.Root)
	r.GET("/health", a.Health)
	r.POST("/predict", a.Predict)

	server := &http.Server{
		Addr:         ":" + envOr("PORT", "8000"),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	log.Printf("listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
