// Package api holds the backend's HTTP handlers.
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrishield/agrishield-ai/inference"
)

// APIs bundles the handlers and their dependencies. I is nil when no model
// artifact is available; the static endpoints work regardless.
type APIs struct {
	I *inference.Inference
}

// Root is the welcome/status endpoint.
func (a *APIs) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to AgriShield AI Backend",
		"status":  "active",
	})
}

// Health always reports healthy; the endpoint carries no state.
func (a *APIs) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Predict classifies an uploaded image against the loaded model.
func (a *APIs) Predict(c *gin.Context) {
	if a.I == nil {
		Error(c, http.StatusServiceUnavailable, errors.New("no model loaded"))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	var image bytes.Buffer
	if _, err := io.Copy(&image, file); err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	k, _ := strconv.Atoi(c.Query("k"))

	t0 := time.Now()
	infers, err := a.I.Infer(image.Bytes(), k)
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":        header.Filename,
		"inference":   infers,
		"elapsed(ms)": time.Since(t0).Milliseconds(),
	})
}

// CORS permits cross-origin requests from the configured allow-list. A "*"
// entry admits any origin.
func CORS(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "*")
			c.Header("Access-Control-Allow-Headers", "*")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HTTPError is the error payload of every failing endpoint.
type HTTPError struct {
	Error string `json:"error"`
}

// Error writes a JSON error response.
func Error(c *gin.Context, status int, err error) {
	c.JSON(status, HTTPError{
		Error: err.Error(),
	})
}
