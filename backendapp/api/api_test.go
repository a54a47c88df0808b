package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))

	a := APIs{}
	r.GET("/", a.Root)
	r.GET("/health", a.Health)
	r.POST("/predict", a.Predict)
	return r
}

func do(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRootPayload(t *testing.T) {
	w := do(newRouter(nil), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Welcome to AgriShield AI Backend", body["message"])
	assert.Equal(t, "active", body["status"])
}

func TestHealthPayload(t *testing.T) {
	w := do(newRouter(nil), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestHealthIsStateless(t *testing.T) {
	r := newRouter(nil)
	// The response must not depend on prior request history.
	do(r, http.MethodGet, "/", nil)
	do(r, http.MethodPost, "/predict", nil)
	first := do(r, http.MethodGet, "/health", nil)
	second := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.JSONEq(t, `{"status":"healthy"}`, second.Body.String())
}

func TestPredictWithoutModel(t *testing.T) {
	w := do(newRouter(nil), http.MethodPost, "/predict", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var e HTTPError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "no model loaded", e.Error)
}

func TestCORSListedOrigin(t *testing.T) {
	r := newRouter([]string{"http://localhost:3000"})
	w := do(r, http.MethodGet, "/health", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSUnlistedOriginDenied(t *testing.T) {
	r := newRouter([]string{"http://localhost:3000"})
	w := do(r, http.MethodGet, "/health", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardAdmitsAnyOrigin(t *testing.T) {
	r := newRouter([]string{"http://localhost:3000", "*"})
	w := do(r, http.MethodGet, "/health", map[string]string{"Origin": "http://elsewhere.example"})
	assert.Equal(t, "http://elsewhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter([]string{"*"})
	w := do(r, http.MethodOptions, "/predict", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
