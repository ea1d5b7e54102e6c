package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"idnames-go/internal/config"
	"idnames-go/internal/contributors"
	"idnames-go/internal/controller"
	"idnames-go/internal/service"
	"idnames-go/internal/service/naming"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const javaSource = "class A {\n  int f(int limit) {\n    int total = 0;\n    for (int i = 0; i < limit; i++) {\n      total += i;\n    }\n    return total;\n  }\n}\n"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	tokenizers, err := service.NewDefaultTokenizerRegistry()
	if err != nil {
		t.Fatalf("Failed to create tokenizers: %v", err)
	}
	opts := service.DefaultRunnerOptions()
	corpora := service.NewCorpusManager(tokenizers, nil, opts, 0, zap.NewNop())

	registry := contributors.NewContributorRegistry(zap.NewNop())
	if err := registry.Register(contributors.NewCorpusContributor(corpora)); err != nil {
		t.Fatalf("Failed to register contributor: %v", err)
	}
	if err := registry.Register(contributors.NewFileContributor(opts, zap.NewNop())); err != nil {
		t.Fatalf("Failed to register contributor: %v", err)
	}

	cfg := &config.Config{Model: config.ModelConfig{InspectionThreshold: 0.001}}
	namingService := naming.NewNamingService(cfg, corpora, registry, zap.NewNop())
	return SetupRouter(controller.NewNamingController(namingService, zap.NewNop()), nil, zap.NewNop())
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_SuggestNames(t *testing.T) {
	router := newTestRouter(t)
	w := postJSON(t, router, "/api/v1/suggestNames", map[string]any{
		"path":   "A.java",
		"source": javaSource,
		"name":   "total",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response naming.SuggestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Name != "total" || response.Occurrences != 3 || response.Category != "local_variable" {
		t.Errorf("Unexpected response: %+v", response)
	}
	if len(response.Suggestions) == 0 {
		t.Errorf("Expected suggestions for a declared variable")
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Errorf("Expected a generated request id header")
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/suggestNames", map[string]any{"path": "A.java", "source": javaSource, "name": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown identifier, got %d", w.Code)
	}

	w = postJSON(t, router, "/api/v1/nameProbability", map[string]any{"path": "A.cobol", "source": "x", "name": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unsupported language, got %d", w.Code)
	}

	w = postJSON(t, router, "/api/v1/trainCorpus", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing corpus name, got %d", w.Code)
	}

	w = postJSON(t, router, "/api/v1/trainCorpus", map[string]any{"corpus": "unknown"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unconfigured corpus, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body["error"] == "" || body["details"] == "" {
		t.Errorf("Expected error and details fields, got %v", body)
	}
}

func TestRouter_HealthAndCorpora(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "fixed-id" {
		t.Errorf("Expected request id to be propagated")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/corpora/unknown/stats", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for stats of an unloaded corpus, got %d", w.Code)
	}
}
