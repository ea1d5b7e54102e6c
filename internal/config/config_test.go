package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	appPath := writeFile(t, dir, "app.yaml", "app:\n  port: 9000\n")

	cfg, err := LoadConfig(appPath, "")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.App.Port != 9000 {
		t.Fatalf("Expected port 9000, got %d", cfg.App.Port)
	}
	if cfg.Model.Order != 6 || cfg.Model.Lambda != 0.5 {
		t.Fatalf("Expected order 6 and lambda 0.5, got %d and %v", cfg.Model.Order, cfg.Model.Lambda)
	}
	if cfg.Model.MaxFileChars != 65536 || cfg.Model.PredictionCutoff != 10 {
		t.Fatalf("Unexpected model defaults: %+v", cfg.Model)
	}
	if !cfg.Model.Bloom.Enabled {
		t.Fatalf("Expected bloom filter enabled by default")
	}
	if cfg.Mcp.GetAddress() != ":8081" {
		t.Fatalf("Expected MCP address ':8081', got '%s'", cfg.Mcp.GetAddress())
	}
}

func TestLoadConfig_SourceCorpora(t *testing.T) {
	dir := t.TempDir()
	appPath := writeFile(t, dir, "app.yaml", "model:\n  order: 4\n  bloom:\n    enabled: false\n")
	sourcePath := writeFile(t, dir, "source.yaml", `corpora:
  - name: core
    path: /src/core/
    languages: [java]
    use_git_head: true
`)

	cfg, err := LoadConfig(appPath, sourcePath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Model.Order != 4 || cfg.Model.Bloom.Enabled {
		t.Fatalf("Expected order 4 with bloom disabled, got %+v", cfg.Model)
	}
	corpus, err := cfg.GetCorpus("core")
	if err != nil {
		t.Fatalf("Failed to get corpus: %v", err)
	}
	if corpus.Path != "/src/core" || !corpus.UseGitHead || len(corpus.Languages) != 1 {
		t.Fatalf("Unexpected corpus: %+v", corpus)
	}
	if _, err := cfg.GetCorpus("missing"); err == nil {
		t.Fatalf("Expected error for unknown corpus")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	appPath := writeFile(t, dir, "app.yaml", `model:
  lambda: 1.5
corpora:
  - name: a
    path: /a
  - name: a
    path: /b
`)

	_, err := LoadConfig(appPath, "")
	if err == nil {
		t.Fatalf("Expected validation error")
	}
	if !strings.Contains(err.Error(), "lambda") || !strings.Contains(err.Error(), "duplicate corpus") {
		t.Fatalf("Expected lambda and duplicate corpus errors, got: %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatalf("Expected error for missing app config")
	}
}
