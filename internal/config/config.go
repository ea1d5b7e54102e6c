package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Config is the merged application and source configuration
type Config struct {
	App     AppConfig   `yaml:"app"`
	Mcp     McpConfig   `yaml:"mcp"`
	Model   ModelConfig `yaml:"model"`
	Corpora []Corpus    `yaml:"corpora"`
}

// AppConfig holds process-level settings
type AppConfig struct {
	Port       int      `yaml:"port"`
	ModelDir   string   `yaml:"model_dir"`
	LogLevel   string   `yaml:"log_level"`
	LogOutputs []string `yaml:"log_outputs"`
}

// McpConfig holds the MCP server settings
type McpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetAddress returns the listen address of the MCP server
func (m McpConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// ModelConfig configures every n-gram runner
type ModelConfig struct {
	Order               int         `yaml:"order"`
	Lambda              float64     `yaml:"lambda"`
	Smoother            string      `yaml:"smoother"`
	MaxFileChars        int         `yaml:"max_file_chars"`
	PredictionCutoff    int         `yaml:"prediction_cutoff"`
	MinScore            float64     `yaml:"min_score"`
	InspectionThreshold float64     `yaml:"inspection_threshold"`
	Bloom               BloomConfig `yaml:"bloom"`
}

// BloomConfig sizes the bloom filter in front of the count trie
type BloomConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// Corpus is a source tree a project-wide runner is trained on
type Corpus struct {
	Name          string   `yaml:"name"`
	Path          string   `yaml:"path"`
	Languages     []string `yaml:"languages"`
	UseGitHead    bool     `yaml:"use_git_head"`
	LoadOnStartup bool     `yaml:"load_on_startup"`
}

// source is the layout of the source configuration file
type source struct {
	Corpora []Corpus `yaml:"corpora"`
}

// LoadConfig reads the application file and, if sourcePath is not empty, the
// source file listing corpora. Missing values are filled with defaults.
func LoadConfig(appPath, sourcePath string) (*Config, error) {
	cfg := &Config{}
	// Bloom filtering is on unless the file says otherwise
	cfg.Model.Bloom.Enabled = true

	data, err := os.ReadFile(appPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse app config: %w", err)
	}

	if sourcePath != "" {
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read source config: %w", err)
		}
		var src source
		if err := yaml.Unmarshal(data, &src); err != nil {
			return nil, fmt.Errorf("failed to parse source config: %w", err)
		}
		cfg.Corpora = append(cfg.Corpora, src.Corpora...)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.ModelDir == "" {
		c.App.ModelDir = "./ngram_models"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if len(c.App.LogOutputs) == 0 {
		c.App.LogOutputs = []string{"stdout"}
	}
	if c.Mcp.Port == 0 {
		c.Mcp.Port = 8081
	}

	m := &c.Model
	if m.Order == 0 {
		m.Order = 6
	}
	if m.Lambda == 0 {
		m.Lambda = 0.5
	}
	if m.Smoother == "" {
		m.Smoother = "jelinek-mercer"
	}
	if m.MaxFileChars == 0 {
		m.MaxFileChars = 65536
	}
	if m.PredictionCutoff == 0 {
		m.PredictionCutoff = 10
	}
	if m.MinScore == 0 {
		m.MinScore = 0.001
	}
	if m.InspectionThreshold == 0 {
		m.InspectionThreshold = 0.001
	}
	if m.Bloom.ExpectedItems == 0 {
		m.Bloom.ExpectedItems = 100000
	}
	if m.Bloom.FalsePositiveRate == 0 {
		m.Bloom.FalsePositiveRate = 0.01
	}

	for i := range c.Corpora {
		if c.Corpora[i].Path != "" {
			c.Corpora[i].Path = filepath.Clean(c.Corpora[i].Path)
		}
	}
}

// Validate checks ranges and corpus uniqueness
func (c *Config) Validate() error {
	var errs []error
	if c.Model.Order < 1 {
		errs = append(errs, fmt.Errorf("model.order must be at least 1, got %d", c.Model.Order))
	}
	if c.Model.Lambda <= 0 || c.Model.Lambda >= 1 {
		errs = append(errs, fmt.Errorf("model.lambda must be in (0, 1), got %v", c.Model.Lambda))
	}
	if c.Model.MaxFileChars < 0 {
		errs = append(errs, fmt.Errorf("model.max_file_chars must not be negative"))
	}
	if c.Model.PredictionCutoff < 0 {
		errs = append(errs, fmt.Errorf("model.prediction_cutoff must not be negative"))
	}
	if fpr := c.Model.Bloom.FalsePositiveRate; fpr <= 0 || fpr >= 1 {
		errs = append(errs, fmt.Errorf("model.bloom.false_positive_rate must be in (0, 1), got %v", fpr))
	}

	seen := make(map[string]bool)
	for _, corpus := range c.Corpora {
		if corpus.Name == "" {
			errs = append(errs, fmt.Errorf("corpus with path %q has no name", corpus.Path))
			continue
		}
		if corpus.Path == "" {
			errs = append(errs, fmt.Errorf("corpus %q has no path", corpus.Name))
		}
		if seen[corpus.Name] {
			errs = append(errs, fmt.Errorf("duplicate corpus name %q", corpus.Name))
		}
		seen[corpus.Name] = true
	}
	return errors.Join(errs...)
}

// GetCorpus returns the corpus with the given name
func (c *Config) GetCorpus(name string) (*Corpus, error) {
	for i := range c.Corpora {
		if c.Corpora[i].Name == name {
			return &c.Corpora[i], nil
		}
	}
	return nil, fmt.Errorf("corpus not found: %s", name)
}
