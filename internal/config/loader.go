package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llmload/llmload/pkg/jsonschema"
)

//go:embed config.schema.json
var schemaJSON string

var documentSchema = jsonschema.MustCompile("config.schema.json", schemaJSON)

// Defaults mirror the values the harness has always shipped with.
const (
	DefaultBaseURL        = "http://localhost:8000/v1"
	DefaultModel          = "Qwen/Qwen2.5-3B-Instruct"
	DefaultAPIKey         = "token-abc123"
	DefaultConcurrency    = 10
	DefaultNumRequests    = 100
	DefaultWarmupRequests = 10
	DefaultRequestTimeout = 120 * time.Second
	DefaultInputLength    = 512
	DefaultOutputLength   = 128
	DefaultOutputDir      = "benchmark/reports"
	DefaultPrometheusURL  = "http://localhost:9090"
	DefaultPrometheusStep = 15 * time.Second
	DefaultPromTimeout    = 30 * time.Second
	DefaultMaxCVPercent   = 10.0
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	defaultUnset(cfg, nil)
	ApplyDefaults(cfg)
	return cfg
}

// LoadConfig loads a configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// Defaults are applied and the result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension. The document is checked
// against the embedded JSON schema before it is decoded, so unknown keys and
// wrongly typed values are reported with their location.
//
// Settings where zero is a meaningful value (load.warmup_requests,
// reproducibility.max_cv_percent) are defaulted here, and only when the key
// is absent from the document.
func ParseConfig(data []byte, path string) (*Config, error) {
	var doc interface{}
	var cfg Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		if err := checkSchema(doc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if err := checkSchema(doc); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	defaultUnset(&cfg, doc)
	return &cfg, nil
}

// defaultUnset applies defaults for settings whose zero value is valid.
func defaultUnset(cfg *Config, doc interface{}) {
	if !hasKey(doc, "load", "warmup_requests") {
		cfg.Load.WarmupRequests = DefaultWarmupRequests
	}
	if !hasKey(doc, "reproducibility", "max_cv_percent") {
		cfg.Reproducibility.MaxCVPercent = DefaultMaxCVPercent
	}
}

// hasKey reports whether the decoded document sets section.key.
func hasKey(doc interface{}, section, key string) bool {
	root, ok := doc.(map[string]interface{})
	if !ok {
		return false
	}
	sec, ok := root[section].(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = sec[key]
	return ok
}

// checkSchema validates a decoded document. An empty document is accepted
// and yields an all-default configuration.
func checkSchema(doc interface{}) error {
	if doc == nil {
		return nil
	}
	if errs := documentSchema.ValidateValue(doc); len(errs) > 0 {
		return fmt.Errorf("config does not match schema: %w", errs)
	}
	return nil
}

// ApplyDefaults fills zero-valued settings with their defaults. Warmup
// requests and the CV threshold are left alone since zero is valid for both.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.APIKey == "" {
		cfg.Server.APIKey = DefaultAPIKey
	}
	if cfg.Server.Model == "" {
		cfg.Server.Model = DefaultModel
	}

	if cfg.Load.Concurrency == 0 {
		cfg.Load.Concurrency = DefaultConcurrency
	}
	if cfg.Load.NumRequests == 0 {
		cfg.Load.NumRequests = DefaultNumRequests
	}
	if cfg.Load.RequestTimeout == 0 {
		cfg.Load.RequestTimeout = Duration(DefaultRequestTimeout)
	}

	if cfg.Prompt.PromptType == "" {
		cfg.Prompt.PromptType = PromptRandom
	}
	if cfg.Prompt.InputLength == 0 {
		cfg.Prompt.InputLength = DefaultInputLength
	}
	if cfg.Prompt.OutputLength == 0 {
		cfg.Prompt.OutputLength = DefaultOutputLength
	}

	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = DefaultOutputDir
	}

	if cfg.Prometheus.URL == "" {
		cfg.Prometheus.URL = DefaultPrometheusURL
	}
	if cfg.Prometheus.Step == 0 {
		cfg.Prometheus.Step = Duration(DefaultPrometheusStep)
	}
	if cfg.Prometheus.Timeout == 0 {
		cfg.Prometheus.Timeout = Duration(DefaultPromTimeout)
	}

	if cfg.Reproducibility.Runs == 0 {
		cfg.Reproducibility.Runs = 1
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	if c.Report.Formats != nil {
		out.Report.Formats = append([]string(nil), c.Report.Formats...)
	}
	return &out
}

// Redacted returns a copy safe to embed in reports.
func (c *Config) Redacted() *Config {
	out := c.Clone()
	if out.Server.APIKey != "" {
		out.Server.APIKey = "***"
	}
	return out
}
