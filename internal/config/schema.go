// Package config provides configuration parsing and validation for load tests.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prompt modes.
const (
	PromptFixed  = "fixed"
	PromptRandom = "random"
)

// Report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatHTML = "html"
)

// Config is the root configuration for a load test.
//
// Example YAML:
//
//	server:
//	  base_url: "http://localhost:8000/v1"
//	  model: "Qwen/Qwen2.5-3B-Instruct"
//	load:
//	  concurrency: 10
//	  num_requests: 100
//	  warmup_requests: 10
//	  request_timeout: 120s
//	prompt:
//	  prompt_type: random
//	  input_length: 512
//	  output_length: 128
type Config struct {
	// Server describes the inference endpoint under test
	Server ServerConfig `json:"server" yaml:"server"`

	// Load controls how many requests are sent and how many run at once
	Load LoadSettings `json:"load" yaml:"load"`

	// Prompt controls the synthetic request payloads
	Prompt PromptConfig `json:"prompt" yaml:"prompt"`

	// Report controls where results are written
	Report ReportConfig `json:"report" yaml:"report"`

	// Prometheus enables server-side metrics correlation
	Prometheus PrometheusConfig `json:"prometheus" yaml:"prometheus"`

	// Reproducibility controls repeated runs and the accepted variance
	Reproducibility ReproducibilityConfig `json:"reproducibility" yaml:"reproducibility"`
}

// ServerConfig contains connection settings for the inference server.
type ServerConfig struct {
	// BaseURL is the OpenAI-compatible API root, e.g. http://host:8000/v1
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model name sent with every request
	Model string `json:"model" yaml:"model"`

	// APIKey is sent as a bearer token
	APIKey string `json:"api_key" yaml:"api_key"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// LoadSettings contains load generation parameters.
type LoadSettings struct {
	// Concurrency is the maximum number of in-flight measured requests
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// NumRequests is the number of measured requests
	NumRequests int `json:"num_requests" yaml:"num_requests"`

	// WarmupRequests are sent all at once before measurement and discarded
	WarmupRequests int `json:"warmup_requests" yaml:"warmup_requests"`

	// RequestTimeout bounds each individual request
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`
}

// PromptConfig controls prompt generation.
type PromptConfig struct {
	// PromptType is "fixed" or "random"
	PromptType string `json:"prompt_type" yaml:"prompt_type"`

	// InputLength is the approximate prompt size in tokens
	InputLength int `json:"input_length" yaml:"input_length"`

	// OutputLength is sent as max_tokens
	OutputLength int `json:"output_length" yaml:"output_length"`

	// FixedPrompt is used verbatim in fixed mode
	FixedPrompt string `json:"fixed_prompt,omitempty" yaml:"fixed_prompt,omitempty"`

	// Seed makes random prompts deterministic; 0 seeds from the clock
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	// OutputDir is the directory reports are written to
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Formats lists the report renderings to write (json is always written)
	Formats []string `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// PrometheusConfig controls server-side metrics collection.
type PrometheusConfig struct {
	// Enabled turns collection on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// URL is the Prometheus server root
	URL string `json:"url" yaml:"url"`

	// Step is the range query resolution
	Step Duration `json:"step,omitempty" yaml:"step,omitempty"`

	// Timeout bounds the whole collection
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ReproducibilityConfig controls repeated runs.
type ReproducibilityConfig struct {
	// Runs is how many measured runs to execute
	Runs int `json:"runs,omitempty" yaml:"runs,omitempty"`

	// MaxCVPercent is the highest accepted throughput coefficient of variation
	MaxCVPercent float64 `json:"max_cv_percent" yaml:"max_cv_percent"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings
// ("120s") or bare numbers of seconds (120).
type Duration time.Duration

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as a number: "30" or "1.5"
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
