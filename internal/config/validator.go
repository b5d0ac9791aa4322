package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the configuration.
//
// Returns nil if valid, or a *ValidationErrors containing every problem found.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateServer(&c.Server, errs)
	validateLoad(&c.Load, errs)
	validatePrompt(&c.Prompt, errs)
	validateReport(&c.Report, errs)
	validatePrometheus(&c.Prometheus, errs)
	validateReproducibility(&c.Reproducibility, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateServer(s *ServerConfig, errs *ValidationErrors) {
	if s.BaseURL == "" {
		errs.Add("server.base_url", "base_url is required")
	} else if err := validateHTTPURL(s.BaseURL); err != nil {
		errs.Add("server.base_url", err.Error())
	}

	if s.Model == "" {
		errs.Add("server.model", "model is required")
	}
}

func validateLoad(l *LoadSettings, errs *ValidationErrors) {
	if l.Concurrency <= 0 {
		errs.Add("load.concurrency", "concurrency must be greater than 0")
	}
	if l.NumRequests <= 0 {
		errs.Add("load.num_requests", "num_requests must be greater than 0")
	}
	if l.WarmupRequests < 0 {
		errs.Add("load.warmup_requests", "warmup_requests cannot be negative")
	}
	if l.RequestTimeout <= 0 {
		errs.Add("load.request_timeout", "request_timeout must be positive")
	}
}

func validatePrompt(p *PromptConfig, errs *ValidationErrors) {
	switch p.PromptType {
	case PromptFixed:
		if p.FixedPrompt == "" && p.InputLength <= 0 {
			errs.Add("prompt.fixed_prompt", "fixed_prompt or input_length is required for fixed prompts")
		}
	case PromptRandom:
		if p.InputLength <= 0 {
			errs.Add("prompt.input_length", "input_length must be greater than 0")
		}
	default:
		errs.Add("prompt.prompt_type", fmt.Sprintf("unknown prompt type: %s (must be fixed or random)", p.PromptType))
	}

	if p.OutputLength <= 0 {
		errs.Add("prompt.output_length", "output_length must be greater than 0")
	}
}

func validateReport(r *ReportConfig, errs *ValidationErrors) {
	if r.OutputDir == "" {
		errs.Add("report.output_dir", "output_dir is required")
	}

	for i, f := range r.Formats {
		switch f {
		case FormatJSON, FormatYAML, FormatHTML:
		default:
			errs.Add(fmt.Sprintf("report.formats[%d]", i), fmt.Sprintf("unknown report format: %s", f))
		}
	}
}

func validatePrometheus(p *PrometheusConfig, errs *ValidationErrors) {
	if !p.Enabled {
		return
	}

	if p.URL == "" {
		errs.Add("prometheus.url", "url is required when prometheus is enabled")
	} else if err := validateHTTPURL(p.URL); err != nil {
		errs.Add("prometheus.url", err.Error())
	}

	if p.Step <= 0 {
		errs.Add("prometheus.step", "step must be positive")
	}
}

func validateReproducibility(r *ReproducibilityConfig, errs *ValidationErrors) {
	if r.Runs < 1 {
		errs.Add("reproducibility.runs", "runs must be at least 1")
	}
	if r.MaxCVPercent < 0 {
		errs.Add("reproducibility.max_cv_percent", "max_cv_percent cannot be negative")
	}
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
