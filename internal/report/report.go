// Package report renders load test results as JSON, YAML and HTML
// documents.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/loadtest"
	"github.com/llmload/llmload/internal/promquery"
	"github.com/llmload/llmload/internal/runner"
	"github.com/llmload/llmload/internal/stats"
)

// FileTimeLayout is the timestamp layout used in report file names.
const FileTimeLayout = "20060102_150405"

// Report is the persisted outcome of one test run.
type Report struct {
	Metadata   Metadata    `json:"metadata" yaml:"metadata"`
	Summary    Summary     `json:"summary" yaml:"summary"`
	Latency    stats.LatencyStatistics `json:"latency" yaml:"latency"`
	TTFT       stats.LatencyStatistics `json:"ttft" yaml:"ttft"`
	Throughput Throughput              `json:"throughput" yaml:"throughput"`

	Prometheus      *promquery.ExternalMetrics `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
	Reproducibility *stats.Verdict             `json:"reproducibility,omitempty" yaml:"reproducibility,omitempty"`

	// requests feed the HTML charts and are not serialized
	requests []runner.RequestMetrics
}

// Metadata identifies a run.
type Metadata struct {
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	RunID     string         `json:"run_id" yaml:"run_id"`
	Config    *config.Config `json:"config" yaml:"config"`
}

// Summary holds the request counts of a run.
type Summary struct {
	DurationSeconds    float64 `json:"duration_seconds" yaml:"duration_seconds"`
	TotalRequests      int     `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests     int     `json:"failed_requests" yaml:"failed_requests"`
	ThroughputRPS      float64 `json:"throughput_rps" yaml:"throughput_rps"`
}

// Throughput holds token throughput.
type Throughput struct {
	TokensPerSecond float64 `json:"tokens_per_second" yaml:"tokens_per_second"`
}

// New builds a report from a test result and its statistics.
func New(res *loadtest.TestResult, s stats.Statistics) *Report {
	return &Report{
		Metadata: Metadata{
			Timestamp: res.Timestamp,
			RunID:     res.RunID,
			Config:    res.Config,
		},
		Summary: Summary{
			DurationSeconds:    res.DurationSeconds,
			TotalRequests:      res.TotalRequests,
			SuccessfulRequests: res.SuccessfulRequests,
			FailedRequests:     res.FailedRequests,
			ThroughputRPS:      res.ThroughputRPS,
		},
		Latency:    s.Latency,
		TTFT:       s.TTFT,
		Throughput: Throughput{TokensPerSecond: s.AvgTokensPerSecond},
		requests:   res.RequestMetrics,
	}
}

// Passed reports whether no request failed.
func (r *Report) Passed() bool {
	return r.Summary.FailedRequests == 0
}

// FileName returns the report file name for a run timestamp and extension.
// A seq above 1 adds a _<seq> suffix for reports written in the same second.
func FileName(ts time.Time, seq int, ext string) string {
	base := "benchmark_" + ts.Format(FileTimeLayout)
	if seq > 1 {
		base = fmt.Sprintf("%s_%d", base, seq)
	}
	return base + "." + ext
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode YAML report: %w", err)
	}
	return enc.Close()
}

// Write writes the report to dir in each requested format and returns the
// written paths. JSON is always written. The directory is created if needed
// and an existing report of the same second is never overwritten.
func Write(r *Report, dir string, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	seq := freeSeq(dir, r.Metadata.Timestamp)

	wanted := []string{config.FormatJSON}
	for _, f := range formats {
		if f != config.FormatJSON {
			wanted = append(wanted, f)
		}
	}

	var paths []string
	for _, format := range wanted {
		var write func(io.Writer, *Report) error
		switch format {
		case config.FormatJSON:
			write = WriteJSON
		case config.FormatYAML:
			write = WriteYAML
		case config.FormatHTML:
			write = WriteHTML
		default:
			return paths, fmt.Errorf("unknown report format: %s", format)
		}

		path := filepath.Join(dir, FileName(r.Metadata.Timestamp, seq, format))
		if err := writeFile(path, r, write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// freeSeq returns the first sequence number with no JSON report in dir.
func freeSeq(dir string, ts time.Time) int {
	for seq := 1; ; seq++ {
		if _, err := os.Stat(filepath.Join(dir, FileName(ts, seq, config.FormatJSON))); errors.Is(err, os.ErrNotExist) {
			return seq
		}
	}
}

func writeFile(path string, r *Report, write func(io.Writer, *Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := write(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Load reads a JSON report.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
