package loadtest

import (
	"time"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/runner"
)

// MaxSampleErrors is how many failure messages a result keeps.
const MaxSampleErrors = 3

// TestResult is the outcome of one measured phase.
//
// SuccessfulRequests + FailedRequests always equals TotalRequests, even when
// the run was cancelled.
type TestResult struct {
	Config    *config.Config `json:"config"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`

	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	ThroughputRPS      float64 `json:"throughput_rps"`

	// RequestMetrics holds the successful requests only
	RequestMetrics []runner.RequestMetrics `json:"request_metrics"`

	// Errors holds the first failure messages
	Errors []string `json:"errors,omitempty"`

	// StatusCounts counts requests by how they ended
	StatusCounts map[runner.Status]int `json:"status_counts"`

	PeakInFlight int64 `json:"peak_in_flight"`
}

// newResult aggregates settled requests measured between start and end.
func newResult(cfg *config.Config, runID string, start, end time.Time, all []runner.RequestMetrics, peak int64) *TestResult {
	res := &TestResult{
		Config:        cfg,
		RunID:         runID,
		Timestamp:     time.Now(),
		StartTime:     start,
		EndTime:       end,
		TotalRequests: len(all),
		StatusCounts:  make(map[runner.Status]int),
		PeakInFlight:  peak,
	}

	res.DurationSeconds = end.Sub(start).Seconds()
	res.RequestMetrics = make([]runner.RequestMetrics, 0, len(all))

	for _, m := range all {
		res.StatusCounts[m.Status]++
		if m.Succeeded() {
			res.RequestMetrics = append(res.RequestMetrics, m)
			continue
		}
		res.FailedRequests++
		if len(res.Errors) < MaxSampleErrors {
			res.Errors = append(res.Errors, m.Error)
		}
	}
	res.SuccessfulRequests = len(res.RequestMetrics)

	if res.DurationSeconds > 0 {
		res.ThroughputRPS = float64(res.SuccessfulRequests) / res.DurationSeconds
	}
	return res
}

// Throughputs returns the throughput of each result, for reproducibility
// checks.
func Throughputs(results []*TestResult) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		out = append(out, r.ThroughputRPS)
	}
	return out
}
