// Package runner executes single streaming chat-completion requests and
// measures them.
package runner

import "time"

// Status classifies how a request ended.
type Status string

// Request statuses.
const (
	StatusOK             Status = "ok"
	StatusHTTPError      Status = "http_error"
	StatusTimeout        Status = "timeout"
	StatusTransportError Status = "transport_error"
	StatusCancelled      Status = "cancelled"
)

// RequestMetrics is the measurement of one request.
//
// When Error is set the request failed: TTFT, latency and token fields are
// zero and EndTime is the moment the failure was observed.
type RequestMetrics struct {
	ID        string    `json:"request_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// TTFTMs is the time to the first non-empty content fragment, 0 when the
	// stream produced no content
	TTFTMs float64 `json:"ttft_ms"`

	// TTFBMs is the time to the first response byte
	TTFBMs float64 `json:"ttfb_ms,omitempty"`

	E2ELatencyMs float64 `json:"e2e_latency_ms"`

	// Token counts are estimated at four characters per token
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	TokensPerSecond float64 `json:"tokens_per_second"`

	Error      string `json:"error,omitempty"`
	Status     Status `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Succeeded reports whether the request completed without error.
func (m RequestMetrics) Succeeded() bool {
	return m.Error == ""
}

// Failed builds the record of a request that never ran, e.g. one that was
// still queued when the test was cancelled.
func Failed(id string, at time.Time, status Status, msg string) RequestMetrics {
	return RequestMetrics{
		ID:        id,
		StartTime: at,
		EndTime:   at,
		Error:     msg,
		Status:    status,
	}
}
