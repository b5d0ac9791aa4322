package metrics

import "time"

// Phase represents a phase of the load test.
type Phase string

const (
	// PhaseInit is the state before any request is sent
	PhaseInit Phase = "init"

	// PhaseWarmup is the unmeasured burst before the test
	PhaseWarmup Phase = "warmup"

	// PhaseMeasure is the measured phase
	PhaseMeasure Phase = "measure"

	// PhaseDone indicates the test has completed
	PhaseDone Phase = "done"
)

// Snapshot contains a point-in-time view of the live metrics.
type Snapshot struct {
	// Completed is the number of measured requests that settled
	Completed int64 `json:"completed"`

	// Succeeded is the number of measured requests without error
	Succeeded int64 `json:"succeeded"`

	// Failed is the number of measured requests with an error
	Failed int64 `json:"failed"`

	// InFlight is the number of requests currently being served
	InFlight int64 `json:"inFlight"`

	// PeakInFlight is the highest InFlight value observed
	PeakInFlight int64 `json:"peakInFlight"`

	// OutputTokens is the estimated number of generated tokens
	OutputTokens int64 `json:"outputTokens"`

	// Latency is the end-to-end latency distribution of successful requests
	Latency LatencyStats `json:"latency"`

	// TTFT is the time-to-first-token distribution of successful requests
	TTFT LatencyStats `json:"ttft"`

	// RPS is successful requests per second since the engine started
	RPS float64 `json:"rps"`

	// TokensPerSecond is generated tokens per second since the engine started
	TokensPerSecond float64 `json:"tokensPerSecond"`

	CurrentPhase Phase         `json:"currentPhase"`
	Elapsed      time.Duration `json:"elapsed"`
	StartTime    time.Time     `json:"startTime"`
	Timestamp    time.Time     `json:"timestamp"`
}

// LatencyStats contains latency statistics read from an HDR histogram.
// Values are approximate to the histogram's precision.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}
