package stats

import (
	"github.com/llmload/llmload/internal/runner"
)

// LatencyStatistics summarizes a latency series in milliseconds.
type LatencyStatistics struct {
	AvgMs float64 `json:"avg_ms" yaml:"avg_ms"`
	MinMs float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs float64 `json:"max_ms" yaml:"max_ms"`
	StdMs float64 `json:"std_ms" yaml:"std_ms"`
	P50Ms float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms float64 `json:"p90_ms" yaml:"p90_ms"`
	P95Ms float64 `json:"p95_ms" yaml:"p95_ms"`
	P99Ms float64 `json:"p99_ms" yaml:"p99_ms"`
}

// ThroughputStatistics summarizes throughput.
type ThroughputStatistics struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	TokensPerSecond   float64 `json:"tokens_per_second" yaml:"tokens_per_second"`
	TotalTokens       int     `json:"total_tokens" yaml:"total_tokens"`
}

// Statistics is the headline summary of one test run.
type Statistics struct {
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P50LatencyMs float64 `json:"p50_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`

	AvgTTFTMs float64 `json:"avg_ttft_ms"`
	P50TTFTMs float64 `json:"p50_ttft_ms"`
	P95TTFTMs float64 `json:"p95_ttft_ms"`
	P99TTFTMs float64 `json:"p99_ttft_ms"`

	AvgTokensPerSecond float64 `json:"avg_tokens_per_second"`
	ThroughputRPS      float64 `json:"throughput_rps"`

	// full distributions behind the headline figures
	Latency LatencyStatistics `json:"latency"`
	TTFT    LatencyStatistics `json:"ttft"`
}

// CalculateLatencyStatistics summarizes latencies. With no percentiles
// given, DefaultPercentiles is used; percentiles other than 50, 90, 95 and
// 99 are computed but have no field to land in. Empty input yields all
// zeros.
func CalculateLatencyStatistics(latenciesMs []float64, percentiles ...float64) LatencyStatistics {
	if len(latenciesMs) == 0 {
		return LatencyStatistics{}
	}
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}

	ps := Percentiles(latenciesMs, percentiles)
	lo, hi := minMax(latenciesMs)

	return LatencyStatistics{
		AvgMs: Mean(latenciesMs),
		MinMs: lo,
		MaxMs: hi,
		StdMs: StdDev(latenciesMs),
		P50Ms: ps[50],
		P90Ms: ps[90],
		P95Ms: ps[95],
		P99Ms: ps[99],
	}
}

// CalculateThroughputStatistics derives throughput from successful requests
// over a wall-clock duration.
func CalculateThroughputStatistics(metrics []runner.RequestMetrics, durationSeconds float64) ThroughputStatistics {
	var out ThroughputStatistics
	var succeeded int
	for _, m := range metrics {
		if !m.Succeeded() {
			continue
		}
		succeeded++
		out.TotalTokens += m.OutputTokens
	}

	if durationSeconds > 0 {
		out.RequestsPerSecond = float64(succeeded) / durationSeconds
		out.TokensPerSecond = float64(out.TotalTokens) / durationSeconds
	}
	return out
}

// Summarize computes run statistics from successful request metrics. Only
// positive samples enter each series, so requests that produced no content
// do not drag TTFT towards zero. Failed records are ignored.
func Summarize(metrics []runner.RequestMetrics, throughputRPS float64) Statistics {
	var latencies, ttfts, tps []float64
	for _, m := range metrics {
		if !m.Succeeded() {
			continue
		}
		if m.E2ELatencyMs > 0 {
			latencies = append(latencies, m.E2ELatencyMs)
		}
		if m.TTFTMs > 0 {
			ttfts = append(ttfts, m.TTFTMs)
		}
		if m.TokensPerSecond > 0 {
			tps = append(tps, m.TokensPerSecond)
		}
	}

	lat := CalculateLatencyStatistics(latencies)
	ttft := CalculateLatencyStatistics(ttfts)

	return Statistics{
		AvgLatencyMs:       lat.AvgMs,
		P50LatencyMs:       lat.P50Ms,
		P95LatencyMs:       lat.P95Ms,
		P99LatencyMs:       lat.P99Ms,
		AvgTTFTMs:          ttft.AvgMs,
		P50TTFTMs:          ttft.P50Ms,
		P95TTFTMs:          ttft.P95Ms,
		P99TTFTMs:          ttft.P99Ms,
		AvgTokensPerSecond: Mean(tps),
		ThroughputRPS:      throughputRPS,
		Latency:            lat,
		TTFT:               ttft,
	}
}
