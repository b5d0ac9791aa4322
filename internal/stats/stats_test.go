package stats

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llmload/llmload/internal/runner"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 2.5, Mean([]float64{1, 2, 3, 4}))
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty", values: nil, expected: 0},
		{name: "single", values: []float64{42}, expected: 0},
		{name: "constant", values: []float64{3, 3, 3}, expected: 0},
		{name: "sample deviation", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, expected: math.Sqrt(32.0 / 7.0)},
		{name: "two values", values: []float64{1, 3}, expected: math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, StdDev(tt.values), 1e-12)
		})
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation(nil))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{0, 0}))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{10, 10, 10}))
	assert.InDelta(t, 10.0, CoefficientOfVariation([]float64{90, 100, 110}), 1e-9)
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p        float64
		expected float64
	}{
		{p: 0, expected: 1},
		{p: 50, expected: 5.5},
		{p: 90, expected: 9.1},
		{p: 95, expected: 9.55},
		{p: 99, expected: 9.91},
		{p: 100, expected: 10},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, Percentile(values, tt.p), 1e-9, "p%v", tt.p)
	}
}

func TestPercentile_EdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 99))
	assert.InDelta(t, 15.0, Percentile([]float64{10, 20}, 50), 1e-12)
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	_ = Percentile(values, 50)
	_ = Percentiles(values, []float64{50, 99})
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, values)
}

func TestPercentiles(t *testing.T) {
	got := Percentiles([]float64{100, 200, 300, 400, 500}, []float64{50, 95})
	assert.InDelta(t, 300.0, got[50], 1e-9)
	assert.InDelta(t, 480.0, got[95], 1e-9)

	empty := Percentiles(nil, []float64{50, 95, 99})
	assert.Equal(t, map[float64]float64{50: 0, 95: 0, 99: 0}, empty)
}

func TestPercentiles_Monotonic(t *testing.T) {
	values := []float64{12, 3, 99, 41, 7, 7, 63, 25, 18, 2, 80}
	ps := Percentiles(values, DefaultPercentiles)
	assert.LessOrEqual(t, ps[50], ps[90])
	assert.LessOrEqual(t, ps[90], ps[95])
	assert.LessOrEqual(t, ps[95], ps[99])
}

func TestCalculateLatencyStatistics(t *testing.T) {
	s := CalculateLatencyStatistics([]float64{10, 20, 30, 40, 50})

	assert.Equal(t, 30.0, s.AvgMs)
	assert.Equal(t, 10.0, s.MinMs)
	assert.Equal(t, 50.0, s.MaxMs)
	assert.InDelta(t, math.Sqrt(250), s.StdMs, 1e-9)
	assert.InDelta(t, 30.0, s.P50Ms, 1e-9)
	assert.InDelta(t, 46.0, s.P90Ms, 1e-9)
	assert.InDelta(t, 48.0, s.P95Ms, 1e-9)
	assert.InDelta(t, 49.6, s.P99Ms, 1e-9)
}

func TestCalculateLatencyStatistics_Empty(t *testing.T) {
	assert.Equal(t, LatencyStatistics{}, CalculateLatencyStatistics(nil))
}

func TestCalculateLatencyStatistics_CustomPercentiles(t *testing.T) {
	s := CalculateLatencyStatistics([]float64{10, 20, 30}, 50)
	assert.InDelta(t, 20.0, s.P50Ms, 1e-9)
	assert.Zero(t, s.P99Ms)
}

func TestCalculateThroughputStatistics(t *testing.T) {
	metrics := []runner.RequestMetrics{
		{ID: "a", OutputTokens: 10, Status: runner.StatusOK},
		{ID: "b", OutputTokens: 30, Status: runner.StatusOK},
		{ID: "c", Error: "HTTP 500: boom", Status: runner.StatusHTTPError},
	}

	s := CalculateThroughputStatistics(metrics, 2)
	assert.Equal(t, 1.0, s.RequestsPerSecond)
	assert.Equal(t, 20.0, s.TokensPerSecond)
	assert.Equal(t, 40, s.TotalTokens)

	zero := CalculateThroughputStatistics(metrics, 0)
	assert.Zero(t, zero.RequestsPerSecond)
	assert.Equal(t, 40, zero.TotalTokens)
}

func TestSummarize(t *testing.T) {
	metrics := []runner.RequestMetrics{
		{E2ELatencyMs: 100, TTFTMs: 10, TokensPerSecond: 50},
		{E2ELatencyMs: 200, TTFTMs: 20, TokensPerSecond: 150},
		{E2ELatencyMs: 300, TTFTMs: 0, TokensPerSecond: 0},
		{Error: "timeout", Status: runner.StatusTimeout},
	}

	s := Summarize(metrics, 4.5)

	assert.Equal(t, 200.0, s.AvgLatencyMs)
	assert.InDelta(t, 200.0, s.P50LatencyMs, 1e-9)
	assert.InDelta(t, 290.0, s.P95LatencyMs, 1e-9)
	assert.InDelta(t, 298.0, s.P99LatencyMs, 1e-9)

	// the zero TTFT sample is excluded
	assert.Equal(t, 15.0, s.AvgTTFTMs)
	assert.InDelta(t, 15.0, s.P50TTFTMs, 1e-9)
	assert.Equal(t, 100.0, s.AvgTokensPerSecond)
	assert.Equal(t, 4.5, s.ThroughputRPS)

	assert.Equal(t, 100.0, s.Latency.MinMs)
	assert.Equal(t, 300.0, s.Latency.MaxMs)
	assert.InDelta(t, 100.0, s.Latency.StdMs, 1e-9)
	assert.InDelta(t, 280.0, s.Latency.P90Ms, 1e-9)
	assert.Equal(t, s.P95LatencyMs, s.Latency.P95Ms)
	assert.Equal(t, 10.0, s.TTFT.MinMs)
	assert.Equal(t, 20.0, s.TTFT.MaxMs)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 0)
	assert.Equal(t, Statistics{}, s)

	s = Summarize(nil, 3)
	assert.Equal(t, 3.0, s.ThroughputRPS)
	assert.Zero(t, s.P99LatencyMs)
}

func TestVerifyReproducibility(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		for _, values := range [][]float64{nil, {12.3}} {
			v := VerifyReproducibility(values, DefaultMaxCVPercent)
			assert.True(t, v.Reproducible)
			assert.Zero(t, v.CVPercent)
			assert.Contains(t, strings.ToLower(v.Message), "insufficient data")
		}
	})

	t.Run("within limits", func(t *testing.T) {
		v := VerifyReproducibility([]float64{100, 102, 98, 101}, DefaultMaxCVPercent)
		assert.True(t, v.Reproducible)
		assert.Greater(t, v.CVPercent, 0.0)
		assert.Contains(t, v.Message, "<= 10%")
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		v := VerifyReproducibility([]float64{90, 100, 110}, 10)
		assert.InDelta(t, 10.0, v.CVPercent, 1e-9)
		assert.True(t, v.Reproducible)
	})

	t.Run("too much variance", func(t *testing.T) {
		v := VerifyReproducibility([]float64{50, 100, 150}, DefaultMaxCVPercent)
		assert.False(t, v.Reproducible)
		assert.InDelta(t, 50.0, v.CVPercent, 1e-9)
		assert.Contains(t, v.Message, "50.00%")
		assert.Contains(t, v.Message, "> 10%")
	})

	t.Run("zero mean", func(t *testing.T) {
		v := VerifyReproducibility([]float64{0, 0}, DefaultMaxCVPercent)
		assert.True(t, v.Reproducible)
		assert.Zero(t, v.CVPercent)
	})
}

func TestKnownValues(t *testing.T) {
	assert.InDelta(t, 30.0, Percentiles([]float64{10, 20, 30, 40, 50}, []float64{50})[50], 1e-12)

	assert.InDelta(t, 28.2843, StdDev([]float64{80, 120}), 1e-4)
	assert.InDelta(t, 28.28, CoefficientOfVariation([]float64{80, 120}), 1e-2)

	v := VerifyReproducibility([]float64{80, 120}, DefaultMaxCVPercent)
	assert.False(t, v.Reproducible)
	assert.Contains(t, v.Message, "28.28%")

	v = VerifyReproducibility([]float64{100, 100, 100}, DefaultMaxCVPercent)
	assert.True(t, v.Reproducible)
	assert.Zero(t, v.CVPercent)
}
