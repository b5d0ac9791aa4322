package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/loadtest"
	"github.com/llmload/llmload/internal/promquery"
	"github.com/llmload/llmload/internal/report"
	"github.com/llmload/llmload/internal/runner"
	"github.com/llmload/llmload/internal/stats"
)

func main() {
	outputDir := "sample-report"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	result := createSampleTestResult(rand.New(rand.NewSource(1)))
	rep := report.New(result, stats.Summarize(result.RequestMetrics, result.ThroughputRPS))
	rep.Prometheus = createSamplePrometheus(result.EndTime)

	paths, err := report.Write(rep, outputDir, []string{config.FormatYAML, config.FormatHTML})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, p := range paths {
		fmt.Printf("Sample report generated: %s\n", p)
	}
}

// createSampleTestResult simulates 200 requests at concurrency 16 against a
// server whose TTFT grows as its queue fills.
func createSampleTestResult(rng *rand.Rand) *loadtest.TestResult {
	const (
		numRequests = 200
		concurrency = 16
	)

	cfg := config.Default()
	cfg.Load.Concurrency = concurrency
	cfg.Load.NumRequests = numRequests

	end := time.Now()
	start := end.Add(-95 * time.Second)

	all := make([]runner.RequestMetrics, 0, numRequests)
	for i := 0; i < numRequests; i++ {
		id := fmt.Sprintf("req-%d", i)
		begin := start.Add(time.Duration(i) * 450 * time.Millisecond)

		if i%67 == 66 {
			all = append(all, runner.Failed(id, begin.Add(120*time.Second), runner.StatusTimeout, "request timed out after 2m0s"))
			continue
		}

		ttft := 80 + float64(i%concurrency)*12 + rng.Float64()*40
		outputTokens := 96 + rng.Intn(33)
		e2e := ttft + float64(outputTokens)*(22+rng.Float64()*6)

		all = append(all, runner.RequestMetrics{
			ID:              id,
			StartTime:       begin,
			EndTime:         begin.Add(time.Duration(e2e * float64(time.Millisecond))),
			TTFTMs:          ttft,
			E2ELatencyMs:    e2e,
			InputTokens:     512,
			OutputTokens:    outputTokens,
			TokensPerSecond: float64(outputTokens) / e2e * 1000,
			Status:          runner.StatusOK,
			StatusCode:      200,
		})
	}

	res := &loadtest.TestResult{
		Config:          cfg.Redacted(),
		RunID:           "00000000-0000-4000-8000-000000000001",
		Timestamp:       end,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		TotalRequests:   numRequests,
		StatusCounts:    make(map[runner.Status]int),
		PeakInFlight:    concurrency,
	}
	for _, m := range all {
		res.StatusCounts[m.Status]++
		if m.Succeeded() {
			res.RequestMetrics = append(res.RequestMetrics, m)
			continue
		}
		res.FailedRequests++
		if len(res.Errors) < loadtest.MaxSampleErrors {
			res.Errors = append(res.Errors, m.Error)
		}
	}
	res.SuccessfulRequests = len(res.RequestMetrics)
	res.ThroughputRPS = float64(res.SuccessfulRequests) / res.DurationSeconds

	return res
}

func createSamplePrometheus(at time.Time) *promquery.ExternalMetrics {
	values := map[string]float64{
		"request_throughput": 2.07,
		"avg_ttft":           0.171,
		"p95_ttft":           0.262,
		"avg_latency":        2.98,
		"p95_latency":        3.54,
		"gpu_cache_usage":    0.64,
		"token_throughput":   231.4,
	}

	m := &promquery.ExternalMetrics{
		Timestamp:            at,
		QueryDurationSeconds: 0.42,
		Metrics:              make(map[string]*float64, len(promquery.VLLMQueries)),
	}
	for _, q := range promquery.VLLMQueries {
		if v, ok := values[q.Name]; ok {
			m.Metrics[q.Name] = &v
		} else {
			m.Metrics[q.Name] = nil
		}
	}
	return m
}
