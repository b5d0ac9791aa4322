// Package loadtest drives a streaming inference endpoint with a bounded
// number of concurrent requests and aggregates the results.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/metrics"
	"github.com/llmload/llmload/internal/prompt"
	"github.com/llmload/llmload/internal/runner"
)

// ErrNilConfig is returned by NewDriver when no configuration is given.
var ErrNilConfig = errors.New("loadtest: configuration is required")

// Driver runs load tests.
//
// A test is an optional warmup burst followed by a measured phase. Warmup
// requests are all started at once and are not bounded by the concurrency
// limit; their results are discarded. Measured requests run at most
// load.concurrency at a time.
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("bench.yaml")
//	driver, _ := loadtest.NewDriver(cfg)
//	result, _ := driver.Run(context.Background())
//	fmt.Printf("%.2f req/s\n", result.ThroughputRPS)
type Driver struct {
	cfg *config.Config

	client   *http.Client
	exec     Executor
	prompts  PromptSource
	live     *metrics.Engine
	observer Observer
	logger   *slog.Logger

	mu sync.Mutex
}

// NewDriver creates a driver for cfg, which must be valid.
func NewDriver(cfg *config.Config, opts ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d := &Driver{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.exec == nil {
		if d.client == nil {
			httpCfg := runner.DefaultHTTPClientConfig(cfg.Load.Concurrency)
			httpCfg.InsecureSkipVerify = cfg.Server.InsecureSkipVerify
			d.client = runner.NewHTTPClient(httpCfg)
		}
		d.exec = runner.New(d.client, runner.ConfigFrom(cfg))
	}
	if d.prompts == nil {
		d.prompts = prompt.NewGenerator(cfg.Prompt, nil)
	}
	if d.live == nil {
		d.live = metrics.NewEngine()
	}

	return d, nil
}

// Metrics returns the live metrics engine.
func (d *Driver) Metrics() *metrics.Engine {
	return d.live
}

// Run performs the warmup burst and one measured phase. Every call warms up
// again; use Repeat for several measured phases behind a single warmup.
//
// Individual request failures never abort the test. When ctx is cancelled no
// further requests are dispatched; the ones that never ran are recorded as
// cancelled failures and the partial result is returned with ctx.Err().
func (d *Driver) Run(ctx context.Context) (*TestResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.warmup(ctx)
	res := d.measure(ctx)
	return res, ctx.Err()
}

// Repeat runs the test n times and returns every result. The warmup burst
// is only sent before the first run. On cancellation the results gathered
// so far are returned with ctx.Err().
func (d *Driver) Repeat(ctx context.Context, n int) ([]*TestResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n < 1 {
		n = 1
	}

	d.warmup(ctx)

	results := make([]*TestResult, 0, n)
	for i := 0; i < n; i++ {
		d.logger.Info("starting run", slog.Int("run", i+1), slog.Int("of", n))
		res := d.measure(ctx)
		results = append(results, res)
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (d *Driver) warmup(ctx context.Context) {
	w := d.cfg.Load.WarmupRequests
	if w <= 0 || ctx.Err() != nil {
		return
	}

	d.logger.Info("warmup", slog.Int("requests", w))
	d.live.SetPhase(metrics.PhaseWarmup)
	d.phaseStarted(metrics.PhaseWarmup, w)

	var wg sync.WaitGroup
	var failed int
	var failedMu sync.Mutex

	for i := 0; i < w; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.live.Begin()
			m := d.exec.Run(ctx, fmt.Sprintf("warmup-%d", i), d.prompts.Generate())
			d.live.End()
			if !m.Succeeded() {
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
			d.requestDone(m)
		}(i)
	}
	wg.Wait()

	d.phaseFinished(metrics.PhaseWarmup)
	d.logger.Info("warmup complete", slog.Int("failed", failed))
}

func (d *Driver) measure(ctx context.Context) *TestResult {
	n := d.cfg.Load.NumRequests
	c := d.cfg.Load.Concurrency

	d.logger.Info("starting load test",
		slog.Int("requests", n),
		slog.Int("concurrency", c))

	d.live.Reset()
	d.live.SetPhase(metrics.PhaseMeasure)
	d.phaseStarted(metrics.PhaseMeasure, n)

	results := make([]runner.RequestMetrics, n)

	g := new(errgroup.Group)
	g.SetLimit(c)

	start := time.Now()
	dispatched := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		id := fmt.Sprintf("req-%d", i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = runner.Failed(id, time.Now(), runner.StatusCancelled, "request not dispatched: "+err.Error())
				d.live.Record(results[i])
				return nil
			}

			d.live.Begin()
			m := d.exec.Run(ctx, id, d.prompts.Generate())
			d.live.End()

			results[i] = m
			d.live.Record(m)
			d.requestDone(m)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()
	end := time.Now()

	for i := dispatched; i < n; i++ {
		results[i] = runner.Failed(fmt.Sprintf("req-%d", i), end, runner.StatusCancelled, "request not dispatched: "+ctx.Err().Error())
	}

	d.live.SetPhase(metrics.PhaseDone)
	d.phaseFinished(metrics.PhaseMeasure)

	res := newResult(d.cfg.Redacted(), uuid.NewString(), start, end, results, d.live.PeakInFlight())

	d.logger.Info("load test complete",
		slog.String("run_id", res.RunID),
		slog.Float64("duration_s", res.DurationSeconds),
		slog.Float64("throughput_rps", res.ThroughputRPS),
		slog.Int("successful", res.SuccessfulRequests),
		slog.Int("failed", res.FailedRequests))
	for _, msg := range res.Errors {
		d.logger.Warn("sample error", slog.String("error", msg))
	}

	return res
}

func (d *Driver) phaseStarted(phase metrics.Phase, total int) {
	if d.observer != nil {
		d.observer.PhaseStarted(phase, total)
	}
}

func (d *Driver) requestDone(m runner.RequestMetrics) {
	if d.observer != nil {
		d.observer.RequestDone(m, d.live.GetSnapshot())
	}
}

func (d *Driver) phaseFinished(phase metrics.Phase) {
	if d.observer != nil {
		d.observer.PhaseFinished(phase)
	}
}
