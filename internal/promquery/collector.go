// Package promquery correlates a load test with server-side metrics stored
// in Prometheus.
package promquery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/llmload/llmload/internal/config"
)

const (
	// DefaultStep is the range query resolution
	DefaultStep = 15 * time.Second

	// WindowPadding widens the query window on both sides of the test
	WindowPadding = 5 * time.Second
)

// ExternalMetrics holds server-side metrics for one test window.
//
// A nil value means the metric is unavailable: its query failed or returned
// no samples. It is distinct from a measured zero.
type ExternalMetrics struct {
	Timestamp            time.Time           `json:"timestamp" yaml:"timestamp"`
	QueryDurationSeconds float64             `json:"query_duration_seconds" yaml:"query_duration_seconds"`
	Metrics              map[string]*float64 `json:"metrics" yaml:"metrics"`
}

// Available returns how many metrics have a value.
func (m *ExternalMetrics) Available() int {
	n := 0
	for _, v := range m.Metrics {
		if v != nil {
			n++
		}
	}
	return n
}

// Collector runs range queries against a Prometheus server.
type Collector struct {
	api     v1.API
	step    time.Duration
	queries []Query
	logger  *slog.Logger
	client  *http.Client
}

// Option configures a Collector.
type Option func(*Collector)

// WithHTTPClient sets the HTTP client used for queries.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) {
		c.client = client
	}
}

// WithStep sets the range query resolution.
func WithStep(step time.Duration) Option {
	return func(c *Collector) {
		if step > 0 {
			c.step = step
		}
	}
}

// WithQueries replaces the query table.
func WithQueries(queries []Query) Option {
	return func(c *Collector) {
		c.queries = queries
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector creates a collector for the Prometheus server at baseURL.
func NewCollector(baseURL string, opts ...Option) (*Collector, error) {
	c := &Collector{
		step:    DefaultStep,
		queries: VLLMQueries,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := api.Config{Address: strings.TrimRight(baseURL, "/")}
	if c.client != nil {
		cfg.Client = c.client
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	c.api = v1.NewAPI(client)

	return c, nil
}

// Collect queries every metric over [start-5s, end+5s]. It never fails:
// metrics that cannot be read are nil.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) *ExternalMetrics {
	began := time.Now()
	duration := end.Sub(start)
	r := v1.Range{
		Start: start.Add(-WindowPadding),
		End:   end.Add(WindowPadding),
		Step:  c.step,
	}

	out := &ExternalMetrics{Metrics: make(map[string]*float64, len(c.queries))}
	for _, q := range c.queries {
		out.Metrics[q.Name] = c.query(ctx, q, duration, r)
	}

	out.Timestamp = time.Now()
	out.QueryDurationSeconds = time.Since(began).Seconds()
	return out
}

func (c *Collector) query(ctx context.Context, q Query, duration time.Duration, r v1.Range) *float64 {
	promQL := q.Render(duration)

	value, warnings, err := c.api.QueryRange(ctx, promQL, r)
	if err != nil {
		c.logger.Warn("prometheus query failed",
			slog.String("metric", q.Name),
			slog.String("error", err.Error()))
		return nil
	}
	for _, w := range warnings {
		c.logger.Debug("prometheus warning", slog.String("metric", q.Name), slog.String("warning", w))
	}

	matrix, ok := value.(model.Matrix)
	if !ok || len(matrix) == 0 {
		return nil
	}
	return meanOf(matrix[0].Values)
}

// meanOf averages the non-NaN samples of a series, or returns nil when there
// are none.
func meanOf(samples []model.SamplePair) *float64 {
	var sum float64
	var n int
	for _, s := range samples {
		v := float64(s.Value)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// CollectIfEnabled collects metrics when cfg enables it. It returns nil when
// collection is disabled or the collector cannot be created, logging a
// warning in the latter case.
func CollectIfEnabled(ctx context.Context, cfg config.PrometheusConfig, start, end time.Time, logger *slog.Logger) *ExternalMetrics {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector, err := NewCollector(cfg.URL,
		WithStep(cfg.Step.Std()),
		WithLogger(logger))
	if err != nil {
		logger.Warn("failed to collect prometheus metrics", slog.String("error", err.Error()))
		return nil
	}

	if timeout := cfg.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	metrics := collector.Collect(ctx, start, end)
	if metrics.Available() == 0 {
		logger.Warn("no prometheus metrics available", slog.String("url", cfg.URL))
	}
	return metrics
}
