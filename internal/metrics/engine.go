// Package metrics keeps live, approximate statistics while a load test is
// running. Final reported figures are computed exactly by package stats;
// this package feeds progress output.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/llmload/llmload/internal/runner"
)

// Engine collects live request metrics using HDR histograms.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms use mutex protection.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist *hdrhistogram.Histogram
	ttftHist    *hdrhistogram.Histogram
	histMu      sync.Mutex

	completed    atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	outputTokens atomic.Int64

	inFlight     atomic.Int64
	peakInFlight atomic.Int64

	currentPhase Phase
	phaseMu      sync.RWMutex

	startTime time.Time
	startMu   sync.RWMutex

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist:  hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		ttftHist:     hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		currentPhase: PhaseInit,
		startTime:    time.Now(),
		config:       config,
	}
}

// Begin marks a request as dispatched and returns the new in-flight depth.
func (e *Engine) Begin() int64 {
	n := e.inFlight.Add(1)
	for {
		peak := e.peakInFlight.Load()
		if n <= peak || e.peakInFlight.CompareAndSwap(peak, n) {
			return n
		}
	}
}

// End marks a request as settled.
func (e *Engine) End() {
	e.inFlight.Add(-1)
}

// Record adds a settled measured request.
//
// Latency and TTFT of successful requests enter the histograms; a zero TTFT
// (no content) is not recorded.
func (e *Engine) Record(m runner.RequestMetrics) {
	e.completed.Add(1)

	if !m.Succeeded() {
		e.failed.Add(1)
		return
	}

	e.succeeded.Add(1)
	e.outputTokens.Add(int64(m.OutputTokens))

	e.histMu.Lock()
	e.latencyHist.RecordValue(e.clamp(msToMicros(m.E2ELatencyMs)))
	if m.TTFTMs > 0 {
		e.ttftHist.RecordValue(e.clamp(msToMicros(m.TTFTMs)))
	}
	e.histMu.Unlock()
}

func (e *Engine) clamp(micros int64) int64 {
	if micros < e.config.HistogramMin {
		return e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		return e.config.HistogramMax
	}
	return micros
}

func msToMicros(ms float64) int64 {
	return int64(ms * 1000)
}

// SetPhase updates the current test phase. Entering PhaseMeasure restarts
// the clock used for rates.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}
	e.currentPhase = phase

	if phase == PhaseMeasure {
		e.startMu.Lock()
		e.startTime = time.Now()
		e.startMu.Unlock()
	}
}

// GetPhase returns the current test phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// PeakInFlight returns the highest in-flight depth observed.
func (e *Engine) PeakInFlight() int64 {
	return e.peakInFlight.Load()
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.histMu.Lock()
	latency := statsFrom(e.latencyHist)
	ttft := statsFrom(e.ttftHist)
	e.histMu.Unlock()

	e.startMu.RLock()
	start := e.startTime
	e.startMu.RUnlock()

	elapsed := time.Since(start)
	succeeded := e.succeeded.Load()
	tokens := e.outputTokens.Load()

	var rps, tps float64
	if secs := elapsed.Seconds(); secs > 0 {
		rps = float64(succeeded) / secs
		tps = float64(tokens) / secs
	}

	return &Snapshot{
		Completed:       e.completed.Load(),
		Succeeded:       succeeded,
		Failed:          e.failed.Load(),
		InFlight:        e.inFlight.Load(),
		PeakInFlight:    e.peakInFlight.Load(),
		OutputTokens:    tokens,
		Latency:         latency,
		TTFT:            ttft,
		RPS:             rps,
		TokensPerSecond: tps,
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       start,
		Timestamp:       time.Now(),
	}
}

func statsFrom(h *hdrhistogram.Histogram) LatencyStats {
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.histMu.Lock()
	e.latencyHist.Reset()
	e.ttftHist.Reset()
	e.histMu.Unlock()

	e.completed.Store(0)
	e.succeeded.Store(0)
	e.failed.Store(0)
	e.outputTokens.Store(0)
	e.inFlight.Store(0)
	e.peakInFlight.Store(0)

	e.phaseMu.Lock()
	e.currentPhase = PhaseInit
	e.phaseMu.Unlock()

	e.startMu.Lock()
	e.startTime = time.Now()
	e.startMu.Unlock()
}
