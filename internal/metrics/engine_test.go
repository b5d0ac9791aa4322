package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/llmload/llmload/internal/runner"
)

func ok(latencyMs, ttftMs float64, tokens int) runner.RequestMetrics {
	return runner.RequestMetrics{
		E2ELatencyMs: latencyMs,
		TTFTMs:       ttftMs,
		OutputTokens: tokens,
		Status:       runner.StatusOK,
	}
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine()
	if engine == nil {
		t.Fatal("NewEngine() returned nil")
	}

	snapshot := engine.GetSnapshot()
	if snapshot.Completed != 0 {
		t.Errorf("Initial Completed = %d, want 0", snapshot.Completed)
	}
	if snapshot.CurrentPhase != PhaseInit {
		t.Errorf("Initial phase = %v, want %v", snapshot.CurrentPhase, PhaseInit)
	}
	if snapshot.Latency.Count != 0 {
		t.Errorf("Initial latency count = %d, want 0", snapshot.Latency.Count)
	}
}

func TestEngine_Record(t *testing.T) {
	engine := NewEngine()

	engine.Record(ok(100, 10, 20))
	engine.Record(ok(200, 0, 30))
	engine.Record(runner.Failed("req-2", time.Now(), runner.StatusHTTPError, "HTTP 500: boom"))

	snapshot := engine.GetSnapshot()

	if snapshot.Completed != 3 {
		t.Errorf("Completed = %d, want 3", snapshot.Completed)
	}
	if snapshot.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", snapshot.Succeeded)
	}
	if snapshot.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snapshot.Failed)
	}
	if snapshot.OutputTokens != 50 {
		t.Errorf("OutputTokens = %d, want 50", snapshot.OutputTokens)
	}
	if snapshot.Latency.Count != 2 {
		t.Errorf("Latency count = %d, want 2", snapshot.Latency.Count)
	}
	// zero TTFT means no content and is not recorded
	if snapshot.TTFT.Count != 1 {
		t.Errorf("TTFT count = %d, want 1", snapshot.TTFT.Count)
	}
}

func TestEngine_LatencyPercentiles(t *testing.T) {
	engine := NewEngine()

	for i := 1; i <= 10; i++ {
		engine.Record(ok(float64(i*10), float64(i), 1))
	}

	latency := engine.GetSnapshot().Latency

	// HDR histogram binning allows some tolerance
	if latency.P50 < 40*time.Millisecond || latency.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms (±10ms)", latency.P50)
	}
	if latency.P99 < 90*time.Millisecond || latency.P99 > 110*time.Millisecond {
		t.Errorf("P99 = %v, want ~100ms (±10ms)", latency.P99)
	}
	if latency.Min < 9*time.Millisecond || latency.Min > 11*time.Millisecond {
		t.Errorf("Min = %v, want ~10ms", latency.Min)
	}
	if latency.Max < 99*time.Millisecond || latency.Max > 101*time.Millisecond {
		t.Errorf("Max = %v, want ~100ms", latency.Max)
	}
}

func TestEngine_InFlight(t *testing.T) {
	engine := NewEngine()

	engine.Begin()
	engine.Begin()
	if depth := engine.Begin(); depth != 3 {
		t.Errorf("Begin() depth = %d, want 3", depth)
	}
	engine.End()
	engine.End()

	if got := engine.GetSnapshot().InFlight; got != 1 {
		t.Errorf("InFlight = %d, want 1", got)
	}
	if engine.PeakInFlight() != 3 {
		t.Errorf("PeakInFlight = %d, want 3", engine.PeakInFlight())
	}

	engine.Reset()
	if engine.PeakInFlight() != 0 {
		t.Errorf("After Reset, PeakInFlight = %d, want 0", engine.PeakInFlight())
	}
}

func TestEngine_ConcurrentPeak(t *testing.T) {
	engine := NewEngine()

	const workers = 50
	var ready, release sync.WaitGroup
	ready.Add(workers)
	release.Add(1)

	var done sync.WaitGroup
	for i := 0; i < workers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			engine.Begin()
			ready.Done()
			release.Wait()
			engine.Record(ok(5, 1, 1))
			engine.End()
		}()
	}

	ready.Wait()
	release.Done()
	done.Wait()

	if engine.PeakInFlight() != workers {
		t.Errorf("PeakInFlight = %d, want %d", engine.PeakInFlight(), workers)
	}
	if got := engine.GetSnapshot().InFlight; got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}
	if got := engine.GetSnapshot().Completed; got != workers {
		t.Errorf("Completed = %d, want %d", got, workers)
	}
}

func TestEngine_Phase(t *testing.T) {
	engine := NewEngine()

	phases := []Phase{PhaseWarmup, PhaseMeasure, PhaseDone}
	for _, phase := range phases {
		engine.SetPhase(phase)
		if engine.GetPhase() != phase {
			t.Errorf("After SetPhase(%v), GetPhase() = %v", phase, engine.GetPhase())
		}
	}
}

func TestEngine_MeasureRestartsClock(t *testing.T) {
	engine := NewEngine()
	before := engine.GetSnapshot().StartTime

	time.Sleep(5 * time.Millisecond)
	engine.SetPhase(PhaseMeasure)

	if !engine.GetSnapshot().StartTime.After(before) {
		t.Error("entering PhaseMeasure should restart the clock")
	}
}

func TestEngine_Clamp(t *testing.T) {
	engine := NewEngineWithConfig(EngineConfig{HistogramMin: 1, HistogramMax: 1000000, HistogramSigFigs: 2})

	engine.Record(ok(0.0001, 0, 0))
	engine.Record(ok(5000000, 0, 0))

	latency := engine.GetSnapshot().Latency
	if latency.Count != 2 {
		t.Fatalf("Count = %d, want 2", latency.Count)
	}
	if latency.Max > 1100*time.Millisecond {
		t.Errorf("Max = %v, want clamped to ~1s", latency.Max)
	}
}

func TestEngine_Reset(t *testing.T) {
	engine := NewEngine()

	engine.Record(ok(10, 1, 3))
	engine.Begin()
	engine.SetPhase(PhaseMeasure)

	engine.Reset()

	snapshot := engine.GetSnapshot()
	if snapshot.Completed != 0 || snapshot.Succeeded != 0 || snapshot.OutputTokens != 0 {
		t.Errorf("After reset, counters = %+v, want zero", snapshot)
	}
	if snapshot.InFlight != 0 || snapshot.PeakInFlight != 0 {
		t.Errorf("After reset, in-flight = %d/%d, want 0/0", snapshot.InFlight, snapshot.PeakInFlight)
	}
	if snapshot.CurrentPhase != PhaseInit {
		t.Errorf("After reset, phase = %v, want %v", snapshot.CurrentPhase, PhaseInit)
	}
	if snapshot.Latency.Count != 0 {
		t.Errorf("After reset, latency count = %d, want 0", snapshot.Latency.Count)
	}
}
