package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/llmload/llmload/internal/loadtest"
	"github.com/llmload/llmload/internal/metrics"
	"github.com/llmload/llmload/internal/runner"
)

var _ loadtest.Observer = (*Progress)(nil)

// Progress reports test progress. On a terminal it draws a progress bar;
// otherwise it prints a status line every tenth of the phase, which suits
// CI logs.
type Progress struct {
	writer      io.Writer
	interactive bool

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	phase   metrics.Phase
	total   int
	done    int
	failed  int
	decile  int
	started time.Time
}

// NewProgress creates a progress observer writing to w.
func NewProgress(w io.Writer, interactive bool) *Progress {
	return &Progress{writer: w, interactive: interactive}
}

// PhaseStarted implements loadtest.Observer.
func (p *Progress) PhaseStarted(phase metrics.Phase, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phase = phase
	p.total = total
	p.done = 0
	p.failed = 0
	p.decile = 0
	p.started = time.Now()

	if !p.interactive {
		fmt.Fprintf(p.writer, "%s: %d requests\n", phase, total)
		return
	}

	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription(string(phase)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("req"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.writer)
		}),
	)
}

// RequestDone implements loadtest.Observer.
func (p *Progress) RequestDone(m runner.RequestMetrics, snap *metrics.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if !m.Succeeded() {
		p.failed++
	}

	if p.bar != nil {
		if p.phase == metrics.PhaseMeasure && snap != nil {
			p.bar.Describe(fmt.Sprintf("%s | p95 %s | ttft p95 %s | failed %d",
				p.phase,
				formatDurationShort(snap.Latency.P95),
				formatDurationShort(snap.TTFT.P95),
				p.failed))
		}
		_ = p.bar.Add(1)
		return
	}

	if p.total <= 0 {
		return
	}
	decile := p.done * 10 / p.total
	if decile <= p.decile {
		return
	}
	p.decile = decile
	p.writeStatus(snap)
}

func (p *Progress) writeStatus(snap *metrics.Snapshot) {
	line := fmt.Sprintf("[%s] %s: %d/%d (%.0f%%) | failed %d",
		formatDuration(time.Since(p.started)),
		p.phase, p.done, p.total,
		float64(p.done)/float64(p.total)*100,
		p.failed)
	if p.phase == metrics.PhaseMeasure && snap != nil {
		line += fmt.Sprintf(" | RPS %.1f | in-flight %d | p95 %s | ttft p95 %s",
			snap.RPS, snap.InFlight,
			formatDurationShort(snap.Latency.P95),
			formatDurationShort(snap.TTFT.P95))
	}
	fmt.Fprintln(p.writer, line)
}

// PhaseFinished implements loadtest.Observer.
func (p *Progress) PhaseFinished(phase metrics.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
		return
	}
	fmt.Fprintf(p.writer, "%s complete: %d/%d succeeded in %s\n",
		phase, p.done-p.failed, p.done, formatDuration(time.Since(p.started)))
}
