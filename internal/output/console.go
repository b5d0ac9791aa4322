package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/loadtest"
	"github.com/llmload/llmload/internal/promquery"
	"github.com/llmload/llmload/internal/stats"
)

const ruleWidth = 56

// Console prints human-readable run output.
type Console struct {
	writer  io.Writer
	colors  *ColorScheme
	noColor bool
	quiet   bool

	mu sync.Mutex
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer  io.Writer
	NoColor bool
	Quiet   bool
}

// NewConsole creates a console printer. Colors are disabled when requested
// or when the writer is not a color-capable terminal.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	noColor := cfg.NoColor || !SupportsColors(cfg.Writer)
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}

	return &Console{
		writer:  cfg.Writer,
		colors:  colors,
		noColor: noColor,
		quiet:   cfg.Quiet,
	}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.writer
}

// Quiet reports whether only the final status is printed.
func (c *Console) Quiet() bool {
	return c.quiet
}

// PrintHeader prints the test parameters.
func (c *Console) PrintHeader(cfg *config.Config) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat("━", ruleWidth)
	c.writeln(c.colors.Title.Sprint(line))
	c.writeln(c.colors.Title.Sprintf("llmload - %s", cfg.Server.Model))
	c.writeln(c.colors.Title.Sprint(line))
	c.writeln(fmt.Sprintf("Target:        %s", c.colors.Value.Sprint(cfg.Server.BaseURL)))
	c.writeln(fmt.Sprintf("Starting load test: %d requests with concurrency %d",
		cfg.Load.NumRequests, cfg.Load.Concurrency))
	if cfg.Load.WarmupRequests > 0 {
		c.writeln(fmt.Sprintf("Warmup:        %d requests", cfg.Load.WarmupRequests))
	}
	c.writeln("")
}

// PrintResult prints the outcome of one measured phase.
func (c *Console) PrintResult(res *loadtest.TestResult) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.colors.Success.Sprint("Completed " + SuccessIcon(true))
	if res.FailedRequests > 0 {
		status = c.colors.Error.Sprint("Completed with failures " + ErrorIcon(true))
	}

	c.writeln("")
	c.writeln(fmt.Sprintf("=== Load Test %s ===", status))
	c.writeln(fmt.Sprintf("Run ID:        %s", c.colors.Muted.Sprint(res.RunID)))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprintf("%.2fs", res.DurationSeconds)))
	c.writeln(fmt.Sprintf("Throughput:    %s", c.colors.Value.Sprintf("%.2f req/s", res.ThroughputRPS)))
	c.writeln(fmt.Sprintf("Successful:    %d/%d", res.SuccessfulRequests, res.TotalRequests))

	failed := fmt.Sprintf("%d/%d", res.FailedRequests, res.TotalRequests)
	if res.FailedRequests > 0 {
		failed = c.colors.Error.Sprint(failed)
	}
	c.writeln(fmt.Sprintf("Failed:        %s", failed))
	c.writeln(fmt.Sprintf("Peak in-flight: %d", res.PeakInFlight))

	if len(res.Errors) > 0 {
		c.writeln("")
		c.writeln(c.colors.Warn.Sprint("Sample errors:"))
		for _, msg := range res.Errors {
			c.writeln(fmt.Sprintf("  - %s", msg))
		}
	}
}

// PrintStatistics prints latency, TTFT and token throughput.
func (c *Console) PrintStatistics(s stats.Statistics) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln("")
	c.writeln(c.colors.Highlight.Sprint("=== Statistics ==="))
	c.writeln(fmt.Sprintf("Latency (ms):  avg=%.1f  p50=%.1f  p95=%.1f  p99=%.1f",
		s.AvgLatencyMs, s.P50LatencyMs, s.P95LatencyMs, s.P99LatencyMs))
	c.writeln(fmt.Sprintf("TTFT (ms):     avg=%.1f  p50=%.1f  p95=%.1f  p99=%.1f",
		s.AvgTTFTMs, s.P50TTFTMs, s.P95TTFTMs, s.P99TTFTMs))
	c.writeln(fmt.Sprintf("Tokens/sec:    %.1f", s.AvgTokensPerSecond))
}

// PrintPrometheus prints server-side metrics. Nothing is printed for nil.
func (c *Console) PrintPrometheus(m *promquery.ExternalMetrics) {
	if c.quiet || m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(m.Metrics))
	width := 0
	for name := range m.Metrics {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	c.writeln("")
	c.writeln(c.colors.Highlight.Sprintf("=== Server Metrics (%d/%d available) ===", m.Available(), len(m.Metrics)))
	for _, name := range names {
		value := c.colors.Muted.Sprint("n/a")
		if v := m.Metrics[name]; v != nil {
			value = c.colors.Value.Sprintf("%.4g", *v)
		}
		c.writeln(fmt.Sprintf("  %-*s  %s", width, name, value))
	}
}

// PrintVerdict prints a reproducibility verdict.
func (c *Console) PrintVerdict(v stats.Verdict) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := SuccessIcon(c.noColor)
	if !v.Reproducible {
		icon = ErrorIcon(c.noColor)
	}

	c.writeln("")
	c.writeln(c.colors.Highlight.Sprint("=== Reproducibility ==="))
	if len(v.Values) > 0 {
		parts := make([]string, len(v.Values))
		for i, x := range v.Values {
			parts[i] = fmt.Sprintf("%.2f", x)
		}
		c.writeln(fmt.Sprintf("Throughputs:   %s req/s", strings.Join(parts, ", ")))
	}
	c.writeln(fmt.Sprintf("%s %s", icon, v.Message))
}

// PrintReports lists written report files.
func (c *Console) PrintReports(paths []string) {
	if c.quiet || len(paths) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln("")
	for _, p := range paths {
		c.writeln(fmt.Sprintf("Report saved to: %s", c.colors.Value.Sprint(p)))
	}
}

// PrintStatus prints the final PASSED or FAILED line. It is the only output
// in quiet mode.
func (c *Console) PrintStatus(passed bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if passed {
		c.writeln(c.colors.Success.Sprintf("PASSED (%s)", formatDuration(elapsed)))
	} else {
		c.writeln(c.colors.Error.Sprintf("FAILED (%s)", formatDuration(elapsed)))
	}
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
