package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/llmload/llmload/internal/runner"
)

// htmlData contains all data needed to render the HTML report.
type htmlData struct {
	*Report
	RequestsJSON template.JS
	Metrics      []namedMetric
}

type namedMetric struct {
	Name  string
	Value *float64
}

// requestPoint is a single request in the charts.
type requestPoint struct {
	ID          string  `json:"id"`
	OffsetS     float64 `json:"offsetS"`
	LatencyMs   float64 `json:"latencyMs"`
	TTFTMs      float64 `json:"ttftMs"`
	TokensPerS  float64 `json:"tokensPerS"`
	OutputToken int     `json:"outputTokens"`
}

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate))

// WriteHTML renders the report as a self-contained HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}

	points, err := requestsJSON(r.requests)
	if err != nil {
		return fmt.Errorf("failed to convert requests: %w", err)
	}

	data := htmlData{
		Report:       r,
		RequestsJSON: template.JS(points),
	}
	if r.Prometheus != nil {
		data.Metrics = sortedMetrics(r.Prometheus.Metrics)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	_, err = buf.WriteTo(w)
	return err
}

func requestsJSON(requests []runner.RequestMetrics) (string, error) {
	if len(requests) == 0 {
		return "[]", nil
	}

	first := requests[0].StartTime
	for _, m := range requests[1:] {
		if m.StartTime.Before(first) {
			first = m.StartTime
		}
	}

	points := make([]requestPoint, len(requests))
	for i, m := range requests {
		points[i] = requestPoint{
			ID:          m.ID,
			OffsetS:     m.StartTime.Sub(first).Seconds(),
			LatencyMs:   m.E2ELatencyMs,
			TTFTMs:      m.TTFTMs,
			TokensPerS:  m.TokensPerSecond,
			OutputToken: m.OutputTokens,
		}
	}

	b, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(b), nil
}

func sortedMetrics(m map[string]*float64) []namedMetric {
	out := make([]namedMetric, 0, len(m))
	for name, v := range m {
		out = append(out, namedMetric{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatMs":       formatMs,
		"formatSeconds":  formatSeconds,
		"formatNumber":   formatNumber,
		"formatOptional": formatOptional,
		"successRate":    successRate,
	}
}

// formatMs formats a millisecond value in a human-readable way.
func formatMs(ms float64) string {
	switch {
	case ms == 0:
		return "0"
	case ms < 10:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 100:
		return fmt.Sprintf("%.1fms", ms)
	case ms < 1000:
		return fmt.Sprintf("%dms", int(ms))
	case ms < 10000:
		return fmt.Sprintf("%.2fs", ms/1000)
	default:
		return fmt.Sprintf("%.1fs", ms/1000)
	}
}

// formatSeconds formats a duration given in seconds.
func formatSeconds(s float64) string {
	if s < 60 {
		return fmt.Sprintf("%.1fs", s)
	}
	mins := int(s) / 60
	secs := int(s) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// formatNumber formats an integer with thousands separators.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}

	var b bytes.Buffer
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatOptional formats a metric that may be unavailable.
func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", *v)
}

// successRate returns the share of successful requests as a percentage.
func successRate(s Summary) float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
}
