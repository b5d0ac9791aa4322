package cli

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/mockserver"
	"github.com/llmload/llmload/internal/report"
)

func startMock(t *testing.T, cfg mockserver.Config) (*mockserver.Server, string) {
	t.Helper()
	s := mockserver.New(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts.URL + "/v1"
}

func reportFiles(t *testing.T, dir, pattern string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	require.NoError(t, err)
	return files
}

func TestRunCmd_AgainstMock(t *testing.T) {
	mock, baseURL := startMock(t, mockserver.Config{Tokens: 4})
	dir := t.TempDir()

	out, stderr, err := runCLI(t, "run",
		"--base-url", baseURL,
		"--model", "m",
		"--num-requests", "6",
		"--concurrency", "2",
		"--warmup", "2",
		"--output", dir,
		"--format", "html,yaml")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "Starting load test: 6 requests with concurrency 2")
	assert.Contains(t, out, "Successful:    6/6")
	assert.Contains(t, out, "=== Statistics ===")
	assert.Contains(t, out, "Report saved to:")
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, stderr, "measure complete: 6/6 succeeded")

	assert.Equal(t, int64(8), mock.Stats().Requests)
	assert.LessOrEqual(t, mock.Stats().PeakInFlight, int64(2+2))

	jsonFiles := reportFiles(t, dir, "benchmark_*.json")
	require.Len(t, jsonFiles, 1)
	assert.Len(t, reportFiles(t, dir, "benchmark_*.html"), 1)
	assert.Len(t, reportFiles(t, dir, "benchmark_*.yaml"), 1)

	rep, err := report.Load(jsonFiles[0])
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Summary.TotalRequests)
	assert.Equal(t, 6, rep.Summary.SuccessfulRequests)
	assert.Equal(t, "***", rep.Metadata.Config.Server.APIKey)
	assert.Nil(t, rep.Prometheus)
	assert.Nil(t, rep.Reproducibility)
	assert.Greater(t, rep.Latency.AvgMs, 0.0)
}

func TestRunCmd_DefaultWarmup(t *testing.T) {
	mock, baseURL := startMock(t, mockserver.Config{Tokens: 1})

	_, stderr, err := runCLI(t, "run",
		"--base-url", baseURL,
		"--num-requests", "2",
		"--concurrency", "2",
		"--output", t.TempDir(),
		"-q")
	require.NoError(t, err, stderr)

	assert.Equal(t, int64(2+config.DefaultWarmupRequests), mock.Stats().Requests)
}

func TestRunCmd_FailuresExitNonZero(t *testing.T) {
	_, baseURL := startMock(t, mockserver.Config{FailureRate: 1})
	dir := t.TempDir()

	out, _, err := runCLI(t, "run",
		"--base-url", baseURL,
		"--num-requests", "3",
		"--concurrency", "3",
		"--warmup", "0",
		"--output", dir)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)

	assert.Contains(t, out, "Failed:        3/3")
	assert.Contains(t, out, "Sample errors:")
	assert.Contains(t, out, "HTTP 503")
	assert.Contains(t, out, "FAILED")

	// a failed run still leaves a report
	assert.Len(t, reportFiles(t, dir, "benchmark_*.json"), 1)
}

func TestRunCmd_Quiet(t *testing.T) {
	_, baseURL := startMock(t, mockserver.Config{Tokens: 1})

	out, stderr, err := runCLI(t, "run",
		"--base-url", baseURL,
		"--num-requests", "2",
		"--warmup", "0",
		"--output", t.TempDir(),
		"--quiet")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "PASSED"), out)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
	assert.NotContains(t, stderr, "measure")
}

func TestRunCmd_Repeat(t *testing.T) {
	_, baseURL := startMock(t, mockserver.Config{Tokens: 2})
	dir := t.TempDir()

	out, _, err := runCLI(t, "run",
		"--base-url", baseURL,
		"--num-requests", "4",
		"--concurrency", "2",
		"--warmup", "0",
		"--repeat", "2",
		"--max-cv", "1000",
		"--output", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Reproducibility ===")
	assert.Contains(t, out, "Variance within limits")

	files := reportFiles(t, dir, "benchmark_*.json")
	require.Len(t, files, 2)
	for _, f := range files {
		rep, err := report.Load(f)
		require.NoError(t, err)
		require.NotNil(t, rep.Reproducibility)
		assert.True(t, rep.Reproducibility.Reproducible)
		assert.Len(t, rep.Reproducibility.Values, 2)
	}
}

func TestRunCmd_Preflight(t *testing.T) {
	mock, baseURL := startMock(t, mockserver.Config{Models: []string{"served-model"}, Tokens: 1, APIKey: "k"})
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server:
  base_url: "`+baseURL+`"
  model: "missing-model"
  api_key: "k"
load:
  concurrency: 1
  num_requests: 2
  warmup_requests: 0
report:
  output_dir: "`+filepath.ToSlash(dir)+`"
`), 0644))

	_, stderr, err := runCLI(t, "--log-level", "info", "run", "--config", cfgPath, "--preflight")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "configured model not served")
	assert.Equal(t, int64(0), mock.Stats().Failures)

	files := reportFiles(t, dir, "benchmark_*.json")
	require.Len(t, files, 1)
	rep, err := report.Load(files[0])
	require.NoError(t, err)
	assert.Equal(t, "served-model", rep.Metadata.Config.Server.Model)
	assert.Equal(t, 2, rep.Summary.SuccessfulRequests)
}

func TestRunCmd_PreflightUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	_, _, err := runCLI(t, "run", "--base-url", url+"/v1", "--preflight", "--output", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight failed")
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "negative concurrency", args: []string{"--concurrency", "-1"}, want: "load.concurrency"},
		{name: "bad base url", args: []string{"--base-url", "ftp://x"}, want: "server.base_url"},
		{name: "bad format", args: []string{"--format", "pdf"}, want: "report.formats[0]"},
		{name: "missing config file", args: []string{"--config", "does-not-exist.yaml"}, want: "failed to load config"},
		{name: "positional argument", args: []string{"extra"}, want: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"run"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunCmd_ReportIsJSON(t *testing.T) {
	_, baseURL := startMock(t, mockserver.Config{Tokens: 1})
	dir := t.TempDir()

	_, _, err := runCLI(t, "run", "--base-url", baseURL, "--num-requests", "1", "--warmup", "0", "--output", dir, "-q")
	require.NoError(t, err)

	files := reportFiles(t, dir, "benchmark_*.json")
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"metadata", "summary", "latency", "ttft", "throughput"} {
		assert.Contains(t, doc, key)
	}
}
