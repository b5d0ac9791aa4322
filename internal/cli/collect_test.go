package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmload/llmload/internal/promquery"
)

// newFakePrometheus answers every range query with the same two samples.
func newFakePrometheus(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{},"values":[[1700000000,"1.5"],[1700000015,"2.5"]]}]}}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestCollectCmd_JSON(t *testing.T) {
	prom := newFakePrometheus(t)

	out, _, err := runCLI(t, "collect",
		"--prometheus-url", prom.URL,
		"--start", "1700000000",
		"--end", "1700000060",
		"--json")
	require.NoError(t, err)

	var metrics promquery.ExternalMetrics
	require.NoError(t, json.Unmarshal([]byte(out), &metrics))
	require.Len(t, metrics.Metrics, len(promquery.VLLMQueries))
	for name, v := range metrics.Metrics {
		require.NotNil(t, v, name)
		assert.InDelta(t, 2.0, *v, 1e-9, name)
	}
}

func TestCollectCmd_Table(t *testing.T) {
	prom := newFakePrometheus(t)

	out, _, err := runCLI(t, "collect", "--prometheus-url", prom.URL, "--last", "5m")
	require.NoError(t, err)
	assert.Contains(t, out, "8/8 available")
	assert.Contains(t, out, "gpu_cache_usage")
}

func TestCollectCmd_InvalidWindow(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no start", args: nil, want: "either --start or --last"},
		{name: "both", args: []string{"--start", "1700000000", "--last", "1m"}, want: "mutually exclusive"},
		{name: "bad start", args: []string{"--start", "yesterday"}, want: "invalid --start"},
		{name: "bad end", args: []string{"--last", "1m", "--end", "soon"}, want: "invalid --end"},
		{name: "reversed", args: []string{"--start", "1700000060", "--end", "1700000000"}, want: "after start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"collect"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("1700000000.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(got.Nanosecond()))

	got, err = parseTime("2024-03-15T14:30:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)))

	_, err = parseTime("noon")
	assert.Error(t, err)
}

func TestCollectWindow_Last(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	opts := &collectOptions{last: 10 * time.Minute}

	start, end, err := opts.window(now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
	assert.Equal(t, now.Add(-10*time.Minute), start)
}
