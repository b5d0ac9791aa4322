package promquery

import (
	"strconv"
	"strings"
	"time"
)

// Query is a named PromQL template. "{duration}" is replaced with the test
// duration in whole seconds.
type Query struct {
	Name     string
	Template string
}

// VLLMQueries are the server-side metrics collected for a vLLM deployment.
var VLLMQueries = []Query{
	{Name: "request_throughput", Template: `rate(vllm:num_requests_total[{duration}s])`},
	{Name: "avg_ttft", Template: `histogram_quantile(0.5, rate(vllm:time_to_first_token_seconds_bucket[{duration}s]))`},
	{Name: "p95_ttft", Template: `histogram_quantile(0.95, rate(vllm:time_to_first_token_seconds_bucket[{duration}s]))`},
	{Name: "avg_latency", Template: `histogram_quantile(0.5, rate(vllm:time_per_request_seconds_bucket[{duration}s]))`},
	{Name: "p95_latency", Template: `histogram_quantile(0.95, rate(vllm:time_per_request_seconds_bucket[{duration}s]))`},
	{Name: "gpu_cache_usage", Template: `avg(vllm:gpu_cache_usage_perc)`},
	{Name: "queue_size", Template: `avg(vllm:waiting_queue_size)`},
	{Name: "token_throughput", Template: `rate(vllm:num_generation_tokens[{duration}s])`},
}

// Render substitutes the test duration into the template.
func (q Query) Render(duration time.Duration) string {
	secs := int64(duration / time.Second)
	return strings.ReplaceAll(q.Template, "{duration}", strconv.FormatInt(secs, 10))
}
