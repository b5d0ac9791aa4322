package report

// htmlTemplate is the page layout for the HTML report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>LLM Benchmark Report - {{.Metadata.RunID}}</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --muted: #64748b;
            --border: #e2e8f0;
            --accent: #3b82f6;
            --success: #22c55e;
            --error: #ef4444;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.6;
        }
        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--card);
            border: 1px solid var(--border);
            border-radius: 10px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        .header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        .header h1 { font-size: 1.5rem; }
        .meta { color: var(--muted); font-size: 0.875rem; }
        .status { padding: 0.4rem 1rem; border-radius: 999px; font-weight: 600; color: #fff; }
        .status.pass { background: var(--success); }
        .status.fail { background: var(--error); }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
        .metric .label { color: var(--muted); font-size: 0.8rem; text-transform: uppercase; }
        .metric .value { font-size: 1.5rem; font-weight: 700; }
        h2 { font-size: 1.1rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid var(--border); }
        th { color: var(--muted); font-weight: 600; font-size: 0.8rem; }
        .chart { position: relative; height: 300px; }
        footer { text-align: center; color: var(--muted); font-size: 0.8rem; padding: 1rem; }
    </style>
</head>
<body>
<div class="container">
    <div class="card header">
        <div>
            <h1>LLM Benchmark Report</h1>
            <div class="meta">Run {{.Metadata.RunID}} &middot; {{.Metadata.Timestamp.Format "2006-01-02 15:04:05 MST"}}</div>
            {{with .Metadata.Config}}<div class="meta">{{.Server.Model}} @ {{.Server.BaseURL}} &middot; concurrency {{.Load.Concurrency}}</div>{{end}}
        </div>
        {{if .Passed}}<span class="status pass">PASSED</span>{{else}}<span class="status fail">FAILED</span>{{end}}
    </div>

    <div class="card">
        <h2>Summary</h2>
        <div class="grid">
            <div class="metric"><div class="label">Duration</div><div class="value">{{formatSeconds .Summary.DurationSeconds}}</div></div>
            <div class="metric"><div class="label">Requests</div><div class="value">{{formatNumber .Summary.TotalRequests}}</div></div>
            <div class="metric"><div class="label">Success Rate</div><div class="value">{{printf "%.1f" (successRate .Summary)}}%</div></div>
            <div class="metric"><div class="label">Failed</div><div class="value">{{formatNumber .Summary.FailedRequests}}</div></div>
            <div class="metric"><div class="label">Throughput</div><div class="value">{{printf "%.2f" .Summary.ThroughputRPS}} req/s</div></div>
            <div class="metric"><div class="label">Tokens/s</div><div class="value">{{printf "%.1f" .Throughput.TokensPerSecond}}</div></div>
        </div>
    </div>

    <div class="card">
        <h2>Latency</h2>
        <table>
            <tr><th></th><th>Avg</th><th>Min</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th><th>Std Dev</th></tr>
            {{with .Latency}}<tr><td>End-to-end</td><td>{{formatMs .AvgMs}}</td><td>{{formatMs .MinMs}}</td><td>{{formatMs .P50Ms}}</td><td>{{formatMs .P90Ms}}</td><td>{{formatMs .P95Ms}}</td><td>{{formatMs .P99Ms}}</td><td>{{formatMs .MaxMs}}</td><td>{{formatMs .StdMs}}</td></tr>{{end}}
            {{with .TTFT}}<tr><td>Time to first token</td><td>{{formatMs .AvgMs}}</td><td>{{formatMs .MinMs}}</td><td>{{formatMs .P50Ms}}</td><td>{{formatMs .P90Ms}}</td><td>{{formatMs .P95Ms}}</td><td>{{formatMs .P99Ms}}</td><td>{{formatMs .MaxMs}}</td><td>{{formatMs .StdMs}}</td></tr>{{end}}
        </table>
    </div>

    <div class="card">
        <h2>Per-Request Latency</h2>
        <div class="chart"><canvas id="latencyChart"></canvas></div>
    </div>

    {{if .Metrics}}
    <div class="card">
        <h2>Server Metrics</h2>
        <table>
            <tr><th>Metric</th><th>Value</th></tr>
            {{range .Metrics}}<tr><td>{{.Name}}</td><td>{{formatOptional .Value}}</td></tr>
            {{end}}
        </table>
    </div>
    {{end}}

    {{with .Reproducibility}}
    <div class="card">
        <h2>Reproducibility</h2>
        <p>{{.Message}}</p>
    </div>
    {{end}}

    <footer>Generated by llmload</footer>
</div>
<script>
    const requests = {{.RequestsJSON}};
    if (requests.length > 0) {
        new Chart(document.getElementById('latencyChart'), {
            type: 'scatter',
            data: {
                datasets: [
                    {
                        label: 'End-to-end (ms)',
                        data: requests.map(r => ({x: r.offsetS, y: r.latencyMs})),
                        backgroundColor: '#3b82f6'
                    },
                    {
                        label: 'TTFT (ms)',
                        data: requests.map(r => ({x: r.offsetS, y: r.ttftMs})),
                        backgroundColor: '#22c55e'
                    }
                ]
            },
            options: {
                maintainAspectRatio: false,
                scales: {
                    x: {title: {display: true, text: 'Start offset (s)'}},
                    y: {title: {display: true, text: 'ms'}, beginAtZero: true}
                }
            }
        });
    }
</script>
</body>
</html>
`
