package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/output"
	"github.com/llmload/llmload/internal/promquery"
)

type collectOptions struct {
	prometheusURL string
	start         string
	end           string
	last          time.Duration
	step          time.Duration
	timeout       time.Duration
	jsonOutput    bool
}

func newCollectCmd(root *rootOptions) *cobra.Command {
	opts := &collectOptions{}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect server metrics from Prometheus for a time window",
		Long: `Query the vLLM metrics stored in Prometheus for a test window and print
the average of each. Times are RFC 3339 or Unix seconds.

Examples:
  llmload collect --start 2024-03-15T14:00:00Z --end 2024-03-15T14:05:00Z
  llmload collect --last 10m --prometheus-url http://prom:9090 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := opts.window(time.Now())
			if err != nil {
				return err
			}

			collector, err := promquery.NewCollector(opts.prometheusURL,
				promquery.WithStep(opts.step),
				promquery.WithLogger(root.logger))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			metrics := collector.Collect(ctx, start, end)

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(metrics)
			}

			console := output.NewConsole(output.ConsoleConfig{
				Writer:  cmd.OutOrStdout(),
				NoColor: root.noColor,
			})
			console.PrintPrometheus(metrics)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.prometheusURL, "prometheus-url", config.DefaultPrometheusURL, "Prometheus server URL")
	f.StringVar(&opts.start, "start", "", "Window start (RFC 3339 or Unix seconds)")
	f.StringVar(&opts.end, "end", "", "Window end (RFC 3339 or Unix seconds, default now)")
	f.DurationVar(&opts.last, "last", 0, "Window length ending at --end, instead of --start")
	f.DurationVar(&opts.step, "step", promquery.DefaultStep, "Range query resolution")
	f.DurationVar(&opts.timeout, "timeout", config.DefaultPromTimeout, "Timeout for all queries")
	f.BoolVar(&opts.jsonOutput, "json", false, "Print the metrics as JSON")

	return cmd
}

// window resolves the query window relative to now.
func (o *collectOptions) window(now time.Time) (time.Time, time.Time, error) {
	end := now
	if o.end != "" {
		t, err := parseTime(o.end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = t
	}

	var start time.Time
	switch {
	case o.start != "" && o.last > 0:
		return time.Time{}, time.Time{}, fmt.Errorf("--start and --last are mutually exclusive")
	case o.start != "":
		t, err := parseTime(o.start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		start = t
	case o.last > 0:
		start = end.Add(-o.last)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("either --start or --last is required")
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end must be after start")
	}
	return start, end, nil
}

// parseTime accepts RFC 3339 timestamps and Unix seconds.
func parseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or Unix seconds, got %q", s)
	}
	return t, nil
}
