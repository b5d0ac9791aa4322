package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/loadtest"
	"github.com/llmload/llmload/internal/output"
	"github.com/llmload/llmload/internal/promquery"
	"github.com/llmload/llmload/internal/report"
	"github.com/llmload/llmload/internal/runner"
	"github.com/llmload/llmload/internal/stats"
)

// errNotPassed marks a run that completed but did not pass.
var errNotPassed = errors.New("load test did not pass")

type runOptions struct {
	configFile  string
	baseURL     string
	model       string
	concurrency int
	numRequests int
	warmup      int
	outputDir   string
	formats     []string
	repeat      int
	maxCV       float64
	quiet       bool
	preflight   bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test",
		Long: `Run a load test against a streaming chat-completion endpoint.

A run sends warmup requests all at once, then the measured requests with at
most --concurrency in flight. Results are printed and written as reports.

Examples:
  llmload run --config bench.yaml
  llmload run --base-url http://gpu-node:8000/v1 --model my-model \
    --concurrency 32 --num-requests 500 --format html
  llmload run --config bench.yaml --repeat 3 --max-cv 5

The command exits 0 only when no request failed and, with --repeat, the
runs are reproducible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	f.StringVar(&opts.baseURL, "base-url", "", "Override server.base_url")
	f.StringVar(&opts.model, "model", "", "Override server.model")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Override load.concurrency")
	f.IntVar(&opts.numRequests, "num-requests", 0, "Override load.num_requests")
	f.IntVar(&opts.warmup, "warmup", 0, "Override load.warmup_requests")
	f.StringVarP(&opts.outputDir, "output", "o", "", "Override report.output_dir")
	f.StringSliceVar(&opts.formats, "format", nil, "Additional report formats (yaml, html)")
	f.IntVar(&opts.repeat, "repeat", 0, "Number of measured runs (overrides reproducibility.runs)")
	f.Float64Var(&opts.maxCV, "max-cv", 0, "Override reproducibility.max_cv_percent")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the final status")
	f.BoolVar(&opts.preflight, "preflight", false, "List the server's models before the run")

	return cmd
}

// buildRunConfig loads the configuration and applies flag overrides.
func buildRunConfig(cmd *cobra.Command, opts *runOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.configFile != "" {
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Server.BaseURL = opts.baseURL
	}
	if flags.Changed("model") {
		cfg.Server.Model = opts.model
	}
	if flags.Changed("concurrency") {
		cfg.Load.Concurrency = opts.concurrency
	}
	if flags.Changed("num-requests") {
		cfg.Load.NumRequests = opts.numRequests
	}
	if flags.Changed("warmup") {
		cfg.Load.WarmupRequests = opts.warmup
	}
	if flags.Changed("output") {
		cfg.Report.OutputDir = opts.outputDir
	}
	if flags.Changed("format") {
		cfg.Report.Formats = opts.formats
	}
	if flags.Changed("repeat") {
		cfg.Reproducibility.Runs = opts.repeat
	}
	if flags.Changed("max-cv") {
		cfg.Reproducibility.MaxCVPercent = opts.maxCV
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runLoadTest(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	began := time.Now()
	logger := root.logger

	cfg, err := buildRunConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCfg := runner.DefaultHTTPClientConfig(cfg.Load.Concurrency)
	httpCfg.InsecureSkipVerify = cfg.Server.InsecureSkipVerify
	client := runner.NewHTTPClient(httpCfg)

	if opts.preflight {
		model, err := preflightModel(ctx, client, cfg, logger)
		if err != nil {
			return err
		}
		cfg.Server.Model = model
	}

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: root.noColor,
		Quiet:   opts.quiet,
	})
	console.PrintHeader(cfg)

	driverOpts := []loadtest.Option{
		loadtest.WithHTTPClient(client),
		loadtest.WithLogger(logger),
	}
	if !opts.quiet {
		stderr := cmd.ErrOrStderr()
		driverOpts = append(driverOpts, loadtest.WithObserver(output.NewProgress(stderr, output.IsTerminal(stderr))))
	}

	driver, err := loadtest.NewDriver(cfg, driverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create load test: %w", err)
	}

	results, runErr := driver.Repeat(ctx, cfg.Reproducibility.Runs)
	if runErr != nil {
		logger.Warn("load test interrupted", slog.String("error", runErr.Error()))
	}

	// server metrics are still collected for a cancelled run
	collectCtx := context.WithoutCancel(ctx)

	passed := runErr == nil
	reports := make([]*report.Report, 0, len(results))
	for _, res := range results {
		summary := stats.Summarize(res.RequestMetrics, res.ThroughputRPS)
		console.PrintResult(res)
		console.PrintStatistics(summary)

		rep := report.New(res, summary)
		rep.Prometheus = promquery.CollectIfEnabled(collectCtx, cfg.Prometheus, res.StartTime, res.EndTime, logger)
		console.PrintPrometheus(rep.Prometheus)

		if !rep.Passed() {
			passed = false
		}
		reports = append(reports, rep)
	}

	if len(results) > 1 {
		verdict := stats.VerifyReproducibility(loadtest.Throughputs(results), cfg.Reproducibility.MaxCVPercent)
		console.PrintVerdict(verdict)
		if !verdict.Reproducible {
			passed = false
		}
		for _, rep := range reports {
			rep.Reproducibility = &verdict
		}
	}

	var written []string
	for _, rep := range reports {
		paths, err := report.Write(rep, cfg.Report.OutputDir, cfg.Report.Formats)
		written = append(written, paths...)
		if err != nil {
			console.PrintReports(written)
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	console.PrintReports(written)
	console.PrintStatus(passed, time.Since(began))

	if runErr != nil {
		return &ExitError{Code: 1, Err: runErr}
	}
	if !passed {
		return &ExitError{Code: 1}
	}
	return nil
}

// preflightModel lists the server's models and returns the model to test.
// When the configured model is not served, the first listed model is used.
func preflightModel(ctx context.Context, client *http.Client, cfg *config.Config, logger *slog.Logger) (string, error) {
	clientCfg := openai.DefaultConfig(cfg.Server.APIKey)
	clientCfg.BaseURL = cfg.Server.BaseURL
	clientCfg.HTTPClient = client

	ctx, cancel := context.WithTimeout(ctx, cfg.Load.RequestTimeout.Std())
	defer cancel()

	list, err := openai.NewClientWithConfig(clientCfg).ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("preflight failed: %w", err)
	}
	if len(list.Models) == 0 {
		return "", fmt.Errorf("preflight failed: server at %s lists no models", cfg.Server.BaseURL)
	}

	for _, m := range list.Models {
		if m.ID == cfg.Server.Model {
			logger.Info("preflight ok", slog.String("model", m.ID))
			return m.ID, nil
		}
	}

	model := list.Models[0].ID
	logger.Warn("configured model not served, using first listed model",
		slog.String("configured", cfg.Server.Model),
		slog.String("model", model))
	return model, nil
}
