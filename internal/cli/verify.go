package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/llmload/llmload/internal/output"
	"github.com/llmload/llmload/internal/report"
	"github.com/llmload/llmload/internal/stats"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	var maxCV float64

	cmd := &cobra.Command{
		Use:   "verify REPORT...",
		Short: "Check that saved runs are reproducible",
		Long: `Compare the throughput of previously written JSON reports and check that
their coefficient of variation is within --max-cv percent.

Example:
  llmload verify benchmark/reports/benchmark_*.json --max-cv 5

The command exits 1 when the runs are not reproducible.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxCV < 0 {
				return fmt.Errorf("--max-cv cannot be negative")
			}

			values := make([]float64, 0, len(args))
			for _, path := range args {
				rep, err := report.Load(path)
				if err != nil {
					return err
				}
				root.logger.Debug("loaded report",
					slog.String("path", path),
					slog.String("run_id", rep.Metadata.RunID),
					slog.Float64("throughput_rps", rep.Summary.ThroughputRPS))
				values = append(values, rep.Summary.ThroughputRPS)
			}

			verdict := stats.VerifyReproducibility(values, maxCV)

			console := output.NewConsole(output.ConsoleConfig{
				Writer:  cmd.OutOrStdout(),
				NoColor: root.noColor,
			})
			console.PrintVerdict(verdict)

			if !verdict.Reproducible {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxCV, "max-cv", stats.DefaultMaxCVPercent, "Maximum accepted coefficient of variation in percent")

	return cmd
}
