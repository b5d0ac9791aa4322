package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/prompt"
)

type promptOptions struct {
	configFile  string
	count       int
	promptType  string
	inputLength int
	fixed       string
	seed        int64
	estimate    bool
}

func newPromptCmd(root *rootOptions) *cobra.Command {
	opts := &promptOptions{}

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print generated prompts",
		Long: `Print the prompts a run would send, one per line.

Examples:
  llmload prompt --count 3 --input-length 64 --seed 7
  llmload prompt --config bench.yaml --estimate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if opts.configFile != "" {
				loaded, err := config.LoadConfig(opts.configFile)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("type") {
				cfg.Prompt.PromptType = opts.promptType
			}
			if flags.Changed("input-length") {
				cfg.Prompt.InputLength = opts.inputLength
			}
			if flags.Changed("fixed") {
				cfg.Prompt.FixedPrompt = opts.fixed
			}
			if flags.Changed("seed") {
				cfg.Prompt.Seed = opts.seed
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if opts.count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			root.logger.Debug("generating prompts",
				slog.String("type", cfg.Prompt.PromptType),
				slog.Int("input_length", cfg.Prompt.InputLength),
				slog.Int("count", opts.count))

			gen := prompt.NewGenerator(cfg.Prompt, nil)
			out := cmd.OutOrStdout()
			for i := 0; i < opts.count; i++ {
				text := gen.Generate()
				if opts.estimate {
					fmt.Fprintf(out, "[~%d tokens] %s\n", prompt.EstimateTokens(text), text)
					continue
				}
				fmt.Fprintln(out, text)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	f.IntVarP(&opts.count, "count", "n", 1, "Number of prompts")
	f.StringVar(&opts.promptType, "type", "", "Override prompt.prompt_type (fixed, random)")
	f.IntVar(&opts.inputLength, "input-length", 0, "Override prompt.input_length")
	f.StringVar(&opts.fixed, "fixed", "", "Override prompt.fixed_prompt")
	f.Int64Var(&opts.seed, "seed", 0, "Override prompt.seed")
	f.BoolVar(&opts.estimate, "estimate", false, "Prefix each prompt with its estimated token count")

	return cmd
}
