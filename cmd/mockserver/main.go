// Command mockserver serves a fake OpenAI-compatible streaming endpoint for
// trying llmload without a GPU.
package main

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

	"github.com/spf13/cobra"

	"github.com/llmload/llmload/internal/mockserver"
)

func newCmd() *cobra.Command {
	var addr string
	cfg := mockserver.Config{}

	cmd := &cobra.Command{
		Use:   "mockserver",
		Short: "Serve a fake streaming chat-completion API",
		Long: `Serve /v1/chat/completions as Server-Sent Events and /v1/models, with
configurable token timing and failure injection.

Example:
  mockserver --addr :8000 --tokens 64 --first-token-delay 150ms --token-delay 20ms
  llmload run --base-url http://localhost:8000/v1 --model mock-model`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
			return serve(cmd.Context(), addr, mockserver.New(cfg, mockserver.WithLogger(logger)), logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8000", "Listen address")
	f.StringSliceVar(&cfg.Models, "model", []string{mockserver.DefaultModel}, "Served model names")
	f.IntVar(&cfg.Tokens, "tokens", mockserver.DefaultTokens, "Content chunks per response")
	f.StringVar(&cfg.TokenText, "token-text", mockserver.DefaultTokenText, "Content of each chunk")
	f.DurationVar(&cfg.FirstTokenDelay, "first-token-delay", 100*time.Millisecond, "Delay before the first chunk")
	f.DurationVar(&cfg.TokenDelay, "token-delay", 10*time.Millisecond, "Delay between chunks")
	f.Float64Var(&cfg.FailureRate, "failure-rate", 0, "Probability (0-1) that a request fails")
	f.IntVar(&cfg.FailureStatus, "failure-status", mockserver.DefaultFailureStatus, "HTTP status of injected failures")
	f.StringVar(&cfg.APIKey, "api-key", "", "Required bearer token (empty accepts any)")
	f.Int64Var(&cfg.Seed, "seed", 0, "Failure injection seed (0 seeds from the clock)")

	return cmd
}

func serve(ctx context.Context, addr string, s *mockserver.Server, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// streaming responses have no write deadline
		WriteTimeout:   0,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	stats := s.Stats()
	logger.Info("server exited",
		slog.Int64("requests", stats.Requests),
		slog.Int64("failures", stats.Failures),
		slog.Int64("peak_in_flight", stats.PeakInFlight))
	return nil
}

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
