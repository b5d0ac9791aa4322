package loadtest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/llmload/llmload/internal/metrics"
	"github.com/llmload/llmload/internal/runner"
)

// Executor sends one request and measures it. *runner.Runner implements it.
type Executor interface {
	Run(ctx context.Context, id, prompt string) runner.RequestMetrics
}

// PromptSource produces request prompts. *prompt.Generator implements it.
type PromptSource interface {
	Generate() string
}

// Observer is told about progress. Methods may be called concurrently.
type Observer interface {
	PhaseStarted(phase metrics.Phase, total int)
	RequestDone(m runner.RequestMetrics, snapshot *metrics.Snapshot)
	PhaseFinished(phase metrics.Phase)
}

// Option configures a Driver.
type Option func(*Driver)

// WithHTTPClient sets the client shared by every request. It is ignored when
// an executor is injected.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Driver) {
		d.client = client
	}
}

// WithExecutor replaces the request executor.
func WithExecutor(exec Executor) Option {
	return func(d *Driver) {
		d.exec = exec
	}
}

// WithPromptSource replaces the prompt generator.
func WithPromptSource(src PromptSource) Option {
	return func(d *Driver) {
		d.prompts = src
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithMetrics sets the live metrics engine.
func WithMetrics(engine *metrics.Engine) Option {
	return func(d *Driver) {
		d.live = engine
	}
}

// WithObserver registers a progress observer.
func WithObserver(obs Observer) Option {
	return func(d *Driver) {
		d.observer = obs
	}
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, id, prompt string) runner.RequestMetrics

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, id, prompt string) runner.RequestMetrics {
	return f(ctx, id, prompt)
}
