package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/llmload/llmload/internal/config"
	"github.com/llmload/llmload/internal/prompt"
)

// maxErrorBody caps how much of a non-2xx body ends up in an error message.
const maxErrorBody = 4096

// Config describes the endpoint a Runner talks to.
type Config struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// ConfigFrom extracts the runner settings from a test configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:   cfg.Server.BaseURL,
		Model:     cfg.Server.Model,
		APIKey:    cfg.Server.APIKey,
		MaxTokens: cfg.Prompt.OutputLength,
		Timeout:   cfg.Load.RequestTimeout.Std(),
	}
}

// Runner sends streaming chat-completion requests.
//
// Runner is safe for concurrent use; all requests share the injected client.
type Runner struct {
	client   *http.Client
	cfg      Config
	endpoint string
}

// New creates a Runner. A nil client is replaced by one built from
// DefaultHTTPClientConfig.
func New(client *http.Client, cfg Config) *Runner {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPClientConfig(0))
	}
	return &Runner{
		client:   client,
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
	}
}

// requestError carries the classification of a failed request.
type requestError struct {
	status Status
	code   int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

// streamOutcome is what a completed stream produced.
type streamOutcome struct {
	firstByte  time.Time
	firstToken time.Time
	content    string
	statusCode int
}

// Run sends one request and measures it. It never returns an error: every
// failure is recorded on the returned metrics.
func (r *Runner) Run(ctx context.Context, id, text string) RequestMetrics {
	m := RequestMetrics{ID: id, StartTime: time.Now()}

	outcome, err := r.execute(ctx, text)
	end := time.Now()
	m.EndTime = end

	if err != nil {
		m.Error = err.Error()
		m.Status = StatusTransportError
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			m.Status = reqErr.status
			m.StatusCode = reqErr.code
		}
		return m
	}

	m.Status = StatusOK
	m.StatusCode = outcome.statusCode
	m.E2ELatencyMs = millis(end.Sub(m.StartTime))
	if !outcome.firstToken.IsZero() {
		m.TTFTMs = millis(outcome.firstToken.Sub(m.StartTime))
	}
	if !outcome.firstByte.IsZero() {
		m.TTFBMs = millis(outcome.firstByte.Sub(m.StartTime))
	}
	m.InputTokens = prompt.EstimateTokens(text)
	m.OutputTokens = prompt.EstimateTokens(outcome.content)
	if m.E2ELatencyMs > 0 {
		m.TokensPerSecond = float64(m.OutputTokens) / m.E2ELatencyMs * 1000
	}

	return m
}

func (r *Runner) execute(ctx context.Context, text string) (streamOutcome, error) {
	var out streamOutcome

	reqCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens: r.cfg.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return out, fmt.Errorf("failed to encode request: %w", err)
	}

	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			out.firstByte = time.Now()
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(reqCtx, trace), http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return out, r.classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	out.statusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return out, &requestError{
			status: StatusHTTPError,
			code:   resp.StatusCode,
			msg:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))),
		}
	}

	var content strings.Builder
	err = readStream(resp.Body, func(fragment string) {
		if out.firstToken.IsZero() {
			out.firstToken = time.Now()
		}
		content.WriteString(fragment)
	})
	if err != nil {
		return out, r.classify(ctx, reqCtx, err)
	}

	out.content = content.String()
	return out, nil
}

// classify maps a transport or read error to a status, telling the
// per-request timeout apart from cancellation of the caller's context.
func (r *Runner) classify(parent, reqCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return &requestError{status: StatusCancelled, msg: fmt.Sprintf("request cancelled: %v", parent.Err())}
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return &requestError{status: StatusTimeout, msg: fmt.Sprintf("request timed out after %s", r.cfg.Timeout)}
	default:
		return &requestError{status: StatusTransportError, msg: err.Error()}
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
