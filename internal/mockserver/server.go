// Package mockserver is a stand-in for an OpenAI-compatible streaming
// inference server. It serves /v1/chat/completions as Server-Sent Events
// with configurable timing and failures, and lists models on /v1/models.
package mockserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

// Defaults for Config.
const (
	DefaultTokens        = 16
	DefaultTokenText     = "tok "
	DefaultFailureStatus = http.StatusServiceUnavailable
	DefaultModel         = "mock-model"
)

// Config controls how the mock server answers.
type Config struct {
	// Models are listed on /v1/models and accepted in requests. Empty
	// accepts any model.
	Models []string

	// Tokens is the number of content chunks per response, capped by the
	// request's max_tokens.
	Tokens int

	// TokenText is the content of every chunk.
	TokenText string

	// FirstTokenDelay is waited before the first chunk
	FirstTokenDelay time.Duration

	// TokenDelay is waited between chunks
	TokenDelay time.Duration

	// FailureRate is the probability (0 to 1) that a request fails with
	// FailureStatus.
	FailureRate   float64
	FailureStatus int

	// APIKey, when set, must be presented as a bearer token.
	APIKey string

	// Seed drives failure injection. Zero seeds from the clock.
	Seed int64
}

// Stats counts served requests.
type Stats struct {
	Requests     int64
	Failures     int64
	PeakInFlight int64
}

// Server is the mock inference server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	engine *gin.Engine

	rngMu sync.Mutex
	rng   *rand.Rand

	requests atomic.Int64
	failures atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a mock server.
func New(cfg Config, opts ...Option) *Server {
	if cfg.Tokens <= 0 {
		cfg.Tokens = DefaultTokens
	}
	if cfg.TokenText == "" {
		cfg.TokenText = DefaultTokenText
	}
	if cfg.FailureStatus == 0 {
		cfg.FailureStatus = DefaultFailureStatus
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
		rng:    rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())
	s.setupRoutes(router)
	s.engine = router

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Stats returns request counters.
func (s *Server) Stats() Stats {
	return Stats{
		Requests:     s.requests.Load(),
		Failures:     s.failures.Load(),
		PeakInFlight: s.peak.Load(),
	}
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.Use(s.authMiddleware())
	{
		v1.GET("/models", s.listModels)
		v1.POST("/chat/completions", s.chatCompletions)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)))
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.cfg.APIKey {
			abortWithError(c, http.StatusUnauthorized, "invalid_api_key", "invalid API key")
			return
		}
		c.Next()
	}
}

func (s *Server) listModels(c *gin.Context) {
	names := s.cfg.Models
	if len(names) == 0 {
		names = []string{DefaultModel}
	}

	created := time.Now().Unix()
	list := openai.ModelsList{Models: make([]openai.Model, 0, len(names))}
	for _, name := range names {
		list.Models = append(list.Models, openai.Model{
			ID:        name,
			Object:    "model",
			CreatedAt: created,
			OwnedBy:   "mockserver",
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": list.Models})
}

func (s *Server) chatCompletions(c *gin.Context) {
	s.requests.Add(1)
	depth := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if depth <= peak || s.peak.CompareAndSwap(peak, depth) {
			break
		}
	}

	var req openai.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}
	if !s.knownModel(req.Model) {
		abortWithError(c, http.StatusNotFound, "model_not_found", fmt.Sprintf("the model %q does not exist", req.Model))
		return
	}
	if s.shouldFail() {
		s.failures.Add(1)
		abortWithError(c, s.cfg.FailureStatus, "server_error", "injected failure")
		return
	}

	tokens := s.cfg.Tokens
	finish := openai.FinishReasonStop
	if req.MaxTokens > 0 && req.MaxTokens < tokens {
		tokens = req.MaxTokens
		finish = openai.FinishReasonLength
	}

	id := "chatcmpl-" + uuid.NewString()
	if !req.Stream {
		s.complete(c, id, req.Model, tokens, finish)
		return
	}
	s.stream(c, id, req.Model, tokens, finish)
}

func (s *Server) complete(c *gin.Context, id, model string, tokens int, finish openai.FinishReason) {
	if !sleep(c, s.cfg.FirstTokenDelay+time.Duration(tokens-1)*s.cfg.TokenDelay) {
		return
	}

	c.JSON(http.StatusOK, openai.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: strings.Repeat(s.cfg.TokenText, tokens),
			},
			FinishReason: finish,
		}},
	})
}

func (s *Server) stream(c *gin.Context, id, model string, tokens int, finish openai.FinishReason) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	created := time.Now().Unix()
	chunk := func(delta openai.ChatCompletionStreamChoiceDelta, reason openai.FinishReason) openai.ChatCompletionStreamResponse {
		return openai.ChatCompletionStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []openai.ChatCompletionStreamChoice{{Delta: delta, FinishReason: reason}},
		}
	}

	// role-only first chunk, as vLLM sends it
	if !writeEvent(c, chunk(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, "")) {
		return
	}

	for i := 0; i < tokens; i++ {
		delay := s.cfg.TokenDelay
		if i == 0 {
			delay = s.cfg.FirstTokenDelay
		}
		if !sleep(c, delay) {
			return
		}
		if !writeEvent(c, chunk(openai.ChatCompletionStreamChoiceDelta{Content: s.cfg.TokenText}, "")) {
			return
		}
	}

	if !writeEvent(c, chunk(openai.ChatCompletionStreamChoiceDelta{}, finish)) {
		return
	}
	c.Writer.WriteString("data: [DONE]\n\n")
	c.Writer.Flush()
}

// writeEvent writes one "data: " event. gin's SSEvent writes "data:" with no
// space.
func writeEvent(c *gin.Context, v interface{}) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func (s *Server) knownModel(model string) bool {
	if len(s.cfg.Models) == 0 {
		return true
	}
	for _, m := range s.cfg.Models {
		if m == model {
			return true
		}
	}
	return false
}

func (s *Server) shouldFail() bool {
	if s.cfg.FailureRate <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.cfg.FailureRate
}

// sleep waits for d or until the client goes away.
func sleep(c *gin.Context, d time.Duration) bool {
	if d <= 0 {
		return c.Request.Context().Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.Request.Context().Done():
		return false
	}
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"message": msg,
			"type":    code,
			"code":    status,
		},
	})
}
