// Package prompt produces request prompts for load tests.
package prompt

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/llmload/llmload/internal/config"
)

// Topics are the subjects random prompts are built around.
var Topics = []string{
	"quantum computing and its applications",
	"machine learning model architectures",
	"distributed systems design patterns",
	"natural language processing techniques",
	"computer vision algorithms",
	"database optimization strategies",
	"microservices architecture principles",
	"cloud infrastructure management",
	"data structures and algorithms",
	"software engineering best practices",
}

// CharsPerToken is the fixed ratio used to size prompts and estimate token
// counts. It is an approximation, not a tokenizer.
const CharsPerToken = 4

const (
	// a prompt keeps growing while len*growthRatio is below the token target
	growthRatio = 0.3
	// prompts are cut to inputLength*truncateRatio characters
	truncateRatio = 3
)

// Generator produces prompts in fixed or random mode.
//
// Generator is safe for concurrent use.
type Generator struct {
	mode        string
	fixed       string
	inputLength int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator for cfg. A nil rng is replaced by one
// seeded from cfg.Seed, or from the clock when the seed is 0.
func NewGenerator(cfg config.PromptConfig, rng *rand.Rand) *Generator {
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	return &Generator{
		mode:        cfg.PromptType,
		fixed:       cfg.FixedPrompt,
		inputLength: cfg.InputLength,
		rng:         rng,
	}
}

// Generate returns the next prompt. It never returns an empty string.
//
// Fixed mode returns the configured literal; an empty literal falls back to
// random generation.
func (g *Generator) Generate() string {
	if g.mode == config.PromptFixed && g.fixed != "" {
		return g.fixed
	}
	return g.random()
}

func (g *Generator) random() string {
	g.mu.Lock()
	topic := Topics[g.rng.Intn(len(Topics))]
	g.mu.Unlock()

	return Build(topic, g.inputLength)
}

// Build constructs a random-mode prompt about topic sized for roughly
// inputLength tokens. Input lengths of zero or less yield the seed sentence.
func Build(topic string, inputLength int) string {
	var sb strings.Builder
	sb.WriteString("Please explain the following concept in detail: ")
	sb.WriteString(topic)
	sb.WriteString(". ")

	if inputLength <= 0 {
		return sb.String()
	}

	filler := "Elaborate on " + topic + ". "
	for float64(sb.Len())*growthRatio < float64(inputLength) {
		sb.WriteString(filler)
	}

	out := sb.String()
	if limit := inputLength * truncateRatio; len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}
