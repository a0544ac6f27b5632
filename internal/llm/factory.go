package llm

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for the LLM provider and the retrying caller.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	MaxRetries     int
	RetryBaseDelay time.Duration
	AttemptTimeout time.Duration
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}

// NewClient creates a raw LLM client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
