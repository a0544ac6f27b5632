package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/llm"
	"github.com/Veraticus/sift/internal/metrics"
)

// createCaller builds the retrying model caller from configuration.
func createCaller(m *metrics.Metrics) (*llm.Caller, error) {
	cfg, err := llmConfig()
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return llm.NewCaller(client, cfg,
		llm.WithLogger(slog.Default()),
		llm.WithMetrics(m)), nil
}

// llmConfig reads the llm.* keys. An explicit llm.max_retries of 0 turns
// retrying off; leaving the key unset keeps the default budget.
func llmConfig() (llm.Config, error) {
	cfg := llm.Config{
		Provider:       strings.ToLower(viper.GetString("llm.provider")),
		Model:          viper.GetString("llm.model"),
		BaseURL:        viper.GetString("llm.base_url"),
		Temperature:    viper.GetFloat64("llm.temperature"),
		MaxTokens:      viper.GetInt("llm.max_tokens"),
		MaxRetries:     viper.GetInt("llm.max_retries"),
		RetryBaseDelay: viper.GetDuration("llm.retry_delay"),
		AttemptTimeout: viper.GetDuration("llm.attempt_timeout"),
		RateLimit:      viper.GetInt("llm.rate_limit"),
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = -1
	}

	// Get API key based on provider
	switch cfg.Provider {
	case "openai":
		cfg.APIKey = firstNonEmpty(viper.GetString("llm.api_key"), viper.GetString("llm.openai_api_key"), os.Getenv("OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return cfg, common.NewUserError("OpenAI API key not found in config or OPENAI_API_KEY environment variable", common.ErrMissingConfig)
		}
	case "anthropic":
		cfg.APIKey = firstNonEmpty(viper.GetString("llm.api_key"), viper.GetString("llm.anthropic_api_key"), os.Getenv("ANTHROPIC_API_KEY"))
		if cfg.APIKey == "" {
			return cfg, common.NewUserError("Anthropic API key not found in config or ANTHROPIC_API_KEY environment variable", common.ErrMissingConfig)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported LLM provider %q", common.ErrInvalidConfig, cfg.Provider)
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
