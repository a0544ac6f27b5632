package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/sift/internal/common"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	t.Cleanup(viper.Reset)
}

func TestLLMConfig_RetryBudget(t *testing.T) {
	tests := []struct {
		name       string
		set        func()
		maxRetries int
	}{
		{name: "default budget", set: func() {}, maxRetries: 4},
		{name: "explicit zero disables retries", set: func() { viper.Set("llm.max_retries", 0) }, maxRetries: -1},
		{name: "explicit budget", set: func() { viper.Set("llm.max_retries", 7) }, maxRetries: 7},
		{name: "negative stays disabled", set: func() { viper.Set("llm.max_retries", -1) }, maxRetries: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			viper.Set("llm.api_key", "sk-test")
			tt.set()

			cfg, err := llmConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.maxRetries, cfg.MaxRetries)
			assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
			assert.Equal(t, 60*time.Second, cfg.AttemptTimeout)
		})
	}
}

func TestLLMConfig_APIKeys(t *testing.T) {
	t.Run("provider specific key", func(t *testing.T) {
		resetViper(t)
		viper.Set("llm.provider", "OpenAI")
		viper.Set("llm.openai_api_key", "sk-openai")

		cfg, err := llmConfig()
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Provider)
		assert.Equal(t, "sk-openai", cfg.APIKey)
	})

	t.Run("missing key", func(t *testing.T) {
		resetViper(t)
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := llmConfig()
		var userErr *common.UserError
		require.ErrorAs(t, err, &userErr)
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("unknown provider", func(t *testing.T) {
		resetViper(t)
		viper.Set("llm.provider", "mistral")

		_, err := llmConfig()
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}
