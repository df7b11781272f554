package llm

import (
	"os"
	"strconv"
	"time"
)

// Config holds all provider configuration.
type Config struct {
	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Retry      RetryConfig
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // optional: overrides the head of the fallback chain
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional override for compatible APIs
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string // default: https://openrouter.ai/api/v1
}

// OllamaConfig holds local-backend configuration.
type OllamaConfig struct {
	Enabled bool
	BaseURL string // default: http://localhost:11434 when enabled
	Model   string
}

// ConfigFromEnv builds a Config from environment variables. Missing
// values never fail initialization; unconfigured providers are simply
// reported as such by the router.
func ConfigFromEnv() Config {
	cfg := Config{Retry: DefaultRetryConfig()}

	cfg.Anthropic.APIKey = firstEnv("QUIZFORGE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	cfg.Anthropic.Model = os.Getenv("QUIZFORGE_ANTHROPIC_MODEL")

	cfg.OpenAI.APIKey = firstEnv("QUIZFORGE_OPENAI_API_KEY", "OPENAI_API_KEY")
	cfg.OpenAI.Model = os.Getenv("QUIZFORGE_OPENAI_MODEL")
	cfg.OpenAI.BaseURL = os.Getenv("QUIZFORGE_OPENAI_BASE_URL")

	cfg.Gemini.APIKey = firstEnv("QUIZFORGE_GEMINI_API_KEY", "GEMINI_API_KEY")
	cfg.Gemini.Model = os.Getenv("QUIZFORGE_GEMINI_MODEL")

	cfg.OpenRouter.APIKey = firstEnv("QUIZFORGE_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	cfg.OpenRouter.Model = os.Getenv("QUIZFORGE_OPENROUTER_MODEL")
	cfg.OpenRouter.BaseURL = os.Getenv("QUIZFORGE_OPENROUTER_BASE_URL")

	cfg.Ollama.BaseURL = os.Getenv("QUIZFORGE_OLLAMA_BASE_URL")
	cfg.Ollama.Enabled = cfg.Ollama.BaseURL != "" || boolEnv("QUIZFORGE_OLLAMA_ENABLED")
	cfg.Ollama.Model = os.Getenv("QUIZFORGE_OLLAMA_MODEL")

	if v := os.Getenv("QUIZFORGE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("QUIZFORGE_RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Retry.BaseDelay = d
		}
	}

	return cfg
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
