package llm

import "context"

// NewAdapters constructs every known adapter from configuration, in
// preference order. Adapters without credentials are still returned so
// the router can list them as known-but-unconfigured.
func NewAdapters(ctx context.Context, cfg Config) []*Adapter {
	return []*Adapter{
		NewAnthropicAdapter(cfg.Anthropic, cfg.Retry),
		NewOpenAIAdapter(cfg.OpenAI, cfg.Retry),
		NewGeminiAdapter(ctx, cfg.Gemini, cfg.Retry),
		NewOpenRouterAdapter(cfg.OpenRouter, cfg.Retry),
		NewOllamaAdapter(cfg.Ollama, cfg.Retry),
	}
}
