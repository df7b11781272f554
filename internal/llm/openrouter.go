package llm

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// openrouterModels is the fallback chain, highest preference first.
var openrouterModels = []string{
	"google/gemini-2.0-flash-exp",
	"meta-llama/llama-3.3-70b-instruct",
	"mistralai/mistral-small-3.1",
}

// NewOpenRouterAdapter creates a provider targeting the OpenRouter API.
// OpenRouter is OpenAI-compatible, so the OpenAI completer is reused
// with a different base URL.
func NewOpenRouterAdapter(cfg OpenRouterConfig, retry RetryConfig) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	c := newOpenAICompleter(cfg.APIKey, baseURL)
	models := openrouterModels
	if cfg.Model != "" {
		models = prependModel(cfg.Model, openrouterModels)
	}
	return newAdapter("openrouter", "OpenRouter (OpenAI-compatible aggregator)", c, models, retry)
}
