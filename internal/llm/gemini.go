package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/abhisek/quizforge/internal/quiz"
)

// geminiModels is the fallback chain, highest preference first.
var geminiModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-flash",
}

// geminiCompleter talks to the Google Gemini API.
type geminiCompleter struct {
	client *genai.Client
	apiKey string
}

// NewGeminiAdapter creates the Gemini adapter. Client construction
// needs a context; a failure there leaves the adapter unconfigured
// rather than failing the whole factory.
func NewGeminiAdapter(ctx context.Context, cfg GeminiConfig, retry RetryConfig) *Adapter {
	c := &geminiCompleter{apiKey: cfg.APIKey}
	if cfg.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err == nil {
			c.client = client
		} else {
			c.apiKey = ""
		}
	}

	models := geminiModels
	if cfg.Model != "" {
		models = prependModel(cfg.Model, geminiModels)
	}
	return newAdapter("gemini", "Google Gemini (multimodal)", c, models, retry)
}

func (c *geminiCompleter) configured() bool { return c.apiKey != "" && c.client != nil }

func (c *geminiCompleter) complete(ctx context.Context, model, system, prompt string, images []quiz.Image, temperature float64, maxTokens int) (string, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if temperature > 0 {
		temp := float32(temperature)
		config.Temperature = &temp
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	parts := []*genai.Part{{Text: prompt}}
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MediaType, Data: img.Data},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", mapGeminiError(model, err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no text content in Gemini response")
	}
	return text, nil
}

func mapGeminiError(model string, err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return &ModelUnavailableError{Model: model, Err: err}
		case transientStatus(apiErr.Code):
			return &TransientError{Status: apiErr.Code, Err: err}
		case apiErr.Code >= 500:
			return &TransientError{Status: apiErr.Code, Err: err}
		}
	}
	return err
}
