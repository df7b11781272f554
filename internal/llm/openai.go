package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/abhisek/quizforge/internal/quiz"
)

// openaiModels is the fallback chain, highest preference first.
var openaiModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1-mini",
}

// openaiCompleter talks to the OpenAI chat-completions API. It also
// serves OpenRouter and other OpenAI-compatible endpoints via BaseURL.
type openaiCompleter struct {
	client *openai.Client
	apiKey string
}

// NewOpenAIAdapter creates the OpenAI adapter.
func NewOpenAIAdapter(cfg OpenAIConfig, retry RetryConfig) *Adapter {
	c := newOpenAICompleter(cfg.APIKey, cfg.BaseURL)
	models := openaiModels
	if cfg.Model != "" {
		models = prependModel(cfg.Model, openaiModels)
	}
	return newAdapter("openai", "OpenAI GPT (multimodal)", c, models, retry)
}

func newOpenAICompleter(apiKey, baseURL string) *openaiCompleter {
	c := &openaiCompleter{apiKey: apiKey}
	if apiKey != "" {
		config := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			config.BaseURL = baseURL
		}
		c.client = openai.NewClientWithConfig(config)
	}
	return c
}

func (c *openaiCompleter) configured() bool { return c.apiKey != "" }

func (c *openaiCompleter) complete(ctx context.Context, model, system, prompt string, images []quiz.Image, temperature float64, maxTokens int) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(images) == 0 {
		user.Content = prompt
	} else {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
		}
		for _, img := range images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data)),
				},
			})
		}
		user.MultiContent = parts
	}
	messages = append(messages, user)

	req := openai.ChatCompletionRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
		Temperature:         float32(temperature),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapOpenAIError(model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return resp.Choices[0].Message.Content, nil
}

func mapOpenAIError(model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusNotFound:
			return &ModelUnavailableError{Model: model, Err: err}
		case transientStatus(apiErr.HTTPStatusCode):
			return &TransientError{Status: apiErr.HTTPStatusCode, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &TransientError{Status: apiErr.HTTPStatusCode, Err: err}
		}
	}
	return err
}
