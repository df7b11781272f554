package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/abhisek/quizforge/internal/quiz"
)

// anthropicModels is the fallback chain, highest preference first.
var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// anthropicCompleter talks to the Anthropic Messages API.
type anthropicCompleter struct {
	client *anthropic.Client
	apiKey string
}

// NewAnthropicAdapter creates the Anthropic adapter. The adapter is
// constructed even without an API key so the router can report it as
// known-but-unconfigured.
func NewAnthropicAdapter(cfg AnthropicConfig, retry RetryConfig) *Adapter {
	c := &anthropicCompleter{apiKey: cfg.APIKey}
	if cfg.APIKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
		c.client = &client
	}

	models := anthropicModels
	if cfg.Model != "" {
		models = prependModel(cfg.Model, anthropicModels)
	}
	return newAdapter("anthropic", "Anthropic Claude (multimodal)", c, models, retry)
}

func (c *anthropicCompleter) configured() bool { return c.apiKey != "" }

func (c *anthropicCompleter) complete(ctx context.Context, model, system, prompt string, images []quiz.Image, temperature float64, maxTokens int) (string, error) {
	blocks := []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock(prompt),
	}
	for _, img := range images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			{Role: anthropic.MessageParamRoleUser, Content: blocks},
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapAnthropicError(model, err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

func mapAnthropicError(model string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return &ModelUnavailableError{Model: model, Err: err}
		case transientStatus(apiErr.StatusCode):
			return &TransientError{Status: apiErr.StatusCode, Err: err}
		case apiErr.StatusCode >= 500:
			return &TransientError{Status: apiErr.StatusCode, Err: err}
		}
	}
	return err
}

// prependModel puts an explicitly configured model at the head of the
// fallback chain, deduplicating against the defaults.
func prependModel(model string, defaults []string) []string {
	out := []string{model}
	for _, m := range defaults {
		if m != model {
			out = append(out, m)
		}
	}
	return out
}
