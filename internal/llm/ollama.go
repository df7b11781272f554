package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abhisek/quizforge/internal/quiz"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// ollamaModels is the fallback chain, highest preference first.
var ollamaModels = []string{
	"llama3.1:8b",
	"mistral:7b",
}

// ollamaCompleter talks to a local Ollama server. No API key: the
// adapter counts as configured when a base URL is set.
type ollamaCompleter struct {
	baseURL string
	httpc   *http.Client
}

// NewOllamaAdapter creates the local-backend adapter.
func NewOllamaAdapter(cfg OllamaConfig, retry RetryConfig) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" && cfg.Enabled {
		baseURL = defaultOllamaBaseURL
	}

	c := &ollamaCompleter{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 300 * time.Second},
	}

	models := ollamaModels
	if cfg.Model != "" {
		models = prependModel(cfg.Model, ollamaModels)
	}
	return newAdapter("ollama", "Local models via Ollama", c, models, retry)
}

func (c *ollamaCompleter) configured() bool { return c.baseURL != "" }

type ollamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *ollamaCompleter) complete(ctx context.Context, model, system, prompt string, images []quiz.Image, temperature float64, maxTokens int) (string, error) {
	body := ollamaRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
	for _, img := range images {
		body.Images = append(body.Images, base64.StdEncoding.EncodeToString(img.Data))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", &ModelUnavailableError{Model: model, Err: fmt.Errorf("ollama: %s", bytes.TrimSpace(raw))}
	case transientStatus(resp.StatusCode), resp.StatusCode >= 500:
		return "", &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("ollama: %s", bytes.TrimSpace(raw))}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Response, nil
}
