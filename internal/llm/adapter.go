package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/quizforge/internal/quiz"
)

// completer is the single vendor-specific operation: send one prompt to
// one model and return the raw text payload from the response envelope.
// Implementations classify transport errors into the typed taxonomy
// while the HTTP status is still at hand.
type completer interface {
	complete(ctx context.Context, model, system, prompt string, images []quiz.Image, temperature float64, maxTokens int) (string, error)
	configured() bool
}

// RetryConfig bounds the per-model attempt loop.
type RetryConfig struct {
	// MaxRetries is the attempt cap per model class. Default 3.
	MaxRetries int

	// BaseDelay seeds the exponential backoff: baseDelay * 2^(attempt-1).
	BaseDelay time.Duration
}

// DefaultRetryConfig returns the documented retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: 1 * time.Second}
}

// Generation parameters shared by all adapters.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 8192
	probeMaxTokens     = 1024
)

// Adapter implements Provider on top of a vendor completer. It owns the
// model fallback cursor: a strictly forward cursor for the adapter's
// lifetime, so after one fallback subsequent generations start on the
// new preferred model.
type Adapter struct {
	name        string
	description string
	c           completer
	models      []string
	retry       RetryConfig
	temperature float64
	maxTokens   int

	// sleep is injectable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	modelIndex int
}

func newAdapter(name, description string, c completer, models []string, retry RetryConfig) *Adapter {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = DefaultRetryConfig().MaxRetries
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	return &Adapter{
		name:        name,
		description: description,
		c:           c,
		models:      models,
		retry:       retry,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (a *Adapter) Name() string        { return a.name }
func (a *Adapter) Description() string { return a.description }

func (a *Adapter) IsConfigured() bool { return a.c.configured() }

func (a *Adapter) SupportedModels() []string {
	out := make([]string, len(a.models))
	copy(out, a.models)
	return out
}

func (a *Adapter) CurrentModel() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.modelIndex >= len(a.models) {
		return ""
	}
	return a.models[a.modelIndex]
}

// advanceModel moves the fallback cursor forward. Returns the new model
// and true, or false when the chain is exhausted.
func (a *Adapter) advanceModel() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.modelIndex+1 >= len(a.models) {
		a.modelIndex = len(a.models)
		return "", false
	}
	a.modelIndex++
	return a.models[a.modelIndex], true
}

// Generate runs the per-attempt algorithm: build prompt, POST, recover
// JSON, standardize, validate, trim, stamp metadata. Error handling per
// class: 404 advances the model cursor and resets the attempt counter,
// 429/503/529 backs off exponentially, anything else fails on the final
// attempt.
func (a *Adapter) Generate(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error) {
	if !a.IsConfigured() {
		return nil, &ConfigurationError{Provider: a.name, Reason: "missing credentials"}
	}

	o := opts.Normalized()
	prompt := BuildPrompt(text, o)

	// The attempt counter resets on model fallback; cap total attempts
	// across all models so a 404 chain cannot loop unbounded.
	totalCap := a.retry.MaxRetries * len(a.models)
	if totalCap < a.retry.MaxRetries {
		totalCap = a.retry.MaxRetries
	}

	attempt := 1
	var lastErr error
	for total := 0; total < totalCap; total++ {
		model := a.CurrentModel()
		if model == "" {
			return nil, &ConfigurationError{Provider: a.name, Reason: "no usable model remains"}
		}

		raw, err := a.c.complete(ctx, model, systemPrompt, prompt, o.Images, a.temperature, a.maxTokens)
		if err == nil {
			qs, perr := a.standardize(raw, o, model)
			if perr == nil {
				return qs, nil
			}
			err = perr
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var unavailable *ModelUnavailableError
		if errors.As(err, &unavailable) {
			if _, ok := a.advanceModel(); ok {
				// Fresh model, fresh attempt counter, no backoff.
				attempt = 1
				continue
			}
			return nil, &ConfigurationError{Provider: a.name, Reason: fmt.Sprintf("no model available (last: %v)", err)}
		}

		if attempt >= a.retry.MaxRetries {
			return nil, &ProviderError{Provider: a.name, Err: err}
		}

		var transient *TransientError
		if errors.As(err, &transient) {
			delay := a.retry.BaseDelay * (1 << (attempt - 1))
			if transient.RetryAfter > 0 {
				delay = transient.RetryAfter
			}
			if serr := a.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
		}
		attempt++
	}

	return nil, &ProviderError{Provider: a.name, Err: fmt.Errorf("attempt budget exhausted: %w", lastErr)}
}

// standardize recovers the JSON payload, validates it, trims to the
// requested count and stamps provenance metadata.
func (a *Adapter) standardize(raw string, opts quiz.Options, model string) (*quiz.Questionset, error) {
	repaired, err := RecoverJSON(raw)
	if err != nil {
		return nil, err
	}

	qs, _, err := quiz.DecodeQuestionset(repaired)
	if err != nil {
		return nil, err
	}

	canonical, err := json.Marshal(qs)
	if err != nil {
		return nil, err
	}
	if err := validateQuestionset(canonical); err != nil {
		return nil, err
	}

	qs.Trim(opts.NumQuestions)
	qs.Metadata.Provider = a.name
	qs.Metadata.Model = model
	qs.Metadata.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return qs, nil
}

// ScoreQuestions sends the rubric prompt and parses one result per
// question, in input order.
func (a *Adapter) ScoreQuestions(ctx context.Context, sourceText string, questions []quiz.Question) ([]quiz.QualityScore, error) {
	if !a.IsConfigured() {
		return nil, &ConfigurationError{Provider: a.name, Reason: "missing credentials"}
	}
	if len(questions) == 0 {
		return nil, nil
	}

	prompt := BuildScoringPrompt(sourceText, questions)
	raw, err := a.c.complete(ctx, a.CurrentModel(), scoringSystemPrompt, prompt, nil, 0.2, a.maxTokens)
	if err != nil {
		return nil, err
	}

	repaired, err := RecoverJSON(raw)
	if err != nil {
		return nil, err
	}

	var scores []quiz.QualityScore
	if err := json.Unmarshal(repaired, &scores); err != nil {
		// Some models wrap the array: {"scores": [...]}.
		var wrapped struct {
			Scores []quiz.QualityScore `json:"scores"`
		}
		if werr := json.Unmarshal(repaired, &wrapped); werr != nil || len(wrapped.Scores) == 0 {
			return nil, fmt.Errorf("decode rubric response: %w", err)
		}
		scores = wrapped.Scores
	}
	if len(scores) != len(questions) {
		return nil, fmt.Errorf("rubric returned %d results for %d questions", len(scores), len(questions))
	}
	return scores, nil
}

// TestConnection issues a one-question probe against the current model.
func (a *Adapter) TestConnection(ctx context.Context) TestResult {
	if !a.IsConfigured() {
		return TestResult{Success: false, Message: "not configured"}
	}

	model := a.CurrentModel()
	raw, err := a.c.complete(ctx, model, systemPrompt, probePrompt, nil, 0, probeMaxTokens)
	if err != nil {
		return TestResult{Success: false, Message: err.Error(), Model: model}
	}
	if _, err := RecoverJSON(raw); err != nil {
		return TestResult{Success: false, Message: fmt.Sprintf("probe returned unusable payload: %v", err), Model: model}
	}
	return TestResult{Success: true, Message: "ok", Model: model}
}
