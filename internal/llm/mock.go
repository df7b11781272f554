package llm

import (
	"context"
	"sync"
	"time"

	"github.com/abhisek/quizforge/internal/quiz"
)

// MockCompletion is one canned vendor response for the MockCompleter.
type MockCompletion struct {
	Raw string
	Err error
}

// MockCall records one complete() invocation.
type MockCall struct {
	Model  string
	Prompt string
	Images int
}

// MockCompleter is a deterministic completer for testing the adapter
// core. It returns canned responses in FIFO order and records calls.
type MockCompleter struct {
	mu            sync.Mutex
	responses     []MockCompletion
	Calls         []MockCall
	Unconfigured  bool
	RepeatLastRaw bool // keep serving the final response instead of failing
}

// NewMockCompleter creates a MockCompleter with the given responses.
func NewMockCompleter(responses ...MockCompletion) *MockCompleter {
	return &MockCompleter{responses: responses}
}

func (m *MockCompleter) configured() bool { return !m.Unconfigured }

func (m *MockCompleter) complete(_ context.Context, model, _, prompt string, images []quiz.Image, _ float64, _ int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Model: model, Prompt: prompt, Images: len(images)})

	if len(m.responses) == 0 {
		return "", &ProviderError{Provider: "mock", Err: context.Canceled}
	}
	resp := m.responses[0]
	if !m.RepeatLastRaw || len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Raw, nil
}

// CallCount returns the number of complete() calls made.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// NewMockAdapter builds an Adapter around a MockCompleter with no
// backoff sleeping, for tests in other packages.
func NewMockAdapter(name string, models []string, mc *MockCompleter) *Adapter {
	a := newAdapter(name, "mock adapter for tests", mc, models, RetryConfig{MaxRetries: 3, BaseDelay: 1})
	a.sleep = func(context.Context, time.Duration) error { return nil }
	return a
}

// MockProvider is a canned Provider + Scorer for pipeline, router and
// queue tests.
type MockProvider struct {
	ProviderName string
	Configured   bool
	Models       []string

	GenerateFunc func(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error)
	ScoreFunc    func(ctx context.Context, text string, questions []quiz.Question) ([]quiz.QualityScore, error)

	mu    sync.Mutex
	calls int
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Description() string { return "mock provider for tests" }
func (m *MockProvider) IsConfigured() bool  { return m.Configured }

func (m *MockProvider) SupportedModels() []string {
	if len(m.Models) == 0 {
		return []string{"mock-model"}
	}
	return m.Models
}

func (m *MockProvider) CurrentModel() string { return m.SupportedModels()[0] }

func (m *MockProvider) Generate(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.GenerateFunc(ctx, text, opts)
}

func (m *MockProvider) ScoreQuestions(ctx context.Context, text string, questions []quiz.Question) ([]quiz.QualityScore, error) {
	if m.ScoreFunc == nil {
		scores := make([]quiz.QualityScore, len(questions))
		for i := range scores {
			scores[i] = quiz.QualityScore{Score: 8, Recommendation: "accept"}
		}
		return scores, nil
	}
	return m.ScoreFunc(ctx, text, questions)
}

func (m *MockProvider) TestConnection(context.Context) TestResult {
	return TestResult{Success: m.Configured, Message: "mock", Model: m.CurrentModel()}
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
