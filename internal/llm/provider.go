package llm

import (
	"context"

	"github.com/abhisek/quizforge/internal/quiz"
)

// Provider is the uniform contract every vendor adapter implements.
// Adapters are process-lifetime singletons owned by the router; one
// in-flight Generate per adapter is the expected discipline, and the
// model-fallback cursor is serialized internally.
type Provider interface {
	// Name returns the registry name, e.g. "anthropic".
	Name() string

	// Description is a one-line human description for listings.
	Description() string

	// Generate runs one end-to-end attempt (with internal retry and
	// model fallback) and returns a validated, trimmed Questionset.
	Generate(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error)

	// TestConnection probes the vendor with a minimal request.
	TestConnection(ctx context.Context) TestResult

	// IsConfigured reports whether credentials/URL are present.
	// A pre-flight check only; it does not hit the network.
	IsConfigured() bool

	// SupportedModels lists the fallback chain, highest preference
	// first.
	SupportedModels() []string

	// CurrentModel is the model the next Generate will start on.
	CurrentModel() string
}

// Scorer rates questions against the quality rubric. Adapters implement
// it alongside Provider so any configured provider can act as the
// scorer.
type Scorer interface {
	// ScoreQuestions returns one rubric result per input question, in
	// input order.
	ScoreQuestions(ctx context.Context, sourceText string, questions []quiz.Question) ([]quiz.QualityScore, error)
}

// TestResult is the outcome of a connection probe.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}
