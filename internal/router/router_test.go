package router

import (
	"context"
	"errors"
	"testing"

	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/quiz"
)

func fixedSet(provider string) *quiz.Questionset {
	return &quiz.Questionset{
		Questions: []quiz.Question{{
			Stem: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
			Correct: "A", Difficulty: quiz.DifficultyEasy, CognitiveLevel: quiz.BloomApply,
		}},
		Metadata: quiz.Metadata{Provider: provider},
	}
}

func okProvider(name string) *llm.MockProvider {
	return &llm.MockProvider{
		ProviderName: name,
		Configured:   true,
		GenerateFunc: func(context.Context, string, quiz.Options) (*quiz.Questionset, error) {
			return fixedSet(name), nil
		},
	}
}

func TestGenerateUsesCurrentProvider(t *testing.T) {
	r := New("beta", okProvider("alpha"), okProvider("beta"))

	qs, err := r.Generate(context.Background(), "text", quiz.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if qs.Metadata.Provider != "beta" {
		t.Errorf("routed to %q, want default beta", qs.Metadata.Provider)
	}
}

func TestGenerateProviderOverride(t *testing.T) {
	r := New("alpha", okProvider("alpha"), okProvider("beta"))

	opts := quiz.DefaultOptions()
	opts.Provider = "beta"
	qs, err := r.Generate(context.Background(), "text", opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if qs.Metadata.Provider != "beta" {
		t.Errorf("override ignored, routed to %q", qs.Metadata.Provider)
	}

	opts.Provider = "missing"
	if _, err := r.Generate(context.Background(), "text", opts); err == nil {
		t.Fatal("expected error for unknown provider override")
	}
}

func TestGenerateNoProviderConfigured(t *testing.T) {
	unconfigured := &llm.MockProvider{ProviderName: "alpha"}
	r := New("alpha", unconfigured)

	_, err := r.Generate(context.Background(), "text", quiz.DefaultOptions())
	var cfg *llm.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestSwitchProvider(t *testing.T) {
	r := New("alpha", okProvider("alpha"), okProvider("beta"), &llm.MockProvider{ProviderName: "gamma"})

	if err := r.Switch("beta"); err != nil {
		t.Fatalf("Switch(beta): %v", err)
	}
	if r.Current() != "beta" {
		t.Errorf("current = %q, want beta", r.Current())
	}

	if err := r.Switch("gamma"); err == nil {
		t.Error("switching to an unconfigured provider must fail")
	}
	if err := r.Switch("nope"); err == nil {
		t.Error("switching to an unknown provider must fail")
	}
	if r.Current() != "beta" {
		t.Errorf("failed switches must not change current, got %q", r.Current())
	}
}

func TestListIncludesLoadErrors(t *testing.T) {
	r := New("alpha", okProvider("alpha"))
	r.RecordLoadError("gemini", "client init failed")

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("listed %d providers, want 2", len(infos))
	}
	var found bool
	for _, info := range infos {
		if info.Name == "gemini" && info.LoadError != "" {
			found = true
		}
	}
	if !found {
		t.Error("failed-to-load provider missing from listing")
	}
}

func TestRoutingStats(t *testing.T) {
	failing := &llm.MockProvider{
		ProviderName: "alpha",
		Configured:   true,
		GenerateFunc: func(context.Context, string, quiz.Options) (*quiz.Questionset, error) {
			return nil, errors.New("boom")
		},
	}
	r := New("alpha", failing, okProvider("beta"))

	_, _ = r.Generate(context.Background(), "text", quiz.DefaultOptions())
	opts := quiz.DefaultOptions()
	opts.Provider = "beta"
	_, _ = r.Generate(context.Background(), "text", opts)
	_, _ = r.Generate(context.Background(), "text", opts)

	stats := r.RoutingStats()
	if stats["alpha"].Requests != 1 || stats["alpha"].Failures != 1 {
		t.Errorf("alpha stats = %+v", stats["alpha"])
	}
	if stats["beta"].Requests != 2 || stats["beta"].Failures != 0 {
		t.Errorf("beta stats = %+v", stats["beta"])
	}

	r.ResetRoutingStats()
	if s := r.RoutingStats(); s["alpha"].Requests != 0 || s["beta"].Requests != 0 {
		t.Error("ResetRoutingStats did not clear counters")
	}
}

func TestTestAllIndependent(t *testing.T) {
	r := New("alpha", okProvider("alpha"), &llm.MockProvider{ProviderName: "gamma"})

	results := r.TestAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !results["alpha"].Success {
		t.Error("configured provider probe should succeed")
	}
	if results["gamma"].Success {
		t.Error("unconfigured provider probe should fail")
	}
}

func TestRoundRobinStrategy(t *testing.T) {
	r := New("alpha", okProvider("alpha"), okProvider("beta"))
	if err := r.SetRoutingStrategy(StrategyRoundRobin); err != nil {
		t.Fatalf("SetRoutingStrategy: %v", err)
	}

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		qs, err := r.Generate(context.Background(), "text", quiz.DefaultOptions())
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		seen[qs.Metadata.Provider]++
	}
	if seen["alpha"] != 2 || seen["beta"] != 2 {
		t.Errorf("round robin distribution = %v", seen)
	}
}

func TestCheapestStrategy(t *testing.T) {
	// "openrouter" is cost tier 1 in the characteristics table.
	r := New("anthropic", okProvider("anthropic"), okProvider("openrouter"))
	if err := r.SetRoutingStrategy(StrategyCheapest); err != nil {
		t.Fatalf("SetRoutingStrategy: %v", err)
	}

	qs, err := r.Generate(context.Background(), "text", quiz.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if qs.Metadata.Provider != "openrouter" {
		t.Errorf("cheapest routed to %q", qs.Metadata.Provider)
	}

	if err := r.SetRoutingStrategy("fastest"); err == nil {
		t.Error("unknown strategy accepted")
	}
}

func TestScorerFallsBackToCurrent(t *testing.T) {
	r := New("alpha", okProvider("alpha"), okProvider("beta"))

	if _, ok := r.Scorer("beta"); !ok {
		t.Error("named scorer not found")
	}
	if s, ok := r.Scorer(""); !ok || s == nil {
		t.Error("scorer must fall back to the current provider")
	}
}
