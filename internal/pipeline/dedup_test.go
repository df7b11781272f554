package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/abhisek/quizforge/internal/quiz"
)

func q(stem string, d quiz.Difficulty) quiz.Question {
	return quiz.Question{
		Stem: stem, OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
		Correct: "A", Difficulty: d, CognitiveLevel: quiz.BloomApply,
	}
}

func distinctQuestions(n int) []quiz.Question {
	out := make([]quiz.Question, n)
	subjects := []string{
		"the water cycle", "plate tectonics", "cellular respiration",
		"supply and demand", "the French revolution", "binary search",
		"electromagnetic induction", "natural selection", "the carbon cycle",
		"orbital mechanics",
	}
	for i := range out {
		out[i] = q(fmt.Sprintf("Question %d: explain %s", i, subjects[i%len(subjects)]), quiz.DifficultyMedium)
	}
	return out
}

func TestClusterKeepsFirstSeen(t *testing.T) {
	d := NewDeduplicator(0)
	questions := []quiz.Question{
		q("What is photosynthesis?", quiz.DifficultyEasy),
		q("What   is photosynthesis?", quiz.DifficultyMedium), // whitespace dup
		q("Explain plate tectonics", quiz.DifficultyHard),
	}

	kept, removed := d.cluster(questions, nil)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
	if kept[0].Difficulty != quiz.DifficultyEasy {
		t.Error("representative must be first seen when no scores are available")
	}
}

func TestClusterPrefersHighestScore(t *testing.T) {
	d := NewDeduplicator(0)
	questions := []quiz.Question{
		q("What is photosynthesis?", quiz.DifficultyEasy),
		q("What is photosynthesis ?", quiz.DifficultyHard),
	}
	scores := []quiz.QualityScore{{Score: 6}, {Score: 9}}

	kept, _ := d.cluster(questions, scores)
	if len(kept) != 1 {
		t.Fatalf("kept = %d, want 1", len(kept))
	}
	if kept[0].Difficulty != quiz.DifficultyHard {
		t.Error("representative must be the highest scoring member")
	}
}

func TestClusterIsIdempotent(t *testing.T) {
	// A score-driven representative swap can collide with another
	// cluster: the third stem joins the first cluster and, as the
	// highest scorer, replaces its representative — but it is also a
	// near-duplicate of the second cluster's representative. One Run
	// must already resolve the chain.
	d := NewDeduplicator(0)
	questions := []quiz.Question{
		q("red apple pie", quiz.DifficultyMedium),
		q("red banana split", quiz.DifficultyMedium),
		q("red apple pie banana split", quiz.DifficultyMedium),
	}
	scores := []quiz.QualityScore{{Score: 5}, {Score: 5}, {Score: 9}}

	kept, report, err := d.Run(context.Background(), questions, scores, 1, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("kept = %d, want 1", len(kept))
	}
	if kept[0].Stem != "red apple pie banana split" {
		t.Errorf("representative = %q, want the highest scorer", kept[0].Stem)
	}
	if report.DuplicatesRemoved != 2 {
		t.Errorf("duplicatesRemoved = %d, want 2", report.DuplicatesRemoved)
	}

	again, _, err := d.Run(context.Background(), kept, nil, 1, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again) != len(kept) {
		t.Errorf("second pass kept %d of %d, deduplication must be idempotent", len(again), len(kept))
	}
}

func TestRunDedupAndReplenish(t *testing.T) {
	// The seed case: five questions where two stems differ only by
	// whitespace; one replenish round restores the requested count.
	d := NewDeduplicator(0)
	questions := distinctQuestions(5)
	questions[1].Stem = questions[0].Stem + "  "

	fresh := distinctQuestions(10)[5:]
	var replenishCalls []int
	replenish := func(_ context.Context, count int) ([]quiz.Question, error) {
		replenishCalls = append(replenishCalls, count)
		return fresh[:count], nil
	}

	kept, report, err := d.Run(context.Background(), questions, nil, 5, replenish)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(kept) != 5 {
		t.Errorf("kept = %d, want 5", len(kept))
	}
	if report.DuplicatesRemoved != 1 {
		t.Errorf("duplicatesRemoved = %d, want 1", report.DuplicatesRemoved)
	}
	if !report.Replenished || report.ReplenishRounds != 1 {
		t.Errorf("replenished = %v rounds = %d, want true/1", report.Replenished, report.ReplenishRounds)
	}
	// Deficit 1 over-fetched by 1.5x, rounded up.
	if len(replenishCalls) != 1 || replenishCalls[0] != 2 {
		t.Errorf("replenish calls = %v, want [2]", replenishCalls)
	}
}

func TestRunReplenishRoundsBounded(t *testing.T) {
	d := NewDeduplicator(0)
	questions := distinctQuestions(3)

	calls := 0
	replenish := func(_ context.Context, count int) ([]quiz.Question, error) {
		calls++
		// Every replenished question is a duplicate of an existing one.
		return []quiz.Question{questions[0]}, nil
	}

	kept, report, err := d.Run(context.Background(), questions, nil, 5, replenish)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != MaxReplenishAttempts {
		t.Errorf("replenish calls = %d, want %d", calls, MaxReplenishAttempts)
	}
	if report.ReplenishRounds != MaxReplenishAttempts {
		t.Errorf("rounds = %d, want %d", report.ReplenishRounds, MaxReplenishAttempts)
	}
	// Under-delivery is permitted.
	if len(kept) != 3 {
		t.Errorf("kept = %d, want 3", len(kept))
	}
}

func TestRunReplenishErrorKeepsSet(t *testing.T) {
	d := NewDeduplicator(0)
	questions := distinctQuestions(3)

	replenish := func(context.Context, int) ([]quiz.Question, error) {
		return nil, errors.New("provider down")
	}

	kept, report, err := d.Run(context.Background(), questions, nil, 5, replenish)
	if err == nil {
		t.Fatal("expected replenish error to surface")
	}
	if len(kept) != 3 {
		t.Errorf("kept = %d, want the pre-replenish set", len(kept))
	}
	if report.Replenished {
		t.Error("failed round must not be reported as replenished")
	}
}

func TestRunNoDeficitNoReplenish(t *testing.T) {
	d := NewDeduplicator(0)
	questions := distinctQuestions(5)

	replenish := func(context.Context, int) ([]quiz.Question, error) {
		t.Fatal("replenish must not run without a deficit")
		return nil, nil
	}

	kept, report, err := d.Run(context.Background(), questions, nil, 5, replenish)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(kept) != 5 || report.Replenished {
		t.Errorf("kept = %d replenished = %v", len(kept), report.Replenished)
	}
}
