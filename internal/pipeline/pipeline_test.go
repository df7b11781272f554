package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/quizforge/internal/cache"
	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/quiz"
	"github.com/abhisek/quizforge/internal/router"
	"github.com/abhisek/quizforge/internal/store"
)

// subjects are pairwise-dissimilar topics so generated stems never
// cluster as near duplicates.
var subjects = []string{
	"mitosis", "gravity", "entropy", "photosynthesis", "inflation",
	"osmosis", "tectonics", "algebra", "syntax", "voltage",
	"glaciers", "neurons", "orbits", "magnetism", "vectors",
	"proteins", "isotopes", "currents", "probability", "friction",
	"genomes", "lattices", "polymers", "synapses", "quasars",
	"enzymes", "monsoons", "fjords", "ledgers", "turbines",
}

// mixedSet returns n questions over distinct stems with a 30/40/30-ish
// difficulty mix so the balancer sees a converged set.
func mixedSet(n int, tag string) []quiz.Question {
	out := make([]quiz.Question, n)
	for i := range out {
		d := quiz.DifficultyMedium
		switch {
		case i%10 < 3:
			d = quiz.DifficultyEasy
		case i%10 >= 7:
			d = quiz.DifficultyHard
		}
		out[i] = q(fmt.Sprintf("%s explain %s", tag, subjects[i%len(subjects)]), d)
	}
	return out
}

func generatingProvider(rec *chunkRecorder) *llm.MockProvider {
	p := &llm.MockProvider{ProviderName: "mock", Configured: true}
	p.GenerateFunc = func(_ context.Context, _ string, opts quiz.Options) (*quiz.Questionset, error) {
		var call int
		if rec != nil {
			rec.mu.Lock()
			rec.calls = append(rec.calls, opts)
			call = len(rec.calls)
			rec.mu.Unlock()
		}
		return &quiz.Questionset{
			Analysis:  "analysis",
			Questions: mixedSet(opts.NumQuestions, fmt.Sprintf("call%d", call)),
			Metadata:  quiz.Metadata{Provider: "mock", Model: "mock-model"},
		}, nil
	}
	return p
}

func testPipeline(t *testing.T, p llm.Provider, cfg Config) (*Pipeline, *cache.Cache) {
	t.Helper()
	s, err := store.Open(context.Background(), store.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := cache.New(s, 0, 0)
	pl := New(router.New("mock", p), c, cfg)
	pl.logf = t.Logf
	return pl, c
}

func TestGenerateDirectFlow(t *testing.T) {
	rec := &chunkRecorder{}
	pl, _ := testPipeline(t, generatingProvider(rec), Config{})

	opts := quiz.DefaultOptions()
	qs, err := pl.Generate(context.Background(), "source text", opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs.Questions) != 10 {
		t.Errorf("questions = %d, want 10", len(qs.Questions))
	}
	if qs.Metadata.SourceFingerprint == "" {
		t.Error("missing source fingerprint")
	}
	if qs.Metadata.Provider != "mock" || qs.Metadata.Model != "mock-model" {
		t.Errorf("provenance = %q/%q", qs.Metadata.Provider, qs.Metadata.Model)
	}
	if qs.Metadata.QualityScoring == nil {
		t.Error("missing quality report")
	}
	if qs.Metadata.Deduplication == nil {
		t.Error("missing dedup report")
	}
	if qs.Metadata.DifficultyBalancing == nil {
		t.Error("missing balance report")
	}
	// Below the fan-out threshold: a single adapter call.
	if len(rec.calls) != 1 {
		t.Errorf("adapter calls = %d, want 1", len(rec.calls))
	}
}

func TestGenerateCacheRoundTrip(t *testing.T) {
	p := generatingProvider(nil)
	pl, _ := testPipeline(t, p, Config{})

	opts := quiz.DefaultOptions()
	first, err := pl.Generate(context.Background(), "cached text", opts)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if first.Metadata.Cached {
		t.Error("fresh result marked cached")
	}
	callsAfterFirst := p.CallCount()

	second, err := pl.Generate(context.Background(), "cached text", opts)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !second.Metadata.Cached {
		t.Error("second result must come from the cache")
	}
	if p.CallCount() != callsAfterFirst {
		t.Errorf("cache hit still called the adapter (%d -> %d)", callsAfterFirst, p.CallCount())
	}
}

func TestGenerateNoCache(t *testing.T) {
	p := generatingProvider(nil)
	pl, c := testPipeline(t, p, Config{})

	opts := quiz.DefaultOptions()
	opts.NoCache = true
	if _, err := pl.Generate(context.Background(), "text", opts); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	st, err := c.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 0 {
		t.Errorf("noCache wrote %d cache rows", st.Entries)
	}
}

func TestGenerateFanOutCachesMergedOnly(t *testing.T) {
	rec := &chunkRecorder{}
	pl, c := testPipeline(t, generatingProvider(rec), Config{})

	opts := quiz.DefaultOptions()
	opts.NumQuestions = 25
	opts.QualityCheck = false
	opts.Deduplicate = false
	opts.BalanceDifficulty = false

	qs, err := pl.Generate(context.Background(), "long text", opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs.Questions) != 25 {
		t.Errorf("questions = %d, want 25", len(qs.Questions))
	}

	// Chunks bypass the cache; exactly one row for the merged set.
	st, err := c.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 1 {
		t.Errorf("cache rows = %d, want 1", st.Entries)
	}
	for i, call := range rec.calls {
		if !call.NoCache {
			t.Errorf("chunk call %d did not bypass the cache", i)
		}
	}
}

func TestGenerateDistributionPlan(t *testing.T) {
	rec := &chunkRecorder{}
	pl, _ := testPipeline(t, generatingProvider(rec), Config{})

	opts := quiz.DefaultOptions()
	opts.NumQuestions = 10
	opts.DifficultyDistribution = map[string]int{"easy": 3, "medium": 4, "hard": 3}
	opts.QualityCheck = false
	opts.Deduplicate = false
	opts.BalanceDifficulty = false

	qs, err := pl.Generate(context.Background(), "text", opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs.Metadata.DistributionPlan) == 0 {
		t.Fatal("metadata missing distribution plan")
	}
	if qs.Metadata.DistributionPlan.Total() != 10 {
		t.Errorf("plan total = %d, want 10", qs.Metadata.DistributionPlan.Total())
	}

	if len(rec.calls) != 1 {
		t.Fatalf("adapter calls = %d, want 1 (plan built once, flow stays flat)", len(rec.calls))
	}
	call := rec.calls[0]
	if len(call.DistributionPlan) == 0 {
		t.Error("adapter call missing the attached plan")
	}
}

func TestGenerateDistributionCachesSeparately(t *testing.T) {
	p := generatingProvider(nil)
	pl, c := testPipeline(t, p, Config{})

	plain := quiz.DefaultOptions()
	plain.QualityCheck = false
	plain.Deduplicate = false
	plain.BalanceDifficulty = false

	dist := plain
	dist.DifficultyDistribution = map[string]int{"easy": 10}

	if quiz.Fingerprint("same text", dist) == quiz.Fingerprint("same text", plain) {
		t.Fatal("distribution options must change the fingerprint")
	}

	if _, err := pl.Generate(context.Background(), "same text", dist); err != nil {
		t.Fatalf("distribution Generate: %v", err)
	}
	calls := p.CallCount()

	qs, err := pl.Generate(context.Background(), "same text", plain)
	if err != nil {
		t.Fatalf("plain Generate: %v", err)
	}
	if qs.Metadata.Cached {
		t.Error("plain request served from the distribution request's cache row")
	}
	if p.CallCount() != calls+1 {
		t.Errorf("plain request did not reach the adapter (calls %d -> %d)", calls, p.CallCount())
	}
	if len(qs.Metadata.DistributionPlan) != 0 {
		t.Error("plain result carries a distribution plan")
	}

	st, err := c.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 2 {
		t.Errorf("cache rows = %d, want 2", st.Entries)
	}
}

func TestGenerateInvalidOptions(t *testing.T) {
	pl, _ := testPipeline(t, generatingProvider(nil), Config{})

	opts := quiz.DefaultOptions()
	opts.DifficultyDistribution = map[string]int{"easy": 3} // sums to 3, not 10
	if _, err := pl.Generate(context.Background(), "text", opts); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGenerateProgressMilestones(t *testing.T) {
	pl, _ := testPipeline(t, generatingProvider(nil), Config{})

	var milestones []int
	opts := quiz.DefaultOptions()
	_, err := pl.GenerateWithProgress(context.Background(), "text", opts, func(pct int) {
		milestones = append(milestones, pct)
	})
	if err != nil {
		t.Fatalf("GenerateWithProgress: %v", err)
	}

	if len(milestones) == 0 {
		t.Fatal("no progress reported")
	}
	last := 0
	for _, pct := range milestones {
		if pct%5 != 0 {
			t.Errorf("milestone %d is not a multiple of 5", pct)
		}
		if pct <= last {
			t.Errorf("milestones not strictly increasing: %v", milestones)
		}
		last = pct
	}
	if last != 100 {
		t.Errorf("final milestone = %d, want 100", last)
	}
}

func TestGenerateTruncatesLongText(t *testing.T) {
	rec := &chunkRecorder{}
	pl, _ := testPipeline(t, generatingProvider(rec), Config{MaxTextChars: 32})

	qs, err := pl.Generate(context.Background(), strings.Repeat("x", 100), quiz.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, w := range qs.Metadata.Warnings {
		if strings.Contains(w, "truncated") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a truncation warning", qs.Metadata.Warnings)
	}
}

func TestGenerateReplenishFailureContained(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p := &llm.MockProvider{ProviderName: "mock", Configured: true}
	p.GenerateFunc = func(_ context.Context, _ string, opts quiz.Options) (*quiz.Questionset, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if !first {
			return nil, errors.New("provider down")
		}
		questions := mixedSet(5, "main")
		questions[1].Stem = questions[0].Stem + " " // near duplicate
		return &quiz.Questionset{Questions: questions, Metadata: quiz.Metadata{Provider: "mock"}}, nil
	}
	pl, _ := testPipeline(t, p, Config{})

	opts := quiz.DefaultOptions()
	opts.NumQuestions = 5
	opts.QualityCheck = false
	opts.BalanceDifficulty = false
	opts.NoCache = true

	qs, err := pl.Generate(context.Background(), "text", opts)
	if err != nil {
		t.Fatalf("post-processing failure must not propagate: %v", err)
	}
	if len(qs.Questions) != 4 {
		t.Errorf("questions = %d, want 4 after dedup without replenishment", len(qs.Questions))
	}
	if qs.Metadata.Deduplication == nil || qs.Metadata.Deduplication.DuplicatesRemoved != 1 {
		t.Errorf("dedup report = %+v", qs.Metadata.Deduplication)
	}
	if len(qs.Metadata.Warnings) == 0 {
		t.Error("absorbed failure must leave a warning")
	}
}

func TestBatchGenerateSequentialWithPause(t *testing.T) {
	var mu sync.Mutex
	p := &llm.MockProvider{ProviderName: "mock", Configured: true}
	p.GenerateFunc = func(_ context.Context, text string, opts quiz.Options) (*quiz.Questionset, error) {
		if text == "bad" {
			return nil, errors.New("generation failed")
		}
		return &quiz.Questionset{Questions: mixedSet(opts.NumQuestions, text), Metadata: quiz.Metadata{Provider: "mock"}}, nil
	}
	pl, _ := testPipeline(t, p, Config{})

	var pauses []time.Duration
	pl.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		pauses = append(pauses, d)
		mu.Unlock()
		return nil
	}

	opts := quiz.DefaultOptions()
	opts.NoCache = true
	results, err := pl.BatchGenerate(context.Background(), []string{"one", "bad", "three"}, opts)
	if err != nil {
		t.Fatalf("BatchGenerate: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("good slots failed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("bad slot must carry its error")
	}
	if len(pauses) != 2 {
		t.Fatalf("pauses = %d, want 2", len(pauses))
	}
	for _, d := range pauses {
		if d != time.Second {
			t.Errorf("pause = %v, want 1s", d)
		}
	}
}
