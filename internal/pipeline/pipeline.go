// Package pipeline runs the full generation flow: cache lookup, direct
// or fanned-out adapter calls, quality scoring with regeneration,
// deduplication with replenishment and difficulty rebalancing.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/abhisek/quizforge/internal/cache"
	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/quiz"
	"github.com/abhisek/quizforge/internal/router"
)

// DefaultMaxTextChars bounds the source text; longer inputs are
// truncated with a warning.
const DefaultMaxTextChars = 1_000_000

// batchPause is the fixed delay between batch requests, kept for vendor
// rate limits.
const batchPause = time.Second

// ProgressFunc receives percentage milestones, always multiples of 5,
// monotonically non-decreasing, ending at 100 on success.
type ProgressFunc func(percent int)

// Config tunes the pipeline stages. The zero value means "use the
// documented defaults" for every field.
type Config struct {
	FanOut          FanOut
	DedupThreshold  int
	QualityAttempts int
	BalanceAttempts int

	// QualityProvider names the scorer adapter. Empty falls back to the
	// generating provider, which makes the generator score itself; that
	// loop is intentional but worth configuring away.
	QualityProvider string

	// DisableDedup and DisableBalance switch the stages off globally,
	// overriding per-request options.
	DisableDedup   bool
	DisableBalance bool

	MaxTextChars int
}

// Pipeline is the single entry point for question generation.
type Pipeline struct {
	router   *router.Router
	cache    *cache.Cache // nil disables caching entirely
	fanout   FanOut
	dedup    *Deduplicator
	balancer *Balancer

	qualityProvider string
	qualityAttempts int
	maxTextChars    int
	disableDedup    bool
	disableBalance  bool

	sleep func(ctx context.Context, d time.Duration) error
	logf  func(format string, args ...any)
}

// New builds a pipeline over the router and cache. cache may be nil
// when caching is disabled.
func New(r *router.Router, c *cache.Cache, cfg Config) *Pipeline {
	if cfg.FanOut.Threshold <= 0 {
		cfg.FanOut.Threshold = DefaultParallelThreshold
	}
	if cfg.FanOut.ChunkSize <= 0 {
		cfg.FanOut.ChunkSize = DefaultChunkSize
	}
	if cfg.FanOut.MaxWorkers <= 0 {
		cfg.FanOut.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	if cfg.QualityAttempts <= 0 {
		cfg.QualityAttempts = DefaultQualityAttempts
	}
	return &Pipeline{
		router:          r,
		cache:           c,
		fanout:          cfg.FanOut,
		dedup:           NewDeduplicator(cfg.DedupThreshold),
		balancer:        NewBalancer(nil, 0, cfg.BalanceAttempts),
		qualityProvider: cfg.QualityProvider,
		qualityAttempts: cfg.QualityAttempts,
		maxTextChars:    cfg.MaxTextChars,
		disableDedup:    cfg.DisableDedup,
		disableBalance:  cfg.DisableBalance,
		sleep:           sleepCtx,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate runs the full pipeline for one source text.
func (p *Pipeline) Generate(ctx context.Context, text string, opts quiz.Options) (*quiz.Questionset, error) {
	return p.generate(ctx, text, opts, nil)
}

// GenerateWithProgress is Generate with milestone reporting.
func (p *Pipeline) GenerateWithProgress(ctx context.Context, text string, opts quiz.Options, progress ProgressFunc) (*quiz.Questionset, error) {
	return p.generate(ctx, text, opts, progress)
}

func (p *Pipeline) generate(ctx context.Context, text string, opts quiz.Options, progress ProgressFunc) (*quiz.Questionset, error) {
	opts = opts.Normalized()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tracker := newProgressTracker(progress)
	tracker.report(5)

	var warnings []string
	if len(text) > p.maxTextChars {
		text = text[:p.maxTextChars]
		warnings = append(warnings, fmt.Sprintf("source text truncated to %d characters", p.maxTextChars))
		p.logf("source text truncated to %d characters", p.maxTextChars)
	}

	// Distribution request: build the plan once and attach it as an
	// immutable sub-option. The raw distributions stay on the options so
	// the fingerprint, and with it the cache row, reflects them.
	if opts.DistributionPlan == nil && (len(opts.DifficultyDistribution) > 0 || len(opts.BloomDistribution) > 0) {
		opts.DistributionPlan = BuildPlan(opts)
	}

	fingerprint := quiz.Fingerprint(text, opts)
	useFanout := p.fanout.Engaged(opts)

	if p.cache != nil && !opts.NoCache && !useFanout {
		if hit := p.cache.Get(ctx, text, opts); hit != nil {
			tracker.report(100)
			return hit, nil
		}
	}

	adapter, err := p.router.Select(opts)
	if err != nil {
		return nil, err
	}
	tracker.report(10)

	var qs *quiz.Questionset
	if useFanout {
		qs, err = p.fanout.Generate(ctx, adapter, text, opts, func(ev ChunkProgress) {
			// Chunks advance the 10..70 band.
			tracker.report(10 + ev.CompletedChunks*60/ev.TotalChunks)
		})
	} else {
		qs, err = adapter.Generate(ctx, text, opts)
	}
	if err != nil {
		return nil, err
	}
	tracker.report(70)

	qs.Metadata.SourceFingerprint = fingerprint
	if opts.DistributionPlan != nil {
		qs.Metadata.DistributionPlan = opts.DistributionPlan
	}

	var scores []quiz.QualityScore
	if opts.QualityCheck {
		scores = p.runQuality(ctx, adapter, text, opts, qs)
	}
	tracker.report(80)

	if opts.Deduplicate && !p.disableDedup {
		p.runDedup(ctx, adapter, text, opts, qs, scores)
	}
	tracker.report(90)

	if opts.BalanceDifficulty && !p.disableBalance && opts.Difficulty == quiz.RequestMixed {
		p.runBalance(ctx, adapter, text, opts, qs)
	}
	tracker.report(95)

	qs.Metadata.Warnings = append(warnings, qs.Metadata.Warnings...)

	if p.cache != nil && !opts.NoCache {
		p.cache.Set(ctx, text, opts, qs)
	}
	tracker.report(100)
	return qs, nil
}

// regenOpts derives the options for supplemental generation: a plain
// direct call with post-processing and caching off.
func regenOpts(opts quiz.Options, count int) quiz.Options {
	o := opts
	o.NumQuestions = count
	o.Parallel = false
	o.NoCache = true
	o.QualityCheck = false
	o.Deduplicate = false
	o.BalanceDifficulty = false
	o.DifficultyDistribution = nil
	o.BloomDistribution = nil
	o.DistributionPlan = nil
	return o
}

func (p *Pipeline) runQuality(ctx context.Context, adapter llm.Provider, text string, opts quiz.Options, qs *quiz.Questionset) []quiz.QualityScore {
	scorer, ok := p.router.Scorer(p.qualityProvider)
	if !ok {
		qs.Metadata.Warnings = append(qs.Metadata.Warnings, "quality check skipped: no scorer provider available")
		return nil
	}

	qc := NewQualityChecker(scorer, p.qualityAttempts)
	regen := func(ctx context.Context, count int) ([]quiz.Question, error) {
		set, err := adapter.Generate(ctx, text, regenOpts(opts, count))
		if err != nil {
			return nil, err
		}
		return set.Questions, nil
	}

	res := qc.Check(ctx, text, qs.Questions, regen)
	qs.Questions = res.Questions
	qs.Metadata.QualityScoring = &res.Report
	return res.Scores
}

func (p *Pipeline) runDedup(ctx context.Context, adapter llm.Provider, text string, opts quiz.Options, qs *quiz.Questionset, scores []quiz.QualityScore) {
	replenish := func(ctx context.Context, count int) ([]quiz.Question, error) {
		set, err := adapter.Generate(ctx, text, regenOpts(opts, count))
		if err != nil {
			return nil, err
		}
		return set.Questions, nil
	}

	kept, report, err := p.dedup.Run(ctx, qs.Questions, scores, opts.NumQuestions, replenish)
	qs.Questions = kept
	qs.Metadata.Deduplication = &report
	if err != nil {
		qs.Metadata.Warnings = append(qs.Metadata.Warnings, "replenishment failed: "+err.Error())
		p.logf("replenishment failed: %v", err)
	}
}

func (p *Pipeline) runBalance(ctx context.Context, adapter llm.Provider, text string, opts quiz.Options, qs *quiz.Questionset) {
	regen := func(ctx context.Context, count int, difficulty quiz.Difficulty) ([]quiz.Question, error) {
		o := regenOpts(opts, count)
		o.Difficulty = quiz.RequestedDifficulty(difficulty)
		set, err := adapter.Generate(ctx, text, o)
		if err != nil {
			return nil, err
		}
		return set.Questions, nil
	}

	balanced, report := p.balancer.Run(ctx, qs.Questions, opts.NumQuestions, regen)
	qs.Questions = balanced
	qs.Metadata.DifficultyBalancing = &report
	if !report.Balanced {
		qs.Metadata.Warnings = append(qs.Metadata.Warnings, "difficulty balancing did not converge")
	}
}

// BatchGenerate runs the pipeline for each text strictly sequentially
// with a fixed pause between requests. A per-text failure is recorded
// in its slot; the batch continues.
func (p *Pipeline) BatchGenerate(ctx context.Context, texts []string, opts quiz.Options) ([]BatchResult, error) {
	results := make([]BatchResult, len(texts))
	for i, text := range texts {
		if i > 0 {
			if err := p.sleep(ctx, batchPause); err != nil {
				return results, err
			}
		}
		qs, err := p.generate(ctx, text, opts, nil)
		results[i] = BatchResult{Questionset: qs}
		if err != nil {
			results[i].Err = err
		}
	}
	return results, nil
}

// BatchResult is one batch slot: a questionset or the error that
// replaced it.
type BatchResult struct {
	Questionset *quiz.Questionset
	Err         error
}

// progressTracker clamps reports to monotonically non-decreasing
// multiples of 5.
type progressTracker struct {
	fn   ProgressFunc
	last int
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn}
}

func (t *progressTracker) report(pct int) {
	if t == nil || t.fn == nil {
		return
	}
	pct = pct / 5 * 5
	if pct <= t.last {
		return
	}
	t.last = pct
	t.fn(pct)
}
