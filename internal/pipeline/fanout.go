package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/quiz"
)

// Fan-out defaults.
const (
	DefaultParallelThreshold = 20
	DefaultChunkSize         = 10
	DefaultMaxWorkers        = 5
)

// FanOut splits one large generation into concurrent chunk requests
// against the same adapter and merges the results in submission order.
type FanOut struct {
	Threshold  int
	ChunkSize  int
	MaxWorkers int
}

// DefaultFanOut returns the documented fan-out policy.
func DefaultFanOut() FanOut {
	return FanOut{
		Threshold:  DefaultParallelThreshold,
		ChunkSize:  DefaultChunkSize,
		MaxWorkers: DefaultMaxWorkers,
	}
}

// Engaged reports whether this request meets the fan-out policy.
func (f FanOut) Engaged(opts quiz.Options) bool {
	return opts.Parallel && opts.NumQuestions >= f.Threshold
}

// ChunkProgress is one fan-out progress event. Questions carries the
// freshly completed chunk so a UI may stream partial results.
type ChunkProgress struct {
	CompletedChunks int
	TotalChunks     int
	Progress        int // percent, 0..100
	Questions       []quiz.Question
}

// Generate runs the fan-out: chunked counts, bounded concurrency, merge
// in submission order, truncate to the requested total. Chunks always
// bypass the cache and skip post-processing; the orchestrator applies
// those to the merged set. The first chunk failure fails the whole
// fan-out.
func (f FanOut) Generate(ctx context.Context, p llm.Provider, text string, opts quiz.Options, onProgress func(ChunkProgress)) (*quiz.Questionset, error) {
	sizes := chunkSizes(opts.NumQuestions, f.ChunkSize)
	results := make([]*quiz.Questionset, len(sizes))

	var (
		mu        sync.Mutex
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.MaxWorkers)
	for i, size := range sizes {
		g.Go(func() error {
			chunkOpts := opts
			chunkOpts.NumQuestions = size
			chunkOpts.Parallel = false
			chunkOpts.NoCache = true
			chunkOpts.QualityCheck = false
			chunkOpts.Deduplicate = false
			chunkOpts.BalanceDifficulty = false
			chunkOpts.DifficultyDistribution = nil
			chunkOpts.BloomDistribution = nil
			chunkOpts.DistributionPlan = nil

			qs, err := p.Generate(gctx, text, chunkOpts)
			if err != nil {
				return err
			}
			results[i] = qs

			if onProgress != nil {
				// Held across the callback so events arrive in
				// completion order.
				mu.Lock()
				completed++
				onProgress(ChunkProgress{
					CompletedChunks: completed,
					TotalChunks:     len(sizes),
					Progress:        completed * 100 / len(sizes),
					Questions:       qs.Questions,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &quiz.Questionset{
		Analysis: results[0].Analysis,
		Metadata: results[0].Metadata,
	}
	merged.Metadata.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	merged.Metadata.Invalid = 0
	for _, qs := range results {
		merged.Questions = append(merged.Questions, qs.Questions...)
		merged.Metadata.Invalid += qs.Metadata.Invalid
	}
	merged.Trim(opts.NumQuestions)
	return merged, nil
}

// chunkSizes splits total into chunkSize pieces, last carries the
// remainder.
func chunkSizes(total, chunkSize int) []int {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var sizes []int
	for total > 0 {
		n := chunkSize
		if total < n {
			n = total
		}
		sizes = append(sizes, n)
		total -= n
	}
	return sizes
}
