package pipeline

import (
	"context"
	"math"

	"github.com/abhisek/quizforge/internal/quiz"
)

// Dedup defaults.
const (
	DefaultDedupThreshold = 85

	// MaxReplenishAttempts bounds the rounds of supplemental generation
	// after deduplication leaves a deficit.
	MaxReplenishAttempts = 3

	// replenishOverfetch asks for more than the deficit so that a round
	// survives its own duplicates.
	replenishOverfetch = 1.5
)

// ReplenishFunc generates count supplemental questions with quality
// checking and deduplication disabled.
type ReplenishFunc func(ctx context.Context, count int) ([]quiz.Question, error)

// Deduplicator clusters near-duplicate questions by stem similarity and
// keeps one representative per cluster.
type Deduplicator struct {
	threshold int
}

// NewDeduplicator builds a deduplicator. Out-of-range thresholds fall
// back to the default.
func NewDeduplicator(threshold int) *Deduplicator {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultDedupThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// item pairs a question with its quality score so representatives keep
// their scores across clustering passes.
type item struct {
	q      quiz.Question
	score  float64
	scored bool
}

type cluster struct {
	seedStem string // first member's stem, the comparison base
	repIdx   int    // index into members of the representative
	members  []item
}

// Run deduplicates, then replenishes while a deficit against target
// remains and rounds are left. Replenished questions are merged and the
// whole set re-clustered, so a replenish round can never reintroduce a
// duplicate. Under-delivery is permitted; the report records it.
// scores may be nil or shorter than questions; where present they pick
// the best cluster representative.
func (d *Deduplicator) Run(ctx context.Context, questions []quiz.Question, scores []quiz.QualityScore, target int, replenish ReplenishFunc) ([]quiz.Question, quiz.DedupReport, error) {
	kept, removed := d.cluster(questions, scores)
	report := quiz.DedupReport{
		DuplicatesRemoved: removed,
		Clusters:          len(kept),
	}

	for len(kept) < target && report.ReplenishRounds < MaxReplenishAttempts {
		if replenish == nil {
			break
		}
		deficit := target - len(kept)
		want := int(math.Ceil(float64(deficit) * replenishOverfetch))

		extra, err := replenish(ctx, want)
		if err != nil {
			return kept, report, err
		}
		report.Replenished = true
		report.ReplenishRounds++
		if len(extra) == 0 {
			break
		}

		merged := append(append([]quiz.Question{}, kept...), extra...)
		var again int
		kept, again = d.cluster(merged, nil)
		report.DuplicatesRemoved += again
		report.Clusters = len(kept)
	}

	if len(kept) > target {
		kept = kept[:target]
	}
	return kept, report, nil
}

// cluster groups near-duplicates and returns one representative per
// cluster, in cluster-creation order. With scores available the highest
// scoring member represents its cluster; otherwise the first seen.
// A score-driven representative swap can leave two clusters with
// near-duplicate representatives, so the survivors are re-clustered
// until the set stops shrinking; the output is a fixed point.
func (d *Deduplicator) cluster(questions []quiz.Question, scores []quiz.QualityScore) ([]quiz.Question, int) {
	items := make([]item, len(questions))
	for i, q := range questions {
		items[i] = item{q: q}
		if i < len(scores) && !scores[i].Skipped {
			items[i].score = scores[i].Score
			items[i].scored = true
		}
	}

	removed := 0
	for {
		kept, n := d.clusterOnce(items)
		removed += n
		if len(kept) == len(items) {
			break
		}
		items = kept
	}

	out := make([]quiz.Question, len(items))
	for i, it := range items {
		out[i] = it.q
	}
	return out, removed
}

func (d *Deduplicator) clusterOnce(items []item) (kept []item, removed int) {
	var clusters []*cluster
	for _, it := range items {
		joined := false
		for _, c := range clusters {
			if tokenSetRatio(it.q.Stem, c.seedStem) >= d.threshold {
				c.members = append(c.members, it)
				rep := c.members[c.repIdx]
				if it.scored && (!rep.scored || it.score > rep.score) {
					c.repIdx = len(c.members) - 1
				}
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &cluster{seedStem: it.q.Stem, members: []item{it}})
		}
	}

	for _, c := range clusters {
		kept = append(kept, c.members[c.repIdx])
		removed += len(c.members) - 1
	}
	return kept, removed
}
