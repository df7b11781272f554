package pipeline

import (
	"context"

	"github.com/abhisek/quizforge/internal/quiz"
)

// Balancer defaults.
const (
	DefaultBalanceTolerance = 0.10

	// DefaultBalanceAttempts bounds regeneration rounds while converging
	// on the target distribution.
	DefaultBalanceAttempts = 2
)

// DefaultBalanceTargets is the mixed-difficulty target distribution.
var DefaultBalanceTargets = map[quiz.Difficulty]float64{
	quiz.DifficultyEasy:   0.30,
	quiz.DifficultyMedium: 0.40,
	quiz.DifficultyHard:   0.30,
}

// BalanceRegenFunc generates count questions pinned to one difficulty.
type BalanceRegenFunc func(ctx context.Context, count int, difficulty quiz.Difficulty) ([]quiz.Question, error)

// Balancer converges a questionset onto a target difficulty
// distribution by trimming surplus buckets and regenerating deficits.
type Balancer struct {
	targets     map[quiz.Difficulty]float64
	tolerance   float64
	maxAttempts int
}

// NewBalancer builds a balancer. Nil targets and non-positive tolerance
// or attempts fall back to the defaults.
func NewBalancer(targets map[quiz.Difficulty]float64, tolerance float64, maxAttempts int) *Balancer {
	if targets == nil {
		targets = DefaultBalanceTargets
	}
	if tolerance <= 0 {
		tolerance = DefaultBalanceTolerance
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultBalanceAttempts
	}
	return &Balancer{targets: targets, tolerance: tolerance, maxAttempts: maxAttempts}
}

// Run balances questions toward the target distribution for a set of
// size target. An already balanced set is returned unchanged. On
// attempt exhaustion the best-effort set is returned with
// balanced=false; regeneration failures end the run the same way.
func (b *Balancer) Run(ctx context.Context, questions []quiz.Question, target int, regen BalanceRegenFunc) ([]quiz.Question, quiz.BalanceReport) {
	report := quiz.BalanceReport{}

	for attempt := 0; ; attempt++ {
		dist := distribution(questions)
		report.Distribution = dist
		if maxDeviation(dist, b.targets) <= b.tolerance {
			report.Balanced = true
			return questions, report
		}
		if attempt >= b.maxAttempts {
			return questions, report
		}
		report.Attempts++

		desired := b.desiredCounts(target)
		trimmed, cut := trimSurplus(questions, desired)
		report.Trimmed += cut
		questions = trimmed

		deficits := bucketDeficits(questions, desired)
		if len(deficits) == 0 || regen == nil {
			continue
		}
		for _, d := range difficultyOrder {
			need := deficits[d]
			if need == 0 {
				continue
			}
			extra, err := regen(ctx, need, d)
			if err != nil {
				return questions, report
			}
			for _, q := range extra {
				// Providers sometimes ignore the pinned difficulty;
				// stamp it so the bucket math stays honest.
				q.Difficulty = d
				questions = append(questions, q)
				report.Added++
			}
		}
	}
}

// desiredCounts apportions target across the difficulty targets.
func (b *Balancer) desiredCounts(target int) map[quiz.Difficulty]int {
	weights := make([]int, len(difficultyOrder))
	for i, d := range difficultyOrder {
		weights[i] = int(b.targets[d] * 1000)
	}
	counts := apportion(target, weights)
	out := make(map[quiz.Difficulty]int, len(difficultyOrder))
	for i, d := range difficultyOrder {
		out[d] = counts[i]
	}
	return out
}

// trimSurplus keeps at most desired[bucket] questions per bucket, in
// arrival order.
func trimSurplus(questions []quiz.Question, desired map[quiz.Difficulty]int) ([]quiz.Question, int) {
	seen := make(map[quiz.Difficulty]int)
	out := questions[:0:0]
	cut := 0
	for _, q := range questions {
		if seen[q.Difficulty] >= desired[q.Difficulty] {
			cut++
			continue
		}
		seen[q.Difficulty]++
		out = append(out, q)
	}
	return out, cut
}

func bucketDeficits(questions []quiz.Question, desired map[quiz.Difficulty]int) map[quiz.Difficulty]int {
	have := make(map[quiz.Difficulty]int)
	for _, q := range questions {
		have[q.Difficulty]++
	}
	out := make(map[quiz.Difficulty]int)
	for _, d := range difficultyOrder {
		if n := desired[d] - have[d]; n > 0 {
			out[d] = n
		}
	}
	return out
}

// distribution returns each bucket's share of the set.
func distribution(questions []quiz.Question) map[quiz.Difficulty]float64 {
	out := make(map[quiz.Difficulty]float64, len(difficultyOrder))
	if len(questions) == 0 {
		return out
	}
	counts := make(map[quiz.Difficulty]int)
	for _, q := range questions {
		counts[q.Difficulty]++
	}
	for _, d := range difficultyOrder {
		out[d] = float64(counts[d]) / float64(len(questions))
	}
	return out
}

func maxDeviation(dist, targets map[quiz.Difficulty]float64) float64 {
	var worst float64
	for _, d := range difficultyOrder {
		dev := dist[d] - targets[d]
		if dev < 0 {
			dev = -dev
		}
		if dev > worst {
			worst = dev
		}
	}
	return worst
}
