package pipeline

import (
	"sort"

	"github.com/abhisek/quizforge/internal/quiz"
)

var difficultyOrder = []quiz.Difficulty{
	quiz.DifficultyEasy, quiz.DifficultyMedium, quiz.DifficultyHard,
}

var bloomOrder = []quiz.BloomLevel{
	quiz.BloomRemember, quiz.BloomUnderstand, quiz.BloomApply,
	quiz.BloomAnalyze, quiz.BloomEvaluate, quiz.BloomCreate,
}

// BuildPlan turns the requested difficulty and bloom distributions into
// per-(difficulty, bloom) cell counts summing to NumQuestions. When both
// distributions are present the cells are their proportional cross
// product; missing dimensions fall back to the scalar option (or the
// default mixed-difficulty targets).
func BuildPlan(opts quiz.Options) quiz.Plan {
	opts = opts.Normalized()
	total := opts.NumQuestions

	diffs := planDifficulties(opts, total)
	blooms := planBlooms(opts, total)

	// Cross product, apportioned so every row sums to its difficulty
	// count and the grand total is exact.
	var plan quiz.Plan
	for _, d := range diffs {
		if d.count == 0 {
			continue
		}
		weights := make([]int, len(blooms))
		for i, b := range blooms {
			weights[i] = b.count
		}
		counts := apportion(d.count, weights)
		for i, b := range blooms {
			if counts[i] == 0 {
				continue
			}
			plan = append(plan, quiz.PlanCell{Difficulty: d.label, Bloom: b.label, Count: counts[i]})
		}
	}
	return plan
}

type diffBucket struct {
	label quiz.Difficulty
	count int
}

type bloomBucket struct {
	label quiz.BloomLevel
	count int
}

func planDifficulties(opts quiz.Options, total int) []diffBucket {
	if len(opts.DifficultyDistribution) > 0 {
		out := make([]diffBucket, 0, len(difficultyOrder))
		for _, d := range difficultyOrder {
			if n := opts.DifficultyDistribution[string(d)]; n > 0 {
				out = append(out, diffBucket{label: d, count: n})
			}
		}
		return out
	}

	switch opts.Difficulty {
	case quiz.RequestEasy:
		return []diffBucket{{quiz.DifficultyEasy, total}}
	case quiz.RequestMedium:
		return []diffBucket{{quiz.DifficultyMedium, total}}
	case quiz.RequestHard:
		return []diffBucket{{quiz.DifficultyHard, total}}
	}

	// Mixed: apportion across the default balance targets.
	weights := make([]int, len(difficultyOrder))
	for i, d := range difficultyOrder {
		weights[i] = int(DefaultBalanceTargets[d] * 100)
	}
	counts := apportion(total, weights)
	out := make([]diffBucket, 0, len(difficultyOrder))
	for i, d := range difficultyOrder {
		if counts[i] > 0 {
			out = append(out, diffBucket{label: d, count: counts[i]})
		}
	}
	return out
}

func planBlooms(opts quiz.Options, total int) []bloomBucket {
	if len(opts.BloomDistribution) > 0 {
		out := make([]bloomBucket, 0, len(bloomOrder))
		for _, b := range bloomOrder {
			if n := opts.BloomDistribution[string(b)]; n > 0 {
				out = append(out, bloomBucket{label: b, count: n})
			}
		}
		return out
	}
	return []bloomBucket{{label: opts.BloomLevel, count: total}}
}

// apportion splits total across weights with the largest-remainder
// method so the parts always sum exactly to total. Ties go to the
// earlier bucket, which keeps the result deterministic.
func apportion(total int, weights []int) []int {
	out := make([]int, len(weights))
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 || total == 0 {
		return out
	}

	type frac struct {
		idx int
		rem int
	}
	var fracs []frac
	assigned := 0
	for i, w := range weights {
		out[i] = total * w / sum
		assigned += out[i]
		fracs = append(fracs, frac{idx: i, rem: total * w % sum})
	}
	sort.SliceStable(fracs, func(a, b int) bool { return fracs[a].rem > fracs[b].rem })
	for i := 0; assigned < total; i++ {
		out[fracs[i%len(fracs)].idx]++
		assigned++
	}
	return out
}
