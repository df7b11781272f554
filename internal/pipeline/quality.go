package pipeline

import (
	"context"

	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/quiz"
)

// Quality decision thresholds on the 0..10 rubric scale.
const (
	qualityAcceptScore = 7.0
	qualityReviseScore = 5.0

	// DefaultQualityAttempts bounds regeneration rounds for rejected
	// questions.
	DefaultQualityAttempts = 2
)

// RegenerateFunc produces count replacement questions for rejected ones.
type RegenerateFunc func(ctx context.Context, count int) ([]quiz.Question, error)

// QualityChecker scores questions against the source text and swaps out
// rejected ones via regeneration. Scoring failures are never fatal: an
// unscorable question is accepted with skipped=true.
type QualityChecker struct {
	scorer      llm.Scorer
	maxAttempts int
}

// NewQualityChecker builds a checker over the scorer. Non-positive
// maxAttempts falls back to the default.
func NewQualityChecker(scorer llm.Scorer, maxAttempts int) *QualityChecker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultQualityAttempts
	}
	return &QualityChecker{scorer: scorer, maxAttempts: maxAttempts}
}

// QualityResult is the outcome of one Check run: the surviving
// questions, their scores in matching order, and the run report.
type QualityResult struct {
	Questions []quiz.Question
	Scores    []quiz.QualityScore
	Report    quiz.QualityReport
}

// Check scores every question, keeps accepted and needs-revision ones in
// their original order, and regenerates rejects while attempts remain.
// Regenerated questions are scored on the same rule and appended.
func (qc *QualityChecker) Check(ctx context.Context, sourceText string, questions []quiz.Question, regen RegenerateFunc) QualityResult {
	res := QualityResult{}
	qc.check(ctx, sourceText, questions, regen, qc.maxAttempts, &res)
	finishReport(&res.Report, res.Scores)
	return res
}

func (qc *QualityChecker) check(ctx context.Context, sourceText string, questions []quiz.Question, regen RegenerateFunc, attemptsLeft int, res *QualityResult) {
	if len(questions) == 0 {
		return
	}

	scores, err := qc.scorer.ScoreQuestions(ctx, sourceText, questions)
	if err != nil || len(scores) != len(questions) {
		// Scorer failure: accept the whole batch unscored.
		for range questions {
			res.Scores = append(res.Scores, quiz.QualityScore{Skipped: true, Recommendation: "accept"})
		}
		res.Questions = append(res.Questions, questions...)
		return
	}

	rejected := 0
	for i, q := range questions {
		switch decide(scores[i]) {
		case verdictReject:
			rejected++
		default:
			res.Questions = append(res.Questions, q)
			res.Scores = append(res.Scores, scores[i])
		}
	}
	res.Report.Failed += rejected

	if rejected == 0 {
		return
	}
	if regen == nil || attemptsLeft <= 0 {
		return
	}

	replacements, err := regen(ctx, rejected)
	if err != nil || len(replacements) == 0 {
		return
	}
	res.Report.Regenerated += len(replacements)
	qc.check(ctx, sourceText, replacements, regen, attemptsLeft-1, res)
}

type verdict int

const (
	verdictAccept verdict = iota
	verdictRevise
	verdictReject
)

// decide applies the rubric decision rule. A passing score or an
// explicit accept wins; revise-range questions are kept.
func decide(s quiz.QualityScore) verdict {
	if s.Score >= qualityAcceptScore || s.Recommendation == "accept" {
		return verdictAccept
	}
	if s.Score >= qualityReviseScore || s.Recommendation == "revise" {
		return verdictRevise
	}
	return verdictReject
}

func finishReport(r *quiz.QualityReport, scores []quiz.QualityScore) {
	// Count covers every question scored in the run, including rejects
	// whose scores were discarded with them.
	r.Count = len(scores) + r.Failed
	if len(scores) == 0 {
		return
	}

	var sum float64
	scored := 0
	for _, s := range scores {
		if s.Skipped {
			r.Skipped++
			continue
		}
		if scored == 0 || s.Score < r.Min {
			r.Min = s.Score
		}
		if s.Score > r.Max {
			r.Max = s.Score
		}
		sum += s.Score
		scored++
		r.Passed++
	}
	if scored > 0 {
		r.Average = sum / float64(scored)
	}
}
