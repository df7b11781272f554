package quiz

import (
	"fmt"
	"strings"
)

// Difficulty is the difficulty of a single question.
// "mixed" is only valid at the request level, never on a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the valid question-level difficulties in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// BloomLevel is a cognitive-demand category from Bloom's taxonomy.
type BloomLevel string

const (
	BloomRemember   BloomLevel = "remember"
	BloomUnderstand BloomLevel = "understand"
	BloomApply      BloomLevel = "apply"
	BloomAnalyze    BloomLevel = "analyze"
	BloomEvaluate   BloomLevel = "evaluate"
	BloomCreate     BloomLevel = "create"
)

// BloomLevels lists the valid bloom levels from lowest to highest demand.
var BloomLevels = []BloomLevel{
	BloomRemember, BloomUnderstand, BloomApply,
	BloomAnalyze, BloomEvaluate, BloomCreate,
}

// ValidDifficulty reports whether d is a legal question-level difficulty.
func ValidDifficulty(d Difficulty) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ValidBloomLevel reports whether b is a legal bloom level.
func ValidBloomLevel(b BloomLevel) bool {
	for _, l := range BloomLevels {
		if b == l {
			return true
		}
	}
	return false
}

// Question is a single validated multiple-choice question.
// Immutable after validation.
type Question struct {
	// Stem is the question prompt shown to the learner.
	Stem string

	// OptionA..OptionD are the four answer options. All must be non-empty.
	OptionA string
	OptionB string
	OptionC string
	OptionD string

	// Correct is the answer letter: "A", "B", "C" or "D".
	Correct string

	// Difficulty is the question-level difficulty (never "mixed").
	Difficulty Difficulty

	// CognitiveLevel is the bloom level this question targets.
	CognitiveLevel BloomLevel

	// Rationale explains why the correct answer is correct. May be empty.
	Rationale string
}

// Option returns the option text for a letter ("A".."D"), or "" for
// anything else.
func (q *Question) Option(letter string) string {
	switch letter {
	case "A":
		return q.OptionA
	case "B":
		return q.OptionB
	case "C":
		return q.OptionC
	case "D":
		return q.OptionD
	}
	return ""
}

// OptionList returns the four options in A..D order.
func (q *Question) OptionList() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// ValidationError describes why a question failed validation.
// Granularity is per question: one error names one defect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid question: %s: %s", e.Field, e.Reason)
}

// Validate checks the question against the structural contract:
// non-empty stem, four non-empty and pairwise-distinct options, a
// correct letter that indexes an existing option, and legal
// difficulty/bloom enum values.
func (q *Question) Validate() error {
	if q.Stem == "" {
		return &ValidationError{Field: "stem", Reason: "empty"}
	}
	for letter, opt := range map[string]string{
		"optiona": q.OptionA, "optionb": q.OptionB,
		"optionc": q.OptionC, "optiond": q.OptionD,
	} {
		if opt == "" {
			return &ValidationError{Field: letter, Reason: "empty"}
		}
	}
	opts := q.OptionList()
	for i := 0; i < len(opts); i++ {
		for j := i + 1; j < len(opts); j++ {
			// Case and surrounding whitespace don't distinguish options,
			// matching the text-hash normalization.
			if strings.EqualFold(strings.TrimSpace(opts[i]), strings.TrimSpace(opts[j])) {
				return &ValidationError{
					Field:  "options",
					Reason: fmt.Sprintf("%c and %c are duplicates", 'A'+i, 'A'+j),
				}
			}
		}
	}
	switch q.Correct {
	case "A", "B", "C", "D":
	default:
		return &ValidationError{Field: "correctanswer", Reason: fmt.Sprintf("%q is not one of A, B, C, D", q.Correct)}
	}
	if q.Option(q.Correct) == "" {
		return &ValidationError{Field: "correctanswer", Reason: "does not index an option"}
	}
	if !ValidDifficulty(q.Difficulty) {
		return &ValidationError{Field: "difficulty", Reason: fmt.Sprintf("%q is not one of easy, medium, hard", q.Difficulty)}
	}
	if !ValidBloomLevel(q.CognitiveLevel) {
		return &ValidationError{Field: "cognitive_level", Reason: fmt.Sprintf("%q is not a bloom level", q.CognitiveLevel)}
	}
	return nil
}

// Questionset is the validated output record produced by the pipeline.
type Questionset struct {
	// Analysis is the model's free-form analysis of the source text.
	Analysis string

	// Questions is the ordered question sequence. After trimming,
	// len(Questions) <= the requested count.
	Questions []Question

	// Metadata carries provenance and post-processing reports.
	Metadata Metadata
}

// Trim truncates the question list to at most n questions. Adapters may
// overproduce; callers trim before returning.
func (s *Questionset) Trim(n int) {
	if n > 0 && len(s.Questions) > n {
		s.Questions = s.Questions[:n]
	}
}
