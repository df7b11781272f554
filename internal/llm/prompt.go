package llm

import (
	"fmt"
	"strings"

	"github.com/abhisek/quizforge/internal/quiz"
)

const systemPrompt = `You are an expert assessment designer creating multiple-choice questions from source material.

Rules:
- Every question must be answerable from the source text alone.
- Each question has exactly 4 options labelled A-D with exactly one correct answer.
- Distractors must be plausible and reflect common misconceptions, not random values.
- Options must be distinct; never reuse an option text.
- Target the requested difficulty and cognitive level.
- Return only JSON matching the requested shape, no prose before or after.`

const cotInstructions = `Before writing the questions, analyze the text step by step:
1. Identify the key concepts, facts and relationships.
2. Decide which concepts support questions at the requested cognitive level.
3. For each question, derive the correct answer from the text, then design three plausible distractors.
Put this analysis in the "analysis" field, then the questions.`

const responseShape = `Respond with a single JSON object of this exact shape:
{
  "analysis": "<your analysis>",
  "questions": [
    {
      "questiontext": "<stem>",
      "optiona": "...", "optionb": "...", "optionc": "...", "optiond": "...",
      "correctanswer": "A",
      "difficulty": "easy|medium|hard",
      "cognitive_level": "remember|understand|apply|analyze|evaluate|create",
      "rationale": "<why the correct answer is correct>"
    }
  ]
}`

// BuildPrompt renders the generation prompt for (text, options). When a
// distribution plan is attached it uses the plan template with explicit
// per-(difficulty, bloom) counts; otherwise the chain-of-thought
// template with a single bloom level and difficulty.
func BuildPrompt(text string, opts quiz.Options) string {
	o := opts.Normalized()
	var b strings.Builder

	if len(o.DistributionPlan) > 0 {
		fmt.Fprintf(&b, "Create exactly %d multiple-choice questions from the source text, distributed as follows:\n", o.DistributionPlan.Total())
		for _, cell := range o.DistributionPlan {
			fmt.Fprintf(&b, "- %d question(s): difficulty %q, cognitive level %q\n", cell.Count, cell.Difficulty, cell.Bloom)
		}
		b.WriteString("Honor these counts exactly.\n\n")
	} else {
		fmt.Fprintf(&b, "Create exactly %d multiple-choice questions from the source text.\n", o.NumQuestions)
		fmt.Fprintf(&b, "Cognitive level: %s\n", o.BloomLevel)
		if o.Difficulty == quiz.RequestMixed {
			b.WriteString("Difficulty: a mix of easy, medium and hard questions.\n")
		} else {
			fmt.Fprintf(&b, "Difficulty: %s (every question)\n", o.Difficulty)
		}
		b.WriteString("\n")
		b.WriteString(cotInstructions)
		b.WriteString("\n\n")
	}

	b.WriteString(responseShape)
	b.WriteString("\n\nSource text:\n")
	b.WriteString(text)
	return b.String()
}

const scoringSystemPrompt = `You are a strict reviewer of multiple-choice assessment questions. Score each question against the rubric and return only JSON.`

// BuildScoringPrompt renders the rubric prompt for the quality scorer.
// The expected response is a JSON array with one result per question,
// in input order.
func BuildScoringPrompt(sourceText string, questions []quiz.Question) string {
	var b strings.Builder

	b.WriteString(`Score each question on a 0-10 scale for: clarity, distractors (plausibility and distinctness), relevance (to the source text), correctness (the marked answer is right and unambiguous).
Overall "score" is your weighted judgment, not a mean.
"recommendation" is "accept", "revise" or "reject".

Respond with a JSON array, one object per question, in the same order:
[{"score": 0, "clarity": 0, "distractors": 0, "relevance": 0, "correctness": 0, "issues": [], "strengths": [], "recommendation": "accept"}]

`)
	b.WriteString("Source text:\n")
	b.WriteString(truncate(sourceText, 6000))
	b.WriteString("\n\nQuestions:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Stem)
		fmt.Fprintf(&b, "   A. %s\n   B. %s\n   C. %s\n   D. %s\n", q.OptionA, q.OptionB, q.OptionC, q.OptionD)
		fmt.Fprintf(&b, "   Correct: %s | difficulty: %s | level: %s\n", q.Correct, q.Difficulty, q.CognitiveLevel)
	}
	return b.String()
}

// probePrompt is the minimal request used by TestConnection.
const probePrompt = `Create exactly 1 multiple-choice question from the source text.
Cognitive level: remember
Difficulty: easy (every question)

` + responseShape + `

Source text:
Water boils at 100 degrees Celsius at sea level.`

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[...truncated...]"
}
