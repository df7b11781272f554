package quiz

// Metadata carries provenance and per-stage reports on a Questionset.
// Unknown upstream keys are dropped; these are the recognized ones.
type Metadata struct {
	Provider          string `json:"provider,omitempty"`
	Model             string `json:"model,omitempty"`
	GeneratedAt       string `json:"generatedAt,omitempty"` // RFC3339
	SourceFingerprint string `json:"sourceFingerprint,omitempty"`

	// Cached is true when the set was served from the cache.
	Cached bool `json:"cached,omitempty"`

	// Invalid counts questions the adapter dropped during validation.
	Invalid int `json:"invalidDropped,omitempty"`

	QualityScoring      *QualityReport `json:"qualityScoring,omitempty"`
	Deduplication       *DedupReport   `json:"deduplication,omitempty"`
	DifficultyBalancing *BalanceReport `json:"difficultyBalancing,omitempty"`
	DistributionPlan    Plan           `json:"distributionPlan,omitempty"`

	// Warnings records absorbed post-processing failures.
	Warnings []string `json:"warnings,omitempty"`
}

// QualityScore is a per-question rubric result from the scorer provider.
type QualityScore struct {
	Score          float64  `json:"score"` // 0..10
	Clarity        float64  `json:"clarity"`
	Distractors    float64  `json:"distractors"`
	Relevance      float64  `json:"relevance"`
	Correctness    float64  `json:"correctness"`
	Issues         []string `json:"issues,omitempty"`
	Strengths      []string `json:"strengths,omitempty"`
	Recommendation string   `json:"recommendation"` // accept | revise | reject
	Skipped        bool     `json:"skipped,omitempty"`
}

// QualityReport summarizes one quality-scoring run.
type QualityReport struct {
	Count       int     `json:"count"`
	Average     float64 `json:"average"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	Regenerated int     `json:"regenerated,omitempty"`
}

// DedupReport summarizes one deduplication run.
type DedupReport struct {
	DuplicatesRemoved int  `json:"duplicatesRemoved"`
	Clusters          int  `json:"clusters"`
	Replenished       bool `json:"replenished"`
	ReplenishRounds   int  `json:"replenishRounds,omitempty"`
}

// BalanceReport summarizes one difficulty-balancing run.
type BalanceReport struct {
	Balanced     bool                   `json:"balanced"`
	Attempts     int                    `json:"attempts"`
	Trimmed      int                    `json:"trimmed,omitempty"`
	Added        int                    `json:"added,omitempty"`
	Distribution map[Difficulty]float64 `json:"distribution,omitempty"`
}

// PlanCell is one (difficulty, bloom) bucket of a distribution plan.
type PlanCell struct {
	Difficulty Difficulty `json:"difficulty"`
	Bloom      BloomLevel `json:"bloom"`
	Count      int        `json:"count"`
}

// Plan is an explicit mapping from (difficulty, bloom) to required counts,
// summing to the requested question count.
type Plan []PlanCell

// Total returns the sum of all cell counts.
func (p Plan) Total() int {
	n := 0
	for _, c := range p {
		n += c.Count
	}
	return n
}
