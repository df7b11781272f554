package quiz

import (
	"encoding/json"
	"fmt"
)

// RequestedDifficulty is the difficulty mix asked for at the request level.
// Unlike Difficulty it admits "mixed".
type RequestedDifficulty string

const (
	RequestEasy   RequestedDifficulty = "easy"
	RequestMedium RequestedDifficulty = "medium"
	RequestHard   RequestedDifficulty = "hard"
	RequestMixed  RequestedDifficulty = "mixed"
)

// Image is an inline source image forwarded to multimodal adapters.
type Image struct {
	MediaType string `json:"mediaType"` // e.g. "image/png"
	Data      []byte `json:"data"`      // raw bytes; base64 on the wire
}

// Options controls a single generation request.
// Zero values are NOT the defaults; construct with DefaultOptions or
// decode from JSON (which starts from the defaults).
type Options struct {
	// NumQuestions is the target count, clamped to 1..50. Default 10.
	NumQuestions int `json:"numQuestions"`

	// BloomLevel is the cognitive target when no distribution plan is
	// present. Default "apply".
	BloomLevel BloomLevel `json:"bloomLevel"`

	// Difficulty is the requested mix. Default "mixed".
	Difficulty RequestedDifficulty `json:"difficulty"`

	// DifficultyDistribution and BloomDistribution are advanced plans:
	// label -> count, each summing to NumQuestions. When either is
	// present the orchestrator builds a distribution plan.
	DifficultyDistribution map[string]int `json:"difficultyDistribution,omitempty"`
	BloomDistribution      map[string]int `json:"bloomDistribution,omitempty"`

	// Parallel permits fan-out. Default true.
	Parallel bool `json:"parallel"`

	// NoCache skips both the cache read and the cache write.
	NoCache bool `json:"noCache"`

	// Stage toggles. All default true.
	QualityCheck      bool `json:"qualityCheck"`
	Deduplicate       bool `json:"deduplicate"`
	BalanceDifficulty bool `json:"balanceDifficulty"`

	// Provider overrides the router's current provider for this request.
	Provider string `json:"provider,omitempty"`

	// Images are inline images for multimodal-capable adapters.
	// Not part of the fingerprint.
	Images []Image `json:"images,omitempty"`

	// DistributionPlan is attached by the orchestrator when a
	// distribution is requested; adapters render it into the prompt.
	// Never set by callers.
	DistributionPlan Plan `json:"-"`
}

// Limits on the target count.
const (
	MinQuestions     = 1
	MaxQuestions     = 50
	DefaultQuestions = 10
)

// DefaultOptions returns the documented option defaults.
func DefaultOptions() Options {
	return Options{
		NumQuestions:      DefaultQuestions,
		BloomLevel:        BloomApply,
		Difficulty:        RequestMixed,
		Parallel:          true,
		QualityCheck:      true,
		Deduplicate:       true,
		BalanceDifficulty: true,
	}
}

// Normalized returns a copy with defaults materialized and the target
// count clamped into range. Hashing and prompt building always operate
// on the normalized form.
func (o Options) Normalized() Options {
	n := o
	if n.NumQuestions == 0 {
		n.NumQuestions = DefaultQuestions
	}
	if n.NumQuestions < MinQuestions {
		n.NumQuestions = MinQuestions
	}
	if n.NumQuestions > MaxQuestions {
		n.NumQuestions = MaxQuestions
	}
	if n.BloomLevel == "" {
		n.BloomLevel = BloomApply
	}
	if n.Difficulty == "" {
		n.Difficulty = RequestMixed
	}
	return n
}

// Validate rejects option combinations the pipeline cannot honor.
func (o Options) Validate() error {
	n := o.Normalized()
	switch n.Difficulty {
	case RequestEasy, RequestMedium, RequestHard, RequestMixed:
	default:
		return fmt.Errorf("difficulty %q is not one of easy, medium, hard, mixed", n.Difficulty)
	}
	if !ValidBloomLevel(n.BloomLevel) {
		return fmt.Errorf("bloomLevel %q is not a bloom level", n.BloomLevel)
	}
	if err := validateDistribution("difficultyDistribution", n.DifficultyDistribution, n.NumQuestions, difficultyLabels); err != nil {
		return err
	}
	if err := validateDistribution("bloomDistribution", n.BloomDistribution, n.NumQuestions, bloomLabels); err != nil {
		return err
	}
	return nil
}

var difficultyLabels = map[string]bool{"easy": true, "medium": true, "hard": true}

var bloomLabels = map[string]bool{
	"remember": true, "understand": true, "apply": true,
	"analyze": true, "evaluate": true, "create": true,
}

func validateDistribution(name string, dist map[string]int, total int, legal map[string]bool) error {
	if len(dist) == 0 {
		return nil
	}
	sum := 0
	for label, count := range dist {
		if !legal[label] {
			return fmt.Errorf("%s: unknown label %q", name, label)
		}
		if count < 0 {
			return fmt.Errorf("%s: negative count for %q", name, label)
		}
		sum += count
	}
	if sum != total {
		return fmt.Errorf("%s sums to %d, want numQuestions=%d", name, sum, total)
	}
	return nil
}

// UnmarshalJSON decodes options starting from the defaults, so omitted
// boolean keys keep their documented default of true.
func (o *Options) UnmarshalJSON(data []byte) error {
	type plain Options
	p := plain(DefaultOptions())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Options(p)
	return nil
}
