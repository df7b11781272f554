package quiz

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// HashText returns the SHA-256 hex digest of the trimmed, lowercased
// text. Whitespace-only and letter-case-only edits collide on purpose.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

// HashOptions returns the SHA-256 hex digest of the canonical
// serialization of the normalized options. Only recognized keys
// participate; unknown keys and inline images never change the hash.
// The provider override is included, so the same text generated on two
// providers occupies two cache rows.
func HashOptions(o Options) string {
	n := o.Normalized()

	// encoding/json writes map keys in sorted order, which makes this
	// serialization canonical.
	canonical := map[string]any{
		"numQuestions":      n.NumQuestions,
		"bloomLevel":        n.BloomLevel,
		"difficulty":        n.Difficulty,
		"parallel":          n.Parallel,
		"noCache":           n.NoCache,
		"qualityCheck":      n.QualityCheck,
		"deduplicate":       n.Deduplicate,
		"balanceDifficulty": n.BalanceDifficulty,
		"provider":          n.Provider,
	}
	if len(n.DifficultyDistribution) > 0 {
		canonical["difficultyDistribution"] = n.DifficultyDistribution
	}
	if len(n.BloomDistribution) > 0 {
		canonical["bloomDistribution"] = n.BloomDistribution
	}

	raw, err := json.Marshal(canonical)
	if err != nil {
		// Marshalling a map of scalars cannot fail; keep the signature
		// deterministic anyway.
		raw = []byte("{}")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Fingerprint is the deterministic content-addressed cache key for a
// (text, options) pair: hashText "-" hashOptions.
func Fingerprint(text string, o Options) string {
	return HashText(text) + "-" + HashOptions(o)
}
