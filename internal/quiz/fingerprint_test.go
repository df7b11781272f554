package quiz

import (
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	opts := DefaultOptions()
	a := Fingerprint("Photosynthesis converts light energy.", opts)
	b := Fingerprint("Photosynthesis converts light energy.", opts)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if !strings.Contains(a, "-") {
		t.Fatalf("fingerprint missing separator: %s", a)
	}
}

func TestFingerprintTextNormalization(t *testing.T) {
	opts := DefaultOptions()
	base := Fingerprint("Photosynthesis", opts)

	tests := []struct {
		name string
		text string
		same bool
	}{
		{"identical", "Photosynthesis", true},
		{"surrounding whitespace", "  Photosynthesis\n", true},
		{"case change", "PHOTOSYNTHESIS", true},
		{"different text", "Respiration", false},
		{"interior whitespace", "Photo synthesis", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.text, opts)
			if (got == base) != tt.same {
				t.Errorf("Fingerprint(%q) same=%v, want %v", tt.text, got == base, tt.same)
			}
		})
	}
}

func TestHashOptionsRecognizedKeys(t *testing.T) {
	base := HashOptions(DefaultOptions())

	changed := DefaultOptions()
	changed.NumQuestions = 5
	if HashOptions(changed) == base {
		t.Error("numQuestions change did not change the hash")
	}

	provider := DefaultOptions()
	provider.Provider = "anthropic"
	if HashOptions(provider) == base {
		t.Error("provider change did not change the hash")
	}

	bloom := DefaultOptions()
	bloom.BloomLevel = BloomAnalyze
	if HashOptions(bloom) == base {
		t.Error("bloomLevel change did not change the hash")
	}
}

func TestHashOptionsIgnoresUnrecognized(t *testing.T) {
	base := HashOptions(DefaultOptions())

	// Images and the internal distribution plan are not recognized keys.
	withImages := DefaultOptions()
	withImages.Images = []Image{{MediaType: "image/png", Data: []byte{1, 2, 3}}}
	if HashOptions(withImages) != base {
		t.Error("images changed the hash")
	}

	withPlan := DefaultOptions()
	withPlan.DistributionPlan = Plan{{Difficulty: DifficultyEasy, Bloom: BloomApply, Count: 10}}
	if HashOptions(withPlan) != base {
		t.Error("internal plan changed the hash")
	}
}

func TestHashOptionsDefaultsMaterialized(t *testing.T) {
	// A zero-count options record hashes the same as the explicit default.
	implicit := DefaultOptions()
	implicit.NumQuestions = 0
	if HashOptions(implicit) != HashOptions(DefaultOptions()) {
		t.Error("unset numQuestions does not hash like the default")
	}
}
