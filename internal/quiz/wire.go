package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// wireQuestion is the canonical question shape on the wire, both for
// LLM output and for consumers.
type wireQuestion struct {
	QuestionText   string `json:"questiontext"`
	OptionA        string `json:"optiona"`
	OptionB        string `json:"optionb"`
	OptionC        string `json:"optionc"`
	OptionD        string `json:"optiond"`
	CorrectAnswer  string `json:"correctanswer"`
	Difficulty     string `json:"difficulty"`
	CognitiveLevel string `json:"cognitive_level"`
	Rationale      string `json:"rationale"`
}

// MarshalJSON emits the canonical wire keys.
func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireQuestion{
		QuestionText:   q.Stem,
		OptionA:        q.OptionA,
		OptionB:        q.OptionB,
		OptionC:        q.OptionC,
		OptionD:        q.OptionD,
		CorrectAnswer:  q.Correct,
		Difficulty:     string(q.Difficulty),
		CognitiveLevel: string(q.CognitiveLevel),
		Rationale:      q.Rationale,
	})
}

// UnmarshalJSON accepts the canonical keys plus the alternate spellings
// remote models actually produce: question/text for the stem, optionA/A
// or an options object for options, correct_answer/answer for the
// answer letter, level for the bloom level, explanation for rationale.
func (q *Question) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	q.Stem = firstString(m, "questiontext", "question", "text", "stem")
	q.OptionA = optionValue(m, "A")
	q.OptionB = optionValue(m, "B")
	q.OptionC = optionValue(m, "C")
	q.OptionD = optionValue(m, "D")
	q.Correct = answerLetter(m)
	q.Difficulty = Difficulty(strings.ToLower(firstString(m, "difficulty")))
	q.CognitiveLevel = BloomLevel(strings.ToLower(firstString(m, "cognitive_level", "cognitivelevel", "cognitiveLevel", "level", "bloomLevel", "bloom_level")))
	q.Rationale = firstString(m, "rationale", "explanation", "reason")
	return nil
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// optionValue resolves option text for a letter across the accepted
// shapes: "optiona", "optionA", "a", "A", or a nested "options" object.
func optionValue(m map[string]json.RawMessage, letter string) string {
	lower := strings.ToLower(letter)
	if s := firstString(m, "option"+lower, "option"+letter, lower, letter); s != "" {
		return s
	}
	raw, ok := m["options"]
	if !ok {
		return ""
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err == nil {
		return firstString(nested, letter, lower, "option"+lower, "option"+letter)
	}
	// Array form: ["...", "...", "...", "..."] in A..D order.
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		idx := int(letter[0] - 'A')
		if idx >= 0 && idx < len(list) {
			return strings.TrimSpace(list[idx])
		}
	}
	return ""
}

// answerLetter extracts and normalizes the correct-answer letter.
// Accepts "a".."d" in any case and 0- or 1-based numeric indexes.
func answerLetter(m map[string]json.RawMessage) string {
	for _, k := range []string{"correctanswer", "correct_answer", "correctAnswer", "answer", "correct"} {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			s = strings.ToUpper(strings.TrimSpace(s))
			if len(s) > 0 {
				// "A" or "A." or "A) ..." all start with the letter.
				if c := s[0]; c >= 'A' && c <= 'D' {
					return string(c)
				}
			}
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			switch {
			case n >= 0 && n <= 3:
				return string(rune('A' + n))
			case n == 4:
				return "D"
			}
		}
	}
	return ""
}

// wireSet mirrors the Questionset wire object.
type wireSet struct {
	Analysis  string          `json:"analysis,omitempty"`
	Questions []Question      `json:"questions"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// MarshalJSON emits {analysis, questions, metadata}.
func (s Questionset) MarshalJSON() ([]byte, error) {
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireSet{
		Analysis:  s.Analysis,
		Questions: s.Questions,
		Metadata:  meta,
	})
}

// UnmarshalJSON accepts the wire object, tolerating absent metadata.
func (s *Questionset) UnmarshalJSON(data []byte) error {
	var w wireSet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Analysis = w.Analysis
	s.Questions = w.Questions
	s.Metadata = Metadata{}
	if len(w.Metadata) > 0 {
		if err := json.Unmarshal(w.Metadata, &s.Metadata); err != nil {
			// Metadata is advisory; a malformed record does not reject
			// the questions.
			s.Metadata = Metadata{}
		}
	}
	return nil
}

// DecodeQuestionset parses recovered JSON into a Questionset, dropping
// questions that fail validation. It returns the number dropped. An
// error is returned only when the payload has no usable questions at
// all.
func DecodeQuestionset(raw []byte) (*Questionset, int, error) {
	var s Questionset
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, 0, fmt.Errorf("decode questionset: %w", err)
	}

	kept := s.Questions[:0]
	dropped := 0
	for i := range s.Questions {
		if err := s.Questions[i].Validate(); err != nil {
			dropped++
			continue
		}
		kept = append(kept, s.Questions[i])
	}
	s.Questions = kept

	if len(s.Questions) == 0 {
		return nil, dropped, fmt.Errorf("no valid questions in payload (%d dropped)", dropped)
	}
	s.Metadata.Invalid = dropped
	return &s, dropped, nil
}
