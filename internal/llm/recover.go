package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RecoverJSON turns the almost-JSON that remote models routinely emit
// into strictly parseable JSON. The repair sequence:
//
//  1. strip fenced code markers (``` and ```json)
//  2. slice from the first { (or [) to the last matching closer
//  3. close a questions array left open at the end of the payload
//  4. fix structural defects: missing commas between adjacent objects
//     and between string boundaries on new lines, trailing commas,
//     control characters outside strings, unescaped control characters
//     inside strings
//  5. strict parse; on failure inspect the error position and insert a
//     missing comma once, then retry
//
// On second failure it returns a ParseError carrying a 200-character
// context window around the failure position.
func RecoverJSON(raw string) ([]byte, error) {
	candidate := stripFences(raw)
	candidate = sliceBody(candidate)
	if candidate == "" {
		return nil, &ParseError{Err: errors.New("no JSON object in model output")}
	}

	candidate = normalizeStrings(candidate)
	candidate = closeOpenStructure(candidate)
	candidate = repairSeparators(candidate)

	if json.Valid([]byte(candidate)) {
		return []byte(candidate), nil
	}

	// One targeted repair: a missing comma at the reported position.
	off := syntaxOffset([]byte(candidate))
	if off > 0 {
		if fixed, ok := insertCommaAt(candidate, int(off)); ok && json.Valid([]byte(fixed)) {
			return []byte(fixed), nil
		}
	}

	err := strictError([]byte(candidate))
	off = syntaxOffset([]byte(candidate))
	return nil, &ParseError{
		Offset:  off,
		Context: contextWindow(candidate, int(off), 200),
		Err:     err,
	}
}

// stripFences removes leading/trailing fenced code markers.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		// Language tag on the opening fence, e.g. ```json
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			first := strings.TrimSpace(s[:i])
			if len(first) <= 10 && !strings.ContainsAny(first, "{[") {
				s = s[i+1:]
			}
		}
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// sliceBody cuts the slice between the first opener and the last
// matching closer. Objects are preferred; a top-level array (the score
// rubric shape) is accepted when it comes first.
func sliceBody(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, closer := objStart, byte('}')
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		start, closer = arrStart, ']'
	}
	if start < 0 {
		return ""
	}

	end := strings.LastIndexByte(s, closer)
	if end <= start {
		// Truncated payload: take everything and let the
		// structure-closing pass balance it.
		return s[start:]
	}
	return s[start : end+1]
}

// normalizeStrings escapes unescaped control characters inside string
// literals and strips non-whitespace control characters outside them.
func normalizeStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inStr, esc := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if esc {
				b.WriteByte(c)
				esc = false
				continue
			}
			switch c {
			case '\\':
				esc = true
				b.WriteByte(c)
			case '"':
				inStr = false
				b.WriteByte(c)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			case '\b':
				b.WriteString(`\b`)
			case '\f':
				b.WriteString(`\f`)
			default:
				if c >= 0x20 {
					b.WriteByte(c)
				}
			}
			continue
		}
		switch {
		case c == '"':
			inStr = true
			b.WriteByte(c)
		case c < 0x20 && c != '\n' && c != '\r' && c != '\t':
			// Stray control character between tokens.
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closeOpenStructure balances brackets when the payload was cut off
// mid-array (the usual max-tokens failure shape). Everything after the
// last complete object is dropped, then the missing closers appended.
func closeOpenStructure(s string) string {
	opens, closes := 0, 0
	braces, closingBraces := 0, 0
	inStr, esc := false, false
	lastComplete := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if esc {
				esc = false
			} else if c == '\\' {
				esc = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[':
			opens++
		case ']':
			closes++
		case '{':
			braces++
		case '}':
			closingBraces++
			if braces > closingBraces {
				// Inner object completed; remember it as a safe cut
				// point.
				lastComplete = i
			}
		}
	}

	if opens <= closes && braces <= closingBraces {
		return s
	}
	if lastComplete < 0 {
		return s
	}

	// Cut after the last complete inner object, then append whatever
	// closers the retained prefix still needs.
	out := s[:lastComplete+1]
	opens, closes, braces, closingBraces = countStructure(out)
	for ; closes < opens; closes++ {
		out += "]"
	}
	for ; closingBraces < braces; closingBraces++ {
		out += "}"
	}
	return out
}

func countStructure(s string) (opens, closes, braces, closingBraces int) {
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if esc {
				esc = false
			} else if c == '\\' {
				esc = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[':
			opens++
		case ']':
			closes++
		case '{':
			braces++
		case '}':
			closingBraces++
		}
	}
	return opens, closes, braces, closingBraces
}

// repairSeparators fixes the common comma defects: a missing comma
// between }{ pairs, a missing comma between a closing quote and an
// opening quote on the next line, and trailing commas before closers.
func repairSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inStr, esc := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if esc {
				esc = false
			} else if c == '\\' {
				esc = true
			} else if c == '"' {
				inStr = false
			}
			b.WriteByte(c)
			if !inStr && c == '"' {
				if needsCommaAfterString(s, i) {
					b.WriteByte(',')
				}
			}
			continue
		}

		switch c {
		case '"':
			inStr = true
			b.WriteByte(c)
		case '}':
			b.WriteByte(c)
			if j := nextSignificant(s, i+1); j >= 0 && s[j] == '{' {
				b.WriteByte(',')
			}
		case ',':
			if j := nextSignificant(s, i+1); j >= 0 && (s[j] == '}' || s[j] == ']') {
				// Trailing comma: drop it.
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// needsCommaAfterString reports whether the string literal closing at
// index i is followed, across a newline, by another string with no
// separator. That is the "adjacent properties on new lines" defect.
func needsCommaAfterString(s string, i int) bool {
	sawNewline := false
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\r':
		case '\n':
			sawNewline = true
		case '"':
			return sawNewline
		default:
			return false
		}
	}
	return false
}

// nextSignificant returns the index of the next non-whitespace byte at
// or after i, or -1.
func nextSignificant(s string, i int) int {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return i
		}
	}
	return -1
}

// syntaxOffset parses and returns the reported error offset, or 0.
func syntaxOffset(data []byte) int64 {
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return 0
	}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset
	}
	return 0
}

func strictError(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return fmt.Errorf("invalid JSON")
}

// insertCommaAt tries the missing-comma repair at a reported syntax
// error offset: when the preceding context ends a value and the
// following context starts one, a comma goes between them.
func insertCommaAt(s string, offset int) (string, bool) {
	if offset <= 0 || offset > len(s) {
		return s, false
	}
	// The offset points just past the unexpected byte; step back to it.
	pos := offset - 1
	prev := -1
	for j := pos - 1; j >= 0; j-- {
		if s[j] != ' ' && s[j] != '\t' && s[j] != '\n' && s[j] != '\r' {
			prev = j
			break
		}
	}
	if prev < 0 {
		return s, false
	}
	endsValue := s[prev] == '"' || s[prev] == '}' || s[prev] == ']' ||
		(s[prev] >= '0' && s[prev] <= '9') || s[prev] == 'e' || s[prev] == 'l'
	startsValue := s[pos] == '"' || s[pos] == '{' || s[pos] == '['
	if !endsValue || !startsValue {
		return s, false
	}
	return s[:pos] + "," + s[pos:], true
}

// contextWindow returns up to width characters centered on pos.
func contextWindow(s string, pos, width int) string {
	if pos < 0 || pos > len(s) {
		pos = 0
	}
	start := pos - width/2
	if start < 0 {
		start = 0
	}
	end := pos + width/2
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
