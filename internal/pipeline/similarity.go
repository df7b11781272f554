package pipeline

import (
	"sort"
	"strings"
	"unicode"
)

// tokenSetRatio scores the similarity of two stems on a 0..100 scale.
// It is a token-set ratio: stems are lowercased, stripped of
// punctuation and split into word sets, then the sorted intersection
// and differences are compared pairwise with an edit-distance ratio and
// the best score wins. Word order and repeated words do not matter;
// whitespace-only differences score 100.
func tokenSetRatio(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		if len(ta) == len(tb) {
			return 100
		}
		return 0
	}

	var inter, onlyA, onlyB []string
	for tok := range ta {
		if tb[tok] {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	sa := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	sb := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := editRatio(base, sa)
	if r := editRatio(base, sb); r > best {
		best = r
	}
	if r := editRatio(sa, sb); r > best {
		best = r
	}
	return best
}

func tokenSet(s string) map[string]bool {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	out := make(map[string]bool)
	for _, tok := range strings.Fields(sb.String()) {
		out[tok] = true
	}
	return out
}

// editRatio is 100 minus the normalized Levenshtein distance.
func editRatio(a, b string) int {
	if a == b {
		return 100
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 100
	}
	return 100 - (100*levenshtein(ra, rb))/longest
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
