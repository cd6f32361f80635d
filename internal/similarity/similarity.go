package similarity

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Similarity compares two titles and returns a value between 0.0 (completely
// different) and 1.0 (identical after normalization).
//
// A title that is a word-aligned suffix of the other and covers at least 60%
// of it scores 0.96 or more ("Walt's Robin Hood" vs "Robin Hood").
func Similarity(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if score := suffixContainmentScore(a, b); score > 0 {
		return score
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1.0 - float64(distance)/float64(maxLen)
}

func suffixContainmentScore(a, b string) float64 {
	longer, shorter := a, b
	if len(a) < len(b) {
		longer, shorter = b, a
	}
	if !strings.HasSuffix(longer, shorter) {
		return 0
	}
	prefixLen := len(longer) - len(shorter)
	if prefixLen > 0 && longer[prefixLen-1] != ' ' {
		return 0
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio < 0.6 {
		return 0
	}
	return 0.90 + ratio*0.10
}

// WordOverlap is the share of words of the official title found in the
// candidate title, a coarse signal that needs no edit distance.
func WordOverlap(candidate, official string) float64 {
	officialWords := strings.Fields(Normalize(official))
	if len(officialWords) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(candidate)) {
		present[w] = struct{}{}
	}
	matched := 0
	for _, w := range officialWords {
		if _, ok := present[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(officialWords))
}

// Normalize lowercases s, folds accents, spells out "&" and keeps only
// letters, digits and single spaces.
func Normalize(s string) string {
	// transformers keep state, one per call
	accentFolder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(accentFolder, s); err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
