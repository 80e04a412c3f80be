// Package similarity compares recognized page text. The controller uses it to tell
// whether a scroll actually revealed new rows.
package similarity

import (
	"strconv"
	"strings"
)

const (
	// DefaultFirstLineThreshold is the first-line similarity above which two pages start the same way.
	DefaultFirstLineThreshold = 0.95
	// DefaultOverallThreshold is the composite score above which two pages are considered equal.
	DefaultOverallThreshold = 0.9

	fingerprintEdge = 20
)

// EditDistance returns the Levenshtein distance between a and b, counted in runes.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rolling rows of the DP matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity is 1 - EditDistance/max(len). It is 1.0 when both strings are empty
// and 0.0 when exactly one is.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	switch {
	case la == 0 && lb == 0:
		return 1.0
	case la == 0 || lb == 0:
		return 0.0
	}
	return 1.0 - float64(EditDistance(a, b))/float64(max(la, lb))
}

// Jaccard is the Jaccard index of the lowercase whitespace separated word sets of a and b,
// with the same empty-input conventions as Similarity.
func Jaccard(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	switch {
	case len(sa) == 0 && len(sb) == 0:
		return 1.0
	case len(sa) == 0 || len(sb) == 0:
		return 0.0
	}

	intersection := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// CompositeScore weights character similarity against word overlap.
func CompositeScore(a, b string) float64 {
	return 0.7*Similarity(a, b) + 0.3*Jaccard(a, b)
}

// Normalize lowercases s and collapses every whitespace run to a single space.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Fingerprint is "length:first20:last20" of the normalized text, counted in runes.
// Texts that normalize identically always share a fingerprint.
func Fingerprint(text string) string {
	r := []rune(Normalize(text))
	head := r[:min(len(r), fingerprintEdge)]
	tail := r[max(0, len(r)-fingerprintEdge):]
	return strconv.Itoa(len(r)) + ":" + string(head) + ":" + string(tail)
}

// FirstLine returns the first non-blank line of text, trimmed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
