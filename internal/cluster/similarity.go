// Package cluster groups detected events that describe the same
// real-world happening. Cheap lexical checks run first; an LLM same-event
// check breaks ties for ambiguous pairs, with similarity-only degradation
// when the LLM is unavailable.
package cluster

import (
	"regexp"
	"strings"
)

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// NormalizeTitle lowercases, strips punctuation, and drops short words
// (≤2 chars) so that stylistic variation doesn't defeat comparison.
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = punctRe.ReplaceAllString(s, " ")
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

// titleWords returns the normalized word set of a title.
func titleWords(title string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(NormalizeTitle(title)) {
		set[w] = true
	}
	return set
}

// TitleSimilarity computes the Jaccard word overlap of two titles in [0,1].
// Two empty titles are not similar.
func TitleSimilarity(a, b string) float64 {
	wa, wb := titleWords(a), titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// tickersOverlap reports whether two mention sets share any symbol.
func tickersOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}
