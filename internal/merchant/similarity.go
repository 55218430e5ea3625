package merchant

import (
	"github.com/agnivade/levenshtein"
)

// Scorer computes 0.0-1.0 similarity between normalized merchant strings.
// The primary strategy is trigram overlap; strings too short to produce
// trigrams fall back to character-set overlap.
type Scorer struct{}

// NewScorer creates a similarity scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Similarity returns the overlap coefficient of the two strings' trigram
// sets, or the character-set overlap for strings shorter than a trigram.
func (s *Scorer) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) < 3 || len(rb) < 3 {
		return charOverlap(ra, rb)
	}

	ta, tb := trigrams(ra), trigrams(rb)
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}

	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	return float64(shared) / float64(smaller)
}

// EditSimilarity is the normalized Levenshtein similarity, used for
// alias-level fuzzy lookups where near-identical strings are expected.
func (s *Scorer) EditSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longer := len([]rune(a))
	if lb := len([]rune(b)); lb > longer {
		longer = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}

func trigrams(runes []rune) map[string]bool {
	grams := make(map[string]bool, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// charOverlap is the symmetric character-set overlap between two strings:
// |intersection| / max set size.
func charOverlap(ra, rb []rune) float64 {
	setA := make(map[rune]bool, len(ra))
	for _, r := range ra {
		setA[r] = true
	}
	setB := make(map[rune]bool, len(rb))
	for _, r := range rb {
		setB[r] = true
	}

	shared := 0
	for r := range setA {
		if setB[r] {
			shared++
		}
	}

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	return float64(shared) / float64(larger)
}
