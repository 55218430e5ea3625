package model

import "sort"

// RuleKind distinguishes which rule type produced a suggestion.
type RuleKind string

// Rule kind constants.
const (
	RulePattern   RuleKind = "pattern"
	RuleComposite RuleKind = "composite"
)

// Suggestion is one ranked categorization candidate for an expense.
type Suggestion struct {
	Reason     string
	RuleKind   RuleKind
	CategoryID int64
	RuleID     int64
	Confidence float64
	UsageCount int
}

// Suggestions supports deterministic ranking of candidates.
type Suggestions []Suggestion

// Len implements sort.Interface.
func (s Suggestions) Len() int { return len(s) }

// Less implements sort.Interface: confidence descending, then usage count
// descending, then rule identity ascending.
func (s Suggestions) Less(i, j int) bool {
	if s[i].Confidence != s[j].Confidence {
		return s[i].Confidence > s[j].Confidence
	}
	if s[i].UsageCount != s[j].UsageCount {
		return s[i].UsageCount > s[j].UsageCount
	}
	if s[i].RuleKind != s[j].RuleKind {
		return s[i].RuleKind < s[j].RuleKind
	}
	return s[i].RuleID < s[j].RuleID
}

// Swap implements sort.Interface.
func (s Suggestions) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// Sort orders suggestions best-first.
func (s Suggestions) Sort() { sort.Sort(s) }

// Top returns the best suggestion, or nil if there are none.
func (s Suggestions) Top() *Suggestion {
	if len(s) == 0 {
		return nil
	}
	s.Sort()
	return &s[0]
}

// TopN returns the n best suggestions.
func (s Suggestions) TopN(n int) Suggestions {
	if n <= 0 {
		return Suggestions{}
	}
	s.Sort()
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
