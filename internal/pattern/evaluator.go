// Package pattern evaluates matching rules against expenses and scores the
// results. Evaluation is pure and safe for concurrent use; counters are
// updated elsewhere.
package pattern

import (
	"regexp"
	"strings"
	"sync"

	"github.com/ledgersmith/coinsort/internal/model"
)

// Evaluator evaluates base patterns against expenses. Compiled regexes are
// cached by pattern value so repeated evaluation stays cheap.
type Evaluator struct {
	compiled map[string]*regexp.Regexp
	mu       sync.RWMutex
}

// NewEvaluator creates an evaluator with an empty regex cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{compiled: make(map[string]*regexp.Regexp)}
}

// Matches reports whether the expense satisfies the pattern. Malformed
// values or missing expense fields degrade to no match, never an error.
func (ev *Evaluator) Matches(p *model.Pattern, e model.Expense) bool {
	if p == nil || !p.Active {
		return false
	}

	switch p.Kind {
	case model.KindMerchant:
		return containsFold(e.MerchantName, p.Value)
	case model.KindDescription:
		field := e.Description
		if strings.TrimSpace(field) == "" {
			field = e.MerchantName
		}
		return containsFold(field, p.Value)
	case model.KindKeyword:
		return containsFold(searchText(e), p.Value)
	case model.KindRegex:
		re := ev.regex(p.Value)
		if re == nil {
			return false
		}
		text := searchText(e)
		if strings.TrimSpace(text) == "" {
			return false
		}
		return re.MatchString(text)
	case model.KindAmountRange:
		minAmount, maxAmount, err := model.ParseAmountRange(p.Value)
		if err != nil {
			return false
		}
		return e.Amount.GreaterThanOrEqual(minAmount) && e.Amount.LessThanOrEqual(maxAmount)
	case model.KindTime:
		if e.OccurredAt.IsZero() {
			return false
		}
		spec, err := model.ParseTimeSpec(p.Value)
		if err != nil {
			return false
		}
		return spec.Contains(e.OccurredAt)
	}

	return false
}

// searchText is the combined haystack for keyword and regex patterns.
func searchText(e model.Expense) string {
	switch {
	case e.MerchantName != "" && e.Description != "":
		return e.MerchantName + " " + e.Description
	case e.MerchantName != "":
		return e.MerchantName
	default:
		return e.Description
	}
}

func containsFold(haystack, needle string) bool {
	if strings.TrimSpace(haystack) == "" || needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// regex returns the compiled form of a regex pattern value, or nil if the
// value no longer compiles.
func (ev *Evaluator) regex(value string) *regexp.Regexp {
	ev.mu.RLock()
	re, ok := ev.compiled[value]
	ev.mu.RUnlock()
	if ok {
		return re
	}

	re, err := model.CompileMatchRegex(value)
	if err != nil {
		return nil
	}

	ev.mu.Lock()
	ev.compiled[value] = re
	ev.mu.Unlock()
	return re
}
