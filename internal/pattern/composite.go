package pattern

import (
	"github.com/ledgersmith/coinsort/internal/model"
)

// MatchesComposite evaluates a composite pattern against an expense.
// Conditions gate first: any failing condition short-circuits to false
// without touching the component patterns. An empty component set is always
// false regardless of operator.
func (ev *Evaluator) MatchesComposite(c *model.CompositePattern, components []*model.Pattern, e model.Expense) bool {
	if c == nil || !c.Active {
		return false
	}
	if !c.Conditions.Eligible(e) {
		return false
	}
	if len(components) == 0 {
		return false
	}

	switch c.Operator {
	case model.OperatorAnd:
		for _, p := range components {
			if !ev.Matches(p, e) {
				return false
			}
		}
		return true
	case model.OperatorOr:
		for _, p := range components {
			if ev.Matches(p, e) {
				return true
			}
		}
		return false
	case model.OperatorNot:
		for _, p := range components {
			if ev.Matches(p, e) {
				return false
			}
		}
		return true
	}

	return false
}
