package model

import (
	"github.com/shopspring/decimal"
)

// PreferenceContext identifies the kind of co-occurrence a preference counts.
type PreferenceContext string

// Preference context constants.
const (
	ContextMerchant    PreferenceContext = "merchant"
	ContextTimeOfDay   PreferenceContext = "time_of_day"
	ContextDayOfWeek   PreferenceContext = "day_of_week"
	ContextAmountRange PreferenceContext = "amount_range"
)

// CategoryPreference is a contextual co-occurrence counter used as a
// secondary classification signal, never a primary rule.
type CategoryPreference struct {
	ContextType      PreferenceContext
	ContextValue     string
	ID               int64
	CategoryID       int64
	PreferenceWeight int
	UsageCount       int
}

// RecordUsage increments the counter, bumping the weight each time usage
// crosses a multiple of the threshold.
func (p *CategoryPreference) RecordUsage(weightThreshold int) {
	p.UsageCount++
	if weightThreshold > 0 && p.UsageCount%weightThreshold == 0 {
		p.PreferenceWeight++
	}
}

// Amount bucket boundaries for the amount_range preference context.
var amountBuckets = []struct {
	ceiling decimal.Decimal
	name    string
}{
	{decimal.NewFromInt(10), "under_10"},
	{decimal.NewFromInt(50), "10_to_50"},
	{decimal.NewFromInt(100), "50_to_100"},
	{decimal.NewFromInt(500), "100_to_500"},
}

// AmountBucket maps an expense amount onto a coarse named range.
func AmountBucket(amount decimal.Decimal) string {
	for _, b := range amountBuckets {
		if amount.LessThan(b.ceiling) {
			return b.name
		}
	}
	return "over_500"
}
