package pattern

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersmith/coinsort/internal/model"
)

func expense(merchant, description, amount string, occurred time.Time) model.Expense {
	d, _ := decimal.NewFromString(amount)
	return model.Expense{
		ID:           "test-expense",
		MerchantName: merchant,
		Description:  description,
		Amount:       d,
		OccurredAt:   occurred,
	}
}

func pat(kind model.PatternKind, value string) *model.Pattern {
	return &model.Pattern{Kind: kind, Value: value, CategoryID: 1, ConfidenceWeight: 1.0, Active: true}
}

func TestEvaluatorMatches(t *testing.T) {
	monday2pm := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	saturday2am := time.Date(2025, 6, 7, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		pattern *model.Pattern
		expense model.Expense
		want    bool
	}{
		{
			name:    "merchant substring case-insensitive",
			pattern: pat(model.KindMerchant, "starbucks"),
			expense: expense("STARBUCKS #1234", "", "5.75", monday2pm),
			want:    true,
		},
		{
			name:    "merchant no match",
			pattern: pat(model.KindMerchant, "starbucks"),
			expense: expense("Dunkin Donuts", "", "5.75", monday2pm),
			want:    false,
		},
		{
			name:    "merchant pattern without merchant field",
			pattern: pat(model.KindMerchant, "starbucks"),
			expense: expense("", "bought coffee at starbucks", "5.75", monday2pm),
			want:    false,
		},
		{
			name:    "description substring",
			pattern: pat(model.KindDescription, "monthly sub"),
			expense: expense("Netflix", "Monthly subscription renewal", "15.99", monday2pm),
			want:    true,
		},
		{
			name:    "description falls back to merchant when empty",
			pattern: pat(model.KindDescription, "netflix"),
			expense: expense("NETFLIX.COM", "", "15.99", monday2pm),
			want:    true,
		},
		{
			name:    "keyword searches merchant and description",
			pattern: pat(model.KindKeyword, "coffee"),
			expense: expense("Blue Bottle", "coffee beans", "18.00", monday2pm),
			want:    true,
		},
		{
			name:    "keyword found in merchant only",
			pattern: pat(model.KindKeyword, "uber"),
			expense: expense("UBER TRIP", "ride downtown", "23.40", monday2pm),
			want:    true,
		},
		{
			name:    "amount inside range",
			pattern: pat(model.KindAmountRange, "10-50"),
			expense: expense("Shop", "", "10", monday2pm),
			want:    true,
		},
		{
			name:    "amount at inclusive upper bound",
			pattern: pat(model.KindAmountRange, "10-50"),
			expense: expense("Shop", "", "50", monday2pm),
			want:    true,
		},
		{
			name:    "amount outside range",
			pattern: pat(model.KindAmountRange, "10-50"),
			expense: expense("Shop", "", "50.01", monday2pm),
			want:    false,
		},
		{
			name:    "malformed amount range degrades to no match",
			pattern: pat(model.KindAmountRange, "50-10"),
			expense: expense("Shop", "", "30", monday2pm),
			want:    false,
		},
		{
			name:    "regex match",
			pattern: pat(model.KindRegex, `^uber\s+(trip|eats)`),
			expense: expense("UBER TRIP 49A3", "", "23.40", monday2pm),
			want:    true,
		},
		{
			name:    "invalid regex degrades to no match",
			pattern: pat(model.KindRegex, `([unclosed`),
			expense: expense("anything", "", "1", monday2pm),
			want:    false,
		},
		{
			name:    "time bucket afternoon",
			pattern: pat(model.KindTime, "afternoon"),
			expense: expense("Shop", "", "10", monday2pm),
			want:    true,
		},
		{
			name:    "time weekend",
			pattern: pat(model.KindTime, "weekend"),
			expense: expense("Bar", "", "40", saturday2am),
			want:    true,
		},
		{
			name:    "time pattern without timestamp degrades",
			pattern: pat(model.KindTime, "morning"),
			expense: expense("Shop", "", "10", time.Time{}),
			want:    false,
		},
		{
			name: "inactive pattern never matches",
			pattern: &model.Pattern{
				Kind: model.KindMerchant, Value: "starbucks",
				CategoryID: 1, ConfidenceWeight: 1.0, Active: false,
			},
			expense: expense("Starbucks", "", "5", monday2pm),
			want:    false,
		},
	}

	ev := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Matches(tt.pattern, tt.expense))
		})
	}
}

func TestEvaluatorRegexCache(t *testing.T) {
	ev := NewEvaluator()
	p := pat(model.KindRegex, `^uber`)
	e := expense("uber trip", "", "10", time.Time{})

	assert.True(t, ev.Matches(p, e))
	assert.True(t, ev.Matches(p, e), "second evaluation hits the compiled cache")
}

func TestMatchesComposite(t *testing.T) {
	monday2pm := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	uber := pat(model.KindMerchant, "uber")
	lyft := pat(model.KindMerchant, "lyft")
	cheap := pat(model.KindAmountRange, "1-20")

	comp := func(op model.CompositeOperator, conditions *model.CompositeConditions) *model.CompositePattern {
		return &model.CompositePattern{
			Operator: op, Conditions: conditions,
			CategoryID: 1, ConfidenceWeight: 1.0, Active: true,
		}
	}

	tests := []struct {
		name       string
		composite  *model.CompositePattern
		components []*model.Pattern
		expense    model.Expense
		want       bool
	}{
		{
			name:       "AND all match",
			composite:  comp(model.OperatorAnd, nil),
			components: []*model.Pattern{uber, cheap},
			expense:    expense("Uber Trip", "", "15", monday2pm),
			want:       true,
		},
		{
			name:       "AND one fails",
			composite:  comp(model.OperatorAnd, nil),
			components: []*model.Pattern{uber, cheap},
			expense:    expense("Uber Trip", "", "45", monday2pm),
			want:       false,
		},
		{
			name:       "OR one matches",
			composite:  comp(model.OperatorOr, nil),
			components: []*model.Pattern{uber, lyft},
			expense:    expense("LYFT RIDE", "", "30", monday2pm),
			want:       true,
		},
		{
			name:       "OR none match",
			composite:  comp(model.OperatorOr, nil),
			components: []*model.Pattern{uber, lyft},
			expense:    expense("Yellow Cab", "", "30", monday2pm),
			want:       false,
		},
		{
			name:       "NOT with no matches",
			composite:  comp(model.OperatorNot, nil),
			components: []*model.Pattern{uber, lyft},
			expense:    expense("Yellow Cab", "", "30", monday2pm),
			want:       true,
		},
		{
			name:       "NOT with a match",
			composite:  comp(model.OperatorNot, nil),
			components: []*model.Pattern{uber},
			expense:    expense("Uber Trip", "", "30", monday2pm),
			want:       false,
		},
		{
			name:       "empty component set is always false",
			composite:  comp(model.OperatorNot, nil),
			components: nil,
			expense:    expense("Yellow Cab", "", "30", monday2pm),
			want:       false,
		},
		{
			name: "inactive composite never matches",
			composite: &model.CompositePattern{
				Operator: model.OperatorOr, CategoryID: 1, ConfidenceWeight: 1.0, Active: false,
			},
			components: []*model.Pattern{uber},
			expense:    expense("Uber Trip", "", "30", monday2pm),
			want:       false,
		},
	}

	ev := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.MatchesComposite(tt.composite, tt.components, tt.expense))
		})
	}
}

func TestCompositeConditionsGateBeforeComponents(t *testing.T) {
	// An OR of uber/lyft gated to daytime hours must not match a 2 AM ride
	// even though the merchant component matches.
	daytime, err := model.ParseClockRange("06:00-23:00")
	require.NoError(t, err)

	composite := &model.CompositePattern{
		Operator:         model.OperatorOr,
		Conditions:       &model.CompositeConditions{TimeRanges: []model.ClockRange{daytime}},
		CategoryID:       1,
		ConfidenceWeight: 1.0,
		Active:           true,
	}
	components := []*model.Pattern{
		pat(model.KindMerchant, "uber"),
		pat(model.KindMerchant, "lyft"),
	}

	ev := NewEvaluator()

	twoAM := time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)
	assert.False(t, ev.MatchesComposite(composite, components, expense("UBER TRIP", "", "18", twoAM)))

	noon := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	assert.True(t, ev.MatchesComposite(composite, components, expense("UBER TRIP", "", "18", noon)))
}
