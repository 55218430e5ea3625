package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CompositeOperator combines component pattern results.
type CompositeOperator string

// Composite operator constants.
const (
	OperatorAnd CompositeOperator = "AND"
	OperatorOr  CompositeOperator = "OR"
	OperatorNot CompositeOperator = "NOT"
)

var validDayNames = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// CompositeConditions are hard eligibility gates checked before the
// operator logic runs. All keys are optional.
type CompositeConditions struct {
	MinAmount         *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount         *decimal.Decimal `json:"max_amount,omitempty"`
	DaysOfWeek        []string         `json:"days_of_week,omitempty"`
	TimeRanges        []ClockRange     `json:"time_ranges,omitempty"`
	MerchantBlacklist []string         `json:"merchant_blacklist,omitempty"`
}

// Validate checks every present condition key.
func (c *CompositeConditions) Validate() error {
	if c == nil {
		return nil
	}
	if c.MinAmount != nil && !c.MinAmount.IsPositive() {
		return NewValidationError("conditions.min_amount", "must be positive")
	}
	if c.MaxAmount != nil && !c.MaxAmount.IsPositive() {
		return NewValidationError("conditions.max_amount", "must be positive")
	}
	if c.MinAmount != nil && c.MaxAmount != nil && !c.MinAmount.LessThan(*c.MaxAmount) {
		return NewValidationError("conditions.min_amount", "must be less than max_amount")
	}
	for _, day := range c.DaysOfWeek {
		if !validDayNames[strings.ToLower(day)] {
			return NewValidationError("conditions.days_of_week", "unknown day name %q", day)
		}
	}
	return nil
}

// IsEmpty reports whether no condition keys are set.
func (c *CompositeConditions) IsEmpty() bool {
	return c == nil || (c.MinAmount == nil && c.MaxAmount == nil &&
		len(c.DaysOfWeek) == 0 && len(c.TimeRanges) == 0 && len(c.MerchantBlacklist) == 0)
}

// Eligible reports whether the expense passes every condition. Any failing
// condition short-circuits to false before component patterns are consulted.
func (c *CompositeConditions) Eligible(e Expense) bool {
	if c == nil {
		return true
	}
	if c.MinAmount != nil && e.Amount.LessThan(*c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && e.Amount.GreaterThan(*c.MaxAmount) {
		return false
	}
	if len(c.DaysOfWeek) > 0 {
		if e.OccurredAt.IsZero() {
			return false
		}
		day := DayOfWeekValue(e.OccurredAt)
		found := false
		for _, d := range c.DaysOfWeek {
			if strings.ToLower(d) == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.TimeRanges) > 0 {
		if e.OccurredAt.IsZero() {
			return false
		}
		inRange := false
		for _, r := range c.TimeRanges {
			if r.Contains(e.OccurredAt) {
				inRange = true
				break
			}
		}
		if !inRange {
			return false
		}
	}
	if len(c.MerchantBlacklist) > 0 && e.MerchantName != "" {
		merchant := strings.ToLower(e.MerchantName)
		for _, blocked := range c.MerchantBlacklist {
			if strings.Contains(merchant, strings.ToLower(blocked)) {
				return false
			}
		}
	}
	return true
}

// MarshalConditions serializes conditions for storage. Nil or empty
// conditions serialize to the empty string.
func MarshalConditions(c *CompositeConditions) (string, error) {
	if c.IsEmpty() {
		return "", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalConditions deserializes conditions stored by MarshalConditions.
func UnmarshalConditions(raw string) (*CompositeConditions, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var c CompositeConditions
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CompositePattern is a boolean combination of base patterns plus optional
// eligibility conditions. All referenced patterns must share its category.
type CompositePattern struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Conditions       *CompositeConditions
	Name             string
	Operator         CompositeOperator
	PatternIDs       []int64
	ID               int64
	CategoryID       int64
	ConfidenceWeight float64
	SuccessRate      float64
	UsageCount       int
	SuccessCount     int
	Active           bool
	UserCreated      bool
}

// NewCompositePattern validates and creates a composite.
func NewCompositePattern(categoryID int64, operator CompositeOperator, patternIDs []int64, conditions *CompositeConditions, weight float64) (*CompositePattern, error) {
	if categoryID <= 0 {
		return nil, NewValidationError("category_id", "category is required")
	}
	switch operator {
	case OperatorAnd, OperatorOr, OperatorNot:
	default:
		return nil, NewValidationError("operator", "must be AND, OR, or NOT")
	}
	if len(patternIDs) == 0 {
		return nil, NewValidationError("pattern_ids", "at least one component pattern is required")
	}
	seen := make(map[int64]bool, len(patternIDs))
	for _, id := range patternIDs {
		if id <= 0 {
			return nil, NewValidationError("pattern_ids", "invalid pattern id %d", id)
		}
		if seen[id] {
			return nil, NewValidationError("pattern_ids", "duplicate pattern id %d", id)
		}
		seen[id] = true
	}
	if weight < MinConfidenceWeight || weight > MaxConfidenceWeight {
		return nil, NewValidationError("confidence_weight", "must be between %.1f and %.1f", MinConfidenceWeight, MaxConfidenceWeight)
	}
	if err := conditions.Validate(); err != nil {
		return nil, err
	}

	return &CompositePattern{
		Operator:         operator,
		PatternIDs:       patternIDs,
		Conditions:       conditions,
		CategoryID:       categoryID,
		ConfidenceWeight: weight,
		Active:           true,
	}, nil
}

// ValidateCounters rejects counter states that would break the
// success <= usage invariant.
func (c *CompositePattern) ValidateCounters() error {
	if c.UsageCount < 0 || c.SuccessCount < 0 {
		return NewValidationError("usage_count", "counters cannot be negative")
	}
	if c.SuccessCount > c.UsageCount {
		return NewValidationError("success_count", "success count %d exceeds usage count %d", c.SuccessCount, c.UsageCount)
	}
	return nil
}

// EligibleForDeactivation mirrors Pattern.EligibleForDeactivation.
func (c *CompositePattern) EligibleForDeactivation(minUsage int, maxSuccessRate float64) bool {
	if c.UserCreated {
		return false
	}
	return c.UsageCount >= minUsage && c.SuccessRate < maxSuccessRate
}
