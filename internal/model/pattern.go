package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PatternKind identifies which expense field a pattern matches and how.
type PatternKind string

// Pattern kind constants.
const (
	KindMerchant    PatternKind = "merchant"
	KindKeyword     PatternKind = "keyword"
	KindDescription PatternKind = "description"
	KindAmountRange PatternKind = "amount_range"
	KindRegex       PatternKind = "regex"
	KindTime        PatternKind = "time"
)

// PatternKinds lists every valid kind.
var PatternKinds = []PatternKind{
	KindMerchant, KindKeyword, KindDescription, KindAmountRange, KindRegex, KindTime,
}

// Confidence weight bounds for patterns and composites.
const (
	MinConfidenceWeight = 0.1
	MaxConfidenceWeight = 5.0
)

// Pattern is a single matching rule owned by a category. Its Value grammar
// depends on Kind and is validated once at construction; evaluation only
// degrades to "no match" on anything malformed.
type Pattern struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Kind             PatternKind
	Value            string
	ID               int64
	CategoryID       int64
	ConfidenceWeight float64
	SuccessRate      float64
	UsageCount       int
	SuccessCount     int
	Active           bool
	UserCreated      bool
}

// NewPattern validates and creates a pattern. The value is normalized to
// lowercase for the substring kinds so matching stays case-insensitive.
func NewPattern(categoryID int64, kind PatternKind, value string, weight float64) (*Pattern, error) {
	if categoryID <= 0 {
		return nil, NewValidationError("category_id", "category is required")
	}
	if weight < MinConfidenceWeight || weight > MaxConfidenceWeight {
		return nil, NewValidationError("confidence_weight", "must be between %.1f and %.1f", MinConfidenceWeight, MaxConfidenceWeight)
	}
	if err := ValidatePatternValue(kind, value); err != nil {
		return nil, err
	}

	switch kind {
	case KindMerchant, KindKeyword, KindDescription:
		value = strings.ToLower(strings.TrimSpace(value))
	default:
		value = strings.TrimSpace(value)
	}

	return &Pattern{
		Kind:             kind,
		Value:            value,
		CategoryID:       categoryID,
		ConfidenceWeight: weight,
		Active:           true,
	}, nil
}

// ValidatePatternValue checks a pattern value against its kind's grammar.
func ValidatePatternValue(kind PatternKind, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError("pattern_value", "cannot be blank")
	}

	switch kind {
	case KindMerchant, KindKeyword, KindDescription:
		return nil
	case KindAmountRange:
		if _, _, err := ParseAmountRange(value); err != nil {
			return NewValidationError("pattern_value", "%v", err)
		}
		return nil
	case KindRegex:
		if _, err := CompileMatchRegex(value); err != nil {
			return NewValidationError("pattern_value", "%v", err)
		}
		return nil
	case KindTime:
		if _, err := ParseTimeSpec(value); err != nil {
			return NewValidationError("pattern_value", "%v", err)
		}
		return nil
	default:
		return NewValidationError("pattern_type", "unknown pattern type %q", kind)
	}
}

// ValidateCounters rejects counter states that would break the
// success <= usage invariant.
func (p *Pattern) ValidateCounters() error {
	if p.UsageCount < 0 || p.SuccessCount < 0 {
		return NewValidationError("usage_count", "counters cannot be negative")
	}
	if p.SuccessCount > p.UsageCount {
		return NewValidationError("success_count", "success count %d exceeds usage count %d", p.SuccessCount, p.UsageCount)
	}
	return nil
}

// EligibleForDeactivation reports whether the pattern has enough evidence of
// poor performance to be switched off. User-created patterns are protected.
func (p *Pattern) EligibleForDeactivation(minUsage int, maxSuccessRate float64) bool {
	if p.UserCreated {
		return false
	}
	return p.UsageCount >= minUsage && p.SuccessRate < maxSuccessRate
}

var amountRangeRe = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)-(-?\d+(?:\.\d+)?)$`)

// ParseAmountRange parses a "min-max" value with signed decimal bounds,
// e.g. "10-50.25" or "-100--50".
func ParseAmountRange(value string) (minAmount, maxAmount decimal.Decimal, err error) {
	m := amountRangeRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid amount range %q, expected min-max", value)
	}
	minAmount, err = decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid minimum amount %q", m[1])
	}
	maxAmount, err = decimal.NewFromString(m[2])
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid maximum amount %q", m[2])
	}
	if !minAmount.LessThan(maxAmount) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("minimum %s must be less than maximum %s", minAmount, maxAmount)
	}
	return minAmount, maxAmount, nil
}

// Regex shapes that backtrack catastrophically on backtracking engines.
// Creation rejects them outright.
var catastrophicShapes = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*[+*]\)[+*]`),       // nested quantifier: (a+)+
	regexp.MustCompile(`\[[^\]]*[+*][^\]]*\][+*]`), // quantifier inside class: [a+]+
	regexp.MustCompile(`[^+*?\\][+*]{2}`),          // possessive style: a++
	regexp.MustCompile(`\([^()]*\([^()]*[+*][^()]*\)[^()]*[+*][^()]*\)[+*]`), // doubly nested groups
}

// CompileMatchRegex compiles a pattern value case-insensitively, rejecting
// known catastrophic-backtracking shapes.
func CompileMatchRegex(value string) (*regexp.Regexp, error) {
	for _, shape := range catastrophicShapes {
		if shape.MatchString(value) {
			return nil, fmt.Errorf("regex %q contains a catastrophic backtracking construct", value)
		}
	}
	re, err := regexp.Compile("(?i)" + value)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %v", value, err)
	}
	return re, nil
}
