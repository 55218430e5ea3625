package model

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackKind classifies a user's response to a category suggestion.
type FeedbackKind string

// Feedback kind constants.
const (
	FeedbackAccepted   FeedbackKind = "accepted"
	FeedbackRejected   FeedbackKind = "rejected"
	FeedbackCorrected  FeedbackKind = "corrected"
	FeedbackCorrection FeedbackKind = "correction"
)

// FeedbackEvent is an immutable record of one classification outcome. Events
// are append-only and hold weak references: deleting the expense, pattern,
// or category they mention must not corrupt the log.
type FeedbackEvent struct {
	CreatedAt       time.Time
	ConfidenceScore *float64
	PatternID       *int64
	CompositeID     *int64
	ID              string
	ExpenseID       string
	Kind            FeedbackKind
	CategoryID      int64
}

// NewFeedbackEvent creates a feedback event with a generated identity.
func NewFeedbackEvent(expenseID string, categoryID int64, kind FeedbackKind) *FeedbackEvent {
	return &FeedbackEvent{
		ID:         uuid.NewString(),
		ExpenseID:  expenseID,
		CategoryID: categoryID,
		Kind:       kind,
		CreatedAt:  time.Now(),
	}
}

// Validate checks the event shape before it is processed.
func (f *FeedbackEvent) Validate() error {
	if f.ExpenseID == "" {
		return NewValidationError("expense_id", "is required")
	}
	if f.CategoryID <= 0 {
		return NewValidationError("category_id", "is required")
	}
	switch f.Kind {
	case FeedbackAccepted, FeedbackRejected, FeedbackCorrected, FeedbackCorrection:
	default:
		return NewValidationError("feedback_type", "unknown feedback type %q", f.Kind)
	}
	if f.PatternID != nil && f.CompositeID != nil {
		return NewValidationError("pattern_id", "cannot reference both a pattern and a composite")
	}
	if f.ConfidenceScore != nil && (*f.ConfidenceScore < 0 || *f.ConfidenceScore > 1) {
		return NewValidationError("confidence_score", "must be between 0 and 1")
	}
	return nil
}

// WasSuccessful reports whether the referenced rule's suggestion was right.
func (f *FeedbackEvent) WasSuccessful() bool {
	return f.Kind == FeedbackAccepted
}
