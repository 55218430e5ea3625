package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/model"
)

// appendFeedbackTx inserts an immutable feedback event inside an existing
// transaction. Events are append-only; there is no update or delete path.
func appendFeedbackTx(ctx context.Context, q queryable, event *model.FeedbackEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO feedback_events (id, expense_id, category_id, pattern_id, composite_id, kind, confidence_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ExpenseID, event.CategoryID, event.PatternID, event.CompositeID, event.Kind,
		event.ConfidenceScore)
	if err != nil {
		return fmt.Errorf("failed to append feedback event: %w", err)
	}
	return nil
}

// AppendFeedback records an event that references no rule.
func (s *SQLiteStorage) AppendFeedback(ctx context.Context, event *model.FeedbackEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return classifyErr(appendFeedbackTx(ctx, s.db, event))
}

// ListFeedbackForExpense returns an expense's feedback history, newest first.
func (s *SQLiteStorage) ListFeedbackForExpense(ctx context.Context, expenseID string) ([]model.FeedbackEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(expenseID, "expenseID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, expense_id, category_id, pattern_id, composite_id, kind, confidence_score, created_at
		FROM feedback_events
		WHERE expense_id = ?
		ORDER BY created_at DESC, id DESC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.FeedbackEvent
	for rows.Next() {
		var e model.FeedbackEvent
		var score sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.ExpenseID, &e.CategoryID, &e.PatternID,
			&e.CompositeID, &e.Kind, &score, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback event: %w", err)
		}
		if score.Valid {
			e.ConfidenceScore = &score.Float64
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
