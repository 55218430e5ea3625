package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
)

// SaveExpenses inserts a batch of expenses in one transaction, skipping ids
// already present. It returns the number of newly stored expenses.
func (s *SQLiteStorage) SaveExpenses(ctx context.Context, expenses []model.Expense) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(expenses) == 0 {
		return 0, nil
	}

	saved := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO expenses (id, merchant_name, description, amount, occurred_at)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare expense insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		saved = 0
		for i := range expenses {
			e := &expenses[i]
			if e.ID == "" {
				return model.NewValidationError("id", "expense id is required")
			}
			var occurredAt any
			if !e.OccurredAt.IsZero() {
				occurredAt = e.OccurredAt.UTC()
			}
			result, err := stmt.ExecContext(ctx,
				e.ID, e.MerchantName, e.Description, e.Amount.String(), occurredAt)
			if err != nil {
				return fmt.Errorf("failed to insert expense %s: %w", e.ID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check expense insert: %w", err)
			}
			saved += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// GetExpense retrieves an expense by id.
func (s *SQLiteStorage) GetExpense(ctx context.Context, id string) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "expense id"); err != nil {
		return nil, err
	}

	var e model.Expense
	var amount string
	var occurredAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, merchant_name, description, amount, occurred_at
		FROM expenses WHERE id = ?`, id).
		Scan(&e.ID, &e.MerchantName, &e.Description, &amount, &occurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}

	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for expense %s: %w", id, err)
	}
	if occurredAt.Valid {
		e.OccurredAt = occurredAt.Time
	} else {
		e.OccurredAt = time.Time{}
	}
	return &e, nil
}
