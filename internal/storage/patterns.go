package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

const patternColumns = `id, category_id, pattern_type, pattern_value, confidence_weight,
	usage_count, success_count, success_rate, user_created, active, created_at, updated_at`

func scanPattern(row interface{ Scan(...any) error }) (*model.Pattern, error) {
	var p model.Pattern
	err := row.Scan(&p.ID, &p.CategoryID, &p.Kind, &p.Value, &p.ConfidenceWeight,
		&p.UsageCount, &p.SuccessCount, &p.SuccessRate, &p.UserCreated, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: pattern", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}
	return &p, nil
}

func getPatternTx(ctx context.Context, q queryable, id int64) (*model.Pattern, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+patternColumns+" FROM patterns WHERE id = ?", id)
	return scanPattern(row)
}

// CreatePattern persists a new pattern and returns its invalidation token.
func (s *SQLiteStorage) CreatePattern(ctx context.Context, p *model.Pattern) (service.InvalidationToken, error) {
	if err := validateContext(ctx); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := model.ValidatePatternValue(p.Kind, p.Value); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := p.ValidateCounters(); err != nil {
		return service.InvalidationToken{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := categoryExistsTx(ctx, tx, p.CategoryID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO patterns (category_id, pattern_type, pattern_value, confidence_weight,
				usage_count, success_count, success_rate, user_created, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.CategoryID, p.Kind, p.Value, p.ConfidenceWeight,
			p.UsageCount, p.SuccessCount, p.SuccessRate, p.UserCreated, p.Active)
		if err != nil {
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get pattern id: %w", err)
		}
		created, err := getPatternTx(ctx, tx, id)
		if err != nil {
			return err
		}
		*p = *created
		return nil
	})
	if err != nil {
		return service.InvalidationToken{}, err
	}
	return s.nextToken("patterns"), nil
}

// UpdatePattern persists changes to an existing pattern.
func (s *SQLiteStorage) UpdatePattern(ctx context.Context, p *model.Pattern) (service.InvalidationToken, error) {
	if err := validateContext(ctx); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := validateID(p.ID, "pattern id"); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := model.ValidatePatternValue(p.Kind, p.Value); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := p.ValidateCounters(); err != nil {
		return service.InvalidationToken{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE patterns
			SET category_id = ?, pattern_type = ?, pattern_value = ?, confidence_weight = ?,
				usage_count = ?, success_count = ?, success_rate = ?, user_created = ?,
				active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			p.CategoryID, p.Kind, p.Value, p.ConfidenceWeight,
			p.UsageCount, p.SuccessCount, p.SuccessRate, p.UserCreated, p.Active, p.ID)
		if err != nil {
			return fmt.Errorf("failed to update pattern: %w", err)
		}
		return requireRowAffected(result, "pattern", p.ID)
	})
	if err != nil {
		return service.InvalidationToken{}, err
	}
	return s.nextToken("patterns"), nil
}

// DeactivatePattern switches a pattern off without deleting its history.
func (s *SQLiteStorage) DeactivatePattern(ctx context.Context, id int64) (service.InvalidationToken, error) {
	if err := validateContext(ctx); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := validateID(id, "pattern id"); err != nil {
		return service.InvalidationToken{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE patterns SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to deactivate pattern: %w", err)
		}
		return requireRowAffected(result, "pattern", id)
	})
	if err != nil {
		return service.InvalidationToken{}, err
	}
	return s.nextToken("patterns"), nil
}

// GetPattern retrieves a pattern by id.
func (s *SQLiteStorage) GetPattern(ctx context.Context, id int64) (*model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getPatternTx(ctx, s.db, id)
}

// GetActivePatterns returns every active pattern in deterministic order.
func (s *SQLiteStorage) GetActivePatterns(ctx context.Context) ([]model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+patternColumns+" FROM patterns WHERE active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query active patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

// FindPattern looks up a pattern by its identity triple.
func (s *SQLiteStorage) FindPattern(ctx context.Context, categoryID int64, kind model.PatternKind, value string) (*model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+patternColumns+" FROM patterns WHERE category_id = ? AND pattern_type = ? AND pattern_value = ?",
		categoryID, kind, value)
	return scanPattern(row)
}

// RecordPatternUsage atomically bumps the usage counters, recomputes the
// success rate, and appends the feedback event. A partial outcome is never
// observable: either all three land or none do.
func (s *SQLiteStorage) RecordPatternUsage(ctx context.Context, id int64, wasSuccessful bool, event *model.FeedbackEvent) (*model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "pattern id"); err != nil {
		return nil, err
	}

	successDelta := 0
	if wasSuccessful {
		successDelta = 1
	}

	var updated *model.Pattern
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE patterns
			SET usage_count = usage_count + 1,
				success_count = success_count + ?,
				success_rate = CAST(success_count + ? AS REAL) / (usage_count + 1),
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			successDelta, successDelta, id)
		if err != nil {
			return fmt.Errorf("failed to record pattern usage: %w", err)
		}
		if err := requireRowAffected(result, "pattern", id); err != nil {
			return err
		}
		if event != nil {
			if err := appendFeedbackTx(ctx, tx, event); err != nil {
				return err
			}
		}
		updated, err = getPatternTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// requireRowAffected converts a zero-row write into ErrNotFound.
func requireRowAffected(result sql.Result, entity string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %d", common.ErrNotFound, entity, id)
	}
	return nil
}
