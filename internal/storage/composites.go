package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

const compositeColumns = `id, category_id, name, operator, pattern_ids, conditions,
	confidence_weight, usage_count, success_count, success_rate, user_created, active,
	created_at, updated_at`

func scanComposite(row interface{ Scan(...any) error }) (*model.CompositePattern, error) {
	var c model.CompositePattern
	var patternIDs, conditions string
	err := row.Scan(&c.ID, &c.CategoryID, &c.Name, &c.Operator, &patternIDs, &conditions,
		&c.ConfidenceWeight, &c.UsageCount, &c.SuccessCount, &c.SuccessRate,
		&c.UserCreated, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: composite pattern", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan composite pattern: %w", err)
	}
	if err := json.Unmarshal([]byte(patternIDs), &c.PatternIDs); err != nil {
		return nil, fmt.Errorf("failed to decode pattern ids for composite %d: %w", c.ID, err)
	}
	c.Conditions, err = model.UnmarshalConditions(conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to decode conditions for composite %d: %w", c.ID, err)
	}
	return &c, nil
}

func getCompositeTx(ctx context.Context, q queryable, id int64) (*model.CompositePattern, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+compositeColumns+" FROM composite_patterns WHERE id = ?", id)
	return scanComposite(row)
}

// validateComponentsTx checks that every referenced pattern exists and shares
// the composite's category.
func validateComponentsTx(ctx context.Context, tx *sql.Tx, c *model.CompositePattern) error {
	for _, patternID := range c.PatternIDs {
		var categoryID int64
		err := tx.QueryRowContext(ctx,
			"SELECT category_id FROM patterns WHERE id = ?", patternID).Scan(&categoryID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: component pattern %d", common.ErrNotFound, patternID)
		}
		if err != nil {
			return fmt.Errorf("failed to check component pattern %d: %w", patternID, err)
		}
		if categoryID != c.CategoryID {
			return fmt.Errorf("%w: component pattern %d belongs to category %d, not %d",
				common.ErrConsistencyViolation, patternID, categoryID, c.CategoryID)
		}
	}
	return nil
}

func encodeComposite(c *model.CompositePattern) (patternIDs, conditions string, err error) {
	idData, err := json.Marshal(c.PatternIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode pattern ids: %w", err)
	}
	conditions, err = model.MarshalConditions(c.Conditions)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(idData), conditions, nil
}

// CreateComposite persists a new composite pattern.
func (s *SQLiteStorage) CreateComposite(ctx context.Context, c *model.CompositePattern) (service.InvalidationToken, error) {
	if err := validateContext(ctx); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := c.ValidateCounters(); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := c.Conditions.Validate(); err != nil {
		return service.InvalidationToken{}, err
	}
	patternIDs, conditions, err := encodeComposite(c)
	if err != nil {
		return service.InvalidationToken{}, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := categoryExistsTx(ctx, tx, c.CategoryID); err != nil {
			return err
		}
		if err := validateComponentsTx(ctx, tx, c); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO composite_patterns (category_id, name, operator, pattern_ids,
				conditions, confidence_weight, usage_count, success_count, success_rate,
				user_created, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.CategoryID, c.Name, c.Operator, patternIDs, conditions,
			c.ConfidenceWeight, c.UsageCount, c.SuccessCount, c.SuccessRate,
			c.UserCreated, c.Active)
		if err != nil {
			return fmt.Errorf("failed to insert composite pattern: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get composite id: %w", err)
		}
		created, err := getCompositeTx(ctx, tx, id)
		if err != nil {
			return err
		}
		*c = *created
		return nil
	})
	if err != nil {
		return service.InvalidationToken{}, err
	}
	return s.nextToken("composites"), nil
}

// UpdateComposite persists changes to an existing composite. Component and
// condition edits land in a single row update, so readers never observe a
// half-modified composite.
func (s *SQLiteStorage) UpdateComposite(ctx context.Context, c *model.CompositePattern) (service.InvalidationToken, error) {
	if err := validateContext(ctx); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := validateID(c.ID, "composite id"); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := c.ValidateCounters(); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := c.Conditions.Validate(); err != nil {
		return service.InvalidationToken{}, err
	}
	patternIDs, conditions, err := encodeComposite(c)
	if err != nil {
		return service.InvalidationToken{}, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := validateComponentsTx(ctx, tx, c); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE composite_patterns
			SET category_id = ?, name = ?, operator = ?, pattern_ids = ?, conditions = ?,
				confidence_weight = ?, usage_count = ?, success_count = ?, success_rate = ?,
				user_created = ?, active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			c.CategoryID, c.Name, c.Operator, patternIDs, conditions,
			c.ConfidenceWeight, c.UsageCount, c.SuccessCount, c.SuccessRate,
			c.UserCreated, c.Active, c.ID)
		if err != nil {
			return fmt.Errorf("failed to update composite pattern: %w", err)
		}
		return requireRowAffected(result, "composite pattern", c.ID)
	})
	if err != nil {
		return service.InvalidationToken{}, err
	}
	return s.nextToken("composites"), nil
}

// DeactivateComposite switches a composite off without deleting its history.
func (s *SQLiteStorage) DeactivateComposite(ctx context.Context, id int64) (service.InvalidationToken, error) {
	if err := validateContext(ctx); err != nil {
		return service.InvalidationToken{}, err
	}
	if err := validateID(id, "composite id"); err != nil {
		return service.InvalidationToken{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE composite_patterns SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to deactivate composite pattern: %w", err)
		}
		return requireRowAffected(result, "composite pattern", id)
	})
	if err != nil {
		return service.InvalidationToken{}, err
	}
	return s.nextToken("composites"), nil
}

// GetComposite retrieves a composite pattern by id.
func (s *SQLiteStorage) GetComposite(ctx context.Context, id int64) (*model.CompositePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCompositeTx(ctx, s.db, id)
}

// GetActiveComposites returns every active composite in deterministic order.
func (s *SQLiteStorage) GetActiveComposites(ctx context.Context) ([]model.CompositePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+compositeColumns+" FROM composite_patterns WHERE active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query active composites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var composites []model.CompositePattern
	for rows.Next() {
		c, err := scanComposite(rows)
		if err != nil {
			return nil, err
		}
		composites = append(composites, *c)
	}
	return composites, rows.Err()
}

// RecordCompositeUsage mirrors RecordPatternUsage for composites.
func (s *SQLiteStorage) RecordCompositeUsage(ctx context.Context, id int64, wasSuccessful bool, event *model.FeedbackEvent) (*model.CompositePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "composite id"); err != nil {
		return nil, err
	}

	successDelta := 0
	if wasSuccessful {
		successDelta = 1
	}

	var updated *model.CompositePattern
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE composite_patterns
			SET usage_count = usage_count + 1,
				success_count = success_count + ?,
				success_rate = CAST(success_count + ? AS REAL) / (usage_count + 1),
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			successDelta, successDelta, id)
		if err != nil {
			return fmt.Errorf("failed to record composite usage: %w", err)
		}
		if err := requireRowAffected(result, "composite pattern", id); err != nil {
			return err
		}
		if event != nil {
			if err := appendFeedbackTx(ctx, tx, event); err != nil {
				return err
			}
		}
		updated, err = getCompositeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
