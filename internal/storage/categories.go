package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
)

func categoryExistsTx(ctx context.Context, q queryable, id int64) error {
	var active bool
	err := q.QueryRowContext(ctx, "SELECT active FROM categories WHERE id = ?", id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: category %d", common.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check category %d: %w", id, err)
	}
	if !active {
		return fmt.Errorf("%w: category %d is inactive", common.ErrConsistencyViolation, id)
	}
	return nil
}

// CreateCategory creates a new category.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, model.NewValidationError("name", "cannot be blank")
	}

	var category *model.Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO categories (name) VALUES (?)", name)
		if err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get category id: %w", err)
		}
		category, err = getCategoryTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func getCategoryTx(ctx context.Context, q queryable, id int64) (*model.Category, error) {
	var c model.Category
	err := q.QueryRowContext(ctx,
		"SELECT id, name, active, created_at FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	return &c, nil
}

// GetCategory retrieves a category by id.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategoryTx(ctx, s.db, id)
}

// ListCategories returns every category ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, active, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a category along with the patterns and composites it
// owns. Feedback events keep their weak references and are left untouched.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "category id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM composite_patterns WHERE category_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete category composites: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM patterns WHERE category_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete category patterns: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM category_preferences WHERE category_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete category preferences: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return requireRowAffected(result, "category", id)
	})
}
