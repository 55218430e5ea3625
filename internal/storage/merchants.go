package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
)

const aliasColumns = `id, canonical_merchant_id, raw_name, normalized_name,
	match_confidence, match_count, created_at, updated_at`

func scanAlias(row interface{ Scan(...any) error }) (*model.MerchantAlias, error) {
	var a model.MerchantAlias
	err := row.Scan(&a.ID, &a.CanonicalMerchantID, &a.RawName, &a.NormalizedName,
		&a.Confidence, &a.MatchCount, &a.CreatedAt, &a.LastSeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: merchant alias", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan merchant alias: %w", err)
	}
	return &a, nil
}

// GetAliasByRawName looks up the alias for an exact raw merchant string.
func (s *SQLiteStorage) GetAliasByRawName(ctx context.Context, rawName string) (*model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(rawName, "rawName"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+aliasColumns+" FROM merchant_aliases WHERE raw_name = ?", rawName)
	return scanAlias(row)
}

// GetAliasByNormalizedName looks up any alias sharing a normalized form. When
// several raw names normalize identically, the most seen alias wins.
func (s *SQLiteStorage) GetAliasByNormalizedName(ctx context.Context, normalizedName string) (*model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+aliasColumns+` FROM merchant_aliases
		WHERE normalized_name = ?
		ORDER BY match_count DESC, id LIMIT 1`, normalizedName)
	return scanAlias(row)
}

// ListAliases returns every merchant alias.
func (s *SQLiteStorage) ListAliases(ctx context.Context) ([]model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+aliasColumns+" FROM merchant_aliases ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.MerchantAlias
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		aliases = append(aliases, *a)
	}
	return aliases, rows.Err()
}

// SaveAlias inserts a new alias or updates an existing one by id.
func (s *SQLiteStorage) SaveAlias(ctx context.Context, alias *model.MerchantAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(alias.RawName, "raw name"); err != nil {
		return err
	}
	if err := validateID(alias.CanonicalMerchantID, "canonical merchant id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if alias.ID == 0 {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO merchant_aliases (canonical_merchant_id, raw_name,
					normalized_name, match_confidence, match_count)
				VALUES (?, ?, ?, ?, ?)`,
				alias.CanonicalMerchantID, alias.RawName, alias.NormalizedName,
				alias.Confidence, alias.MatchCount)
			if err != nil {
				return fmt.Errorf("failed to insert merchant alias: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get alias id: %w", err)
			}
			alias.ID = id
			return nil
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE merchant_aliases
			SET canonical_merchant_id = ?, normalized_name = ?, match_confidence = ?,
				match_count = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			alias.CanonicalMerchantID, alias.NormalizedName, alias.Confidence,
			alias.MatchCount, alias.ID)
		if err != nil {
			return fmt.Errorf("failed to update merchant alias: %w", err)
		}
		return requireRowAffected(result, "merchant alias", alias.ID)
	})
}

const merchantColumns = `id, name, display_name, category_hint, transaction_count,
	created_at, updated_at`

func scanMerchant(row interface{ Scan(...any) error }) (*model.CanonicalMerchant, error) {
	var m model.CanonicalMerchant
	err := row.Scan(&m.ID, &m.Name, &m.DisplayName, &m.CategoryHint, &m.UsageCount,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: canonical merchant", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan canonical merchant: %w", err)
	}
	return &m, nil
}

// GetCanonicalMerchant retrieves a canonical merchant by id.
func (s *SQLiteStorage) GetCanonicalMerchant(ctx context.Context, id int64) (*model.CanonicalMerchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+merchantColumns+" FROM canonical_merchants WHERE id = ?", id)
	return scanMerchant(row)
}

// ListCanonicalMerchants returns every canonical merchant ordered by name.
func (s *SQLiteStorage) ListCanonicalMerchants(ctx context.Context) ([]model.CanonicalMerchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+merchantColumns+" FROM canonical_merchants ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merchants []model.CanonicalMerchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		merchants = append(merchants, *m)
	}
	return merchants, rows.Err()
}

// SaveCanonicalMerchant inserts a new canonical merchant or updates an
// existing one by id.
func (s *SQLiteStorage) SaveCanonicalMerchant(ctx context.Context, merchant *model.CanonicalMerchant) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(merchant.Name, "merchant name"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if merchant.ID == 0 {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO canonical_merchants (name, display_name, category_hint, transaction_count)
				VALUES (?, ?, ?, ?)`,
				merchant.Name, merchant.DisplayName, merchant.CategoryHint, merchant.UsageCount)
			if err != nil {
				return fmt.Errorf("failed to insert canonical merchant: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get merchant id: %w", err)
			}
			merchant.ID = id
			return nil
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE canonical_merchants
			SET name = ?, display_name = ?, category_hint = ?, transaction_count = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			merchant.Name, merchant.DisplayName, merchant.CategoryHint,
			merchant.UsageCount, merchant.ID)
		if err != nil {
			return fmt.Errorf("failed to update canonical merchant: %w", err)
		}
		return requireRowAffected(result, "canonical merchant", merchant.ID)
	})
}

// MergeCanonicalMerchants folds source into target in one transaction:
// aliases move over, counts are summed, missing metadata is adopted, and the
// source row is removed.
func (s *SQLiteStorage) MergeCanonicalMerchants(ctx context.Context, targetID, sourceID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(targetID, "target merchant id"); err != nil {
		return err
	}
	if err := validateID(sourceID, "source merchant id"); err != nil {
		return err
	}
	if targetID == sourceID {
		return fmt.Errorf("%w: cannot merge a merchant into itself", common.ErrConsistencyViolation)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := scanMerchant(tx.QueryRowContext(ctx,
			"SELECT "+merchantColumns+" FROM canonical_merchants WHERE id = ?", targetID))
		if err != nil {
			return err
		}
		source, err := scanMerchant(tx.QueryRowContext(ctx,
			"SELECT "+merchantColumns+" FROM canonical_merchants WHERE id = ?", sourceID))
		if err != nil {
			return err
		}

		target.MergeFrom(source)

		if _, err := tx.ExecContext(ctx, `
			UPDATE merchant_aliases
			SET canonical_merchant_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE canonical_merchant_id = ?`, targetID, sourceID); err != nil {
			return fmt.Errorf("failed to reassign aliases: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE canonical_merchants
			SET display_name = ?, category_hint = ?, transaction_count = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			target.DisplayName, target.CategoryHint, target.UsageCount, targetID); err != nil {
			return fmt.Errorf("failed to update merge target: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM canonical_merchants WHERE id = ?", sourceID); err != nil {
			return fmt.Errorf("failed to remove merged merchant: %w", err)
		}
		return nil
	})
}
