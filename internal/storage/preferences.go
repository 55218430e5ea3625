package storage

import (
	"context"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/model"
)

// GetPreferences returns the category preferences recorded for one context
// key, strongest first.
func (s *SQLiteStorage) GetPreferences(ctx context.Context, contextType model.PreferenceContext, contextValue string) ([]model.CategoryPreference, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(contextValue, "contextValue"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, context_type, context_value, category_id, preference_weight, usage_count
		FROM category_preferences
		WHERE context_type = ? AND context_value = ?
		ORDER BY preference_weight DESC, usage_count DESC, category_id`,
		contextType, contextValue)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []model.CategoryPreference
	for rows.Next() {
		var p model.CategoryPreference
		if err := rows.Scan(&p.ID, &p.ContextType, &p.ContextValue, &p.CategoryID,
			&p.PreferenceWeight, &p.UsageCount); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// RecordPreference notes one confirmed co-occurrence of a context key and a
// category. The weight climbs one step each time usage crosses a multiple of
// the configured threshold.
func (s *SQLiteStorage) RecordPreference(ctx context.Context, contextType model.PreferenceContext, contextValue string, categoryID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(contextValue, "contextValue"); err != nil {
		return err
	}
	if err := validateID(categoryID, "category id"); err != nil {
		return err
	}

	threshold := s.cfg.PreferenceWeightThreshold
	if threshold <= 0 {
		threshold = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_preferences (context_type, context_value, category_id)
		VALUES (?, ?, ?)
		ON CONFLICT (context_type, context_value, category_id) DO UPDATE SET
			usage_count = usage_count + 1,
			preference_weight = preference_weight +
				CASE WHEN (usage_count + 1) % ? = 0 THEN 1 ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP`,
		contextType, contextValue, categoryID, threshold)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to record preference: %w", err))
	}
	return nil
}
