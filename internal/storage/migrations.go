package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgersmith/coinsort/internal/common"
)

// ExpectedSchemaVersion is the schema version this build requires.
const ExpectedSchemaVersion = 6

// Migration represents a single schema change.
type Migration struct {
	Description string
	SQL         string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create categories and rule tables",
		SQL: `
			CREATE TABLE categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL COLLATE NOCASE UNIQUE,
				active BOOLEAN NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE patterns (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				category_id INTEGER NOT NULL REFERENCES categories(id),
				pattern_type TEXT NOT NULL CHECK (pattern_type IN
					('merchant', 'keyword', 'description', 'amount_range', 'regex', 'time')),
				pattern_value TEXT NOT NULL,
				confidence_weight REAL NOT NULL CHECK (confidence_weight >= 0.1 AND confidence_weight <= 5.0),
				usage_count INTEGER NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
				success_count INTEGER NOT NULL DEFAULT 0 CHECK (success_count >= 0 AND success_count <= usage_count),
				success_rate REAL NOT NULL DEFAULT 0,
				user_created BOOLEAN NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (category_id, pattern_type, pattern_value)
			);

			CREATE INDEX idx_patterns_active ON patterns(active);
			CREATE INDEX idx_patterns_category ON patterns(category_id);

			CREATE TABLE composite_patterns (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				category_id INTEGER NOT NULL REFERENCES categories(id),
				name TEXT NOT NULL,
				operator TEXT NOT NULL CHECK (operator IN ('AND', 'OR', 'NOT')),
				pattern_ids TEXT NOT NULL,
				conditions TEXT NOT NULL DEFAULT '',
				confidence_weight REAL NOT NULL CHECK (confidence_weight >= 0.1 AND confidence_weight <= 5.0),
				usage_count INTEGER NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
				success_count INTEGER NOT NULL DEFAULT 0 CHECK (success_count >= 0 AND success_count <= usage_count),
				success_rate REAL NOT NULL DEFAULT 0,
				user_created BOOLEAN NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_composites_active ON composite_patterns(active);
			CREATE INDEX idx_composites_category ON composite_patterns(category_id);
		`,
	},
	{
		Version:     2,
		Description: "Create expenses table",
		SQL: `
			CREATE TABLE expenses (
				id TEXT PRIMARY KEY,
				merchant_name TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				amount TEXT NOT NULL,
				occurred_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_expenses_occurred ON expenses(occurred_at);
		`,
	},
	{
		Version:     3,
		Description: "Create merchant canonicalization tables",
		SQL: `
			CREATE TABLE canonical_merchants (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL COLLATE NOCASE UNIQUE,
				display_name TEXT NOT NULL,
				category_hint TEXT NOT NULL DEFAULT '',
				transaction_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE merchant_aliases (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				canonical_merchant_id INTEGER NOT NULL REFERENCES canonical_merchants(id),
				raw_name TEXT NOT NULL UNIQUE,
				normalized_name TEXT NOT NULL,
				match_confidence REAL NOT NULL,
				match_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_aliases_normalized ON merchant_aliases(normalized_name);
			CREATE INDEX idx_aliases_canonical ON merchant_aliases(canonical_merchant_id);
		`,
	},
	{
		Version:     4,
		Description: "Create feedback events table",
		SQL: `
			CREATE TABLE feedback_events (
				id TEXT PRIMARY KEY,
				expense_id TEXT NOT NULL,
				category_id INTEGER NOT NULL,
				pattern_id INTEGER,
				composite_id INTEGER,
				kind TEXT NOT NULL CHECK (kind IN ('accepted', 'rejected', 'corrected', 'correction')),
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_feedback_expense ON feedback_events(expense_id);
			CREATE INDEX idx_feedback_pattern ON feedback_events(pattern_id);
		`,
	},
	{
		Version:     5,
		Description: "Create category preferences table",
		SQL: `
			CREATE TABLE category_preferences (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				context_type TEXT NOT NULL CHECK (context_type IN
					('merchant', 'time_of_day', 'day_of_week', 'amount_range')),
				context_value TEXT NOT NULL,
				category_id INTEGER NOT NULL REFERENCES categories(id),
				preference_weight INTEGER NOT NULL DEFAULT 1,
				usage_count INTEGER NOT NULL DEFAULT 1,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (context_type, context_value, category_id)
			);
		`,
	},
	{
		Version:     6,
		Description: "Record suggestion confidence on feedback events",
		SQL: `
			ALTER TABLE feedback_events ADD COLUMN confidence_score REAL;
		`,
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		common.LogInfo("Applying migration",
			common.Fields{"version": m.Version, "description": m.Description})

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
				return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	return s.schemaVersion(ctx)
}

func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
