// Package storage provides the SQLite persistence layer for the coinsort
// engine.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/config"
	"github.com/ledgersmith/coinsort/internal/service"
)

// SQLiteStorage implements service.Storage using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	cfg      config.Engine
	writeSeq atomic.Uint64
}

var _ service.Storage = (*SQLiteStorage)(nil)

// queryable abstracts *sql.DB and *sql.Tx for shared query helpers.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string, cfg config.Engine) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath, cfg: cfg}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// nextToken mints the invalidation token for a completed write.
func (s *SQLiteStorage) nextToken(scope string) service.InvalidationToken {
	return service.InvalidationToken{Scope: scope, Seq: s.writeSeq.Add(1)}
}

// classifyErr maps driver errors onto the shared sentinel errors so callers
// can retry transient contention and detect duplicates.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", common.ErrBusy, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", common.ErrDuplicateEntry, err)
		case se.ExtendedCode == sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %v", common.ErrConsistencyViolation, err)
		}
	}
	return err
}

// withTx runs fn inside a transaction, retrying transient busy errors.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return common.WithRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classifyErr(err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return classifyErr(err)
		}
		return classifyErr(tx.Commit())
	}, service.RetryOptions{})
}
