package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgersmith/coinsort/internal/common"
)

// validateContext ensures the context is usable before touching the database.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return nil
}

// validateString ensures a required string argument is non-blank.
func validateString(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s cannot be empty", common.ErrInvalidConfig, name)
	}
	return nil
}

// validateID ensures a row identifier is positive.
func validateID(id int64, name string) error {
	if id <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, id)
	}
	return nil
}
