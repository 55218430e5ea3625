// Package engine composes the evaluators, confidence model, cache, and
// learning loop into the classification entry point.
package engine

import (
	"context"
	"sync"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

// RuleSetLoader rebuilds the active rule set from the authoritative store.
type RuleSetLoader func(ctx context.Context) ([]model.Pattern, []model.CompositePattern, error)

// Cache holds the active patterns and composites between writes. It is an
// explicitly owned object, not ambient state: every mutating rule operation
// returns an invalidation token the cache must consume, and reads re-check
// validity instead of trusting a TTL.
type Cache struct {
	patterns   []model.Pattern
	composites []model.CompositePattern
	mu         sync.RWMutex
	valid      bool
}

// NewCache creates an empty, invalid cache.
func NewCache() *Cache {
	return &Cache{}
}

// Invalidate consumes a token from a completed write. A token that did not
// come from a completed write is refused loudly: the caller must not treat
// the mutation as finished.
func (c *Cache) Invalidate(token service.InvalidationToken) error {
	if !token.Valid() {
		return common.ErrStaleCache
	}

	c.mu.Lock()
	c.valid = false
	c.patterns = nil
	c.composites = nil
	c.mu.Unlock()
	return nil
}

// Snapshot returns the cached rule set, rebuilding it through the loader on
// a miss. The returned slices are shared and must be treated as read-only.
func (c *Cache) Snapshot(ctx context.Context, load RuleSetLoader) ([]model.Pattern, []model.CompositePattern, error) {
	c.mu.RLock()
	if c.valid {
		patterns, composites := c.patterns, c.composites
		c.mu.RUnlock()
		return patterns, composites, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.patterns, c.composites, nil
	}

	patterns, composites, err := load(ctx)
	if err != nil {
		return nil, nil, err
	}

	c.patterns = patterns
	c.composites = composites
	c.valid = true
	return patterns, composites, nil
}
