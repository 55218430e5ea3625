// Package service defines the interfaces shared between the engine, the
// learning loop, and the persistence layer.
package service

import (
	"context"
	"time"

	"github.com/ledgersmith/coinsort/internal/model"
)

// InvalidationToken is returned by every mutating rule operation. The cache
// layer must consume it before the mutation is considered complete; a write
// whose token is never consumed risks serving stale rules.
type InvalidationToken struct {
	Scope string
	Seq   uint64
}

// Valid reports whether the token came from a completed write.
func (t InvalidationToken) Valid() bool {
	return t.Seq > 0
}

// Invalidator consumes invalidation tokens, typically a pattern cache.
type Invalidator interface {
	Invalidate(token InvalidationToken) error
}

// RuleStore persists patterns and composite patterns.
type RuleStore interface {
	CreatePattern(ctx context.Context, p *model.Pattern) (InvalidationToken, error)
	UpdatePattern(ctx context.Context, p *model.Pattern) (InvalidationToken, error)
	DeactivatePattern(ctx context.Context, id int64) (InvalidationToken, error)
	GetPattern(ctx context.Context, id int64) (*model.Pattern, error)
	GetActivePatterns(ctx context.Context) ([]model.Pattern, error)
	FindPattern(ctx context.Context, categoryID int64, kind model.PatternKind, value string) (*model.Pattern, error)
	// RecordPatternUsage atomically increments the usage counters, recomputes
	// the success rate, and appends the feedback event. It returns the
	// updated pattern.
	RecordPatternUsage(ctx context.Context, id int64, wasSuccessful bool, event *model.FeedbackEvent) (*model.Pattern, error)

	CreateComposite(ctx context.Context, c *model.CompositePattern) (InvalidationToken, error)
	UpdateComposite(ctx context.Context, c *model.CompositePattern) (InvalidationToken, error)
	DeactivateComposite(ctx context.Context, id int64) (InvalidationToken, error)
	GetComposite(ctx context.Context, id int64) (*model.CompositePattern, error)
	GetActiveComposites(ctx context.Context) ([]model.CompositePattern, error)
	RecordCompositeUsage(ctx context.Context, id int64, wasSuccessful bool, event *model.FeedbackEvent) (*model.CompositePattern, error)

	// AppendFeedback records an event that references no rule, such as a
	// correction on an expense nothing matched.
	AppendFeedback(ctx context.Context, event *model.FeedbackEvent) error
}

// MerchantStore persists canonical merchants and their aliases.
type MerchantStore interface {
	GetAliasByRawName(ctx context.Context, rawName string) (*model.MerchantAlias, error)
	GetAliasByNormalizedName(ctx context.Context, normalizedName string) (*model.MerchantAlias, error)
	ListAliases(ctx context.Context) ([]model.MerchantAlias, error)
	SaveAlias(ctx context.Context, alias *model.MerchantAlias) error
	GetCanonicalMerchant(ctx context.Context, id int64) (*model.CanonicalMerchant, error)
	ListCanonicalMerchants(ctx context.Context) ([]model.CanonicalMerchant, error)
	SaveCanonicalMerchant(ctx context.Context, merchant *model.CanonicalMerchant) error
	// MergeCanonicalMerchants folds source into target: aliases are
	// reassigned, counts summed, metadata unioned, and source removed.
	MergeCanonicalMerchants(ctx context.Context, targetID, sourceID int64) error
}

// PreferenceStore persists contextual category preferences.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, contextType model.PreferenceContext, contextValue string) ([]model.CategoryPreference, error)
	RecordPreference(ctx context.Context, contextType model.PreferenceContext, contextValue string, categoryID int64) error
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	SaveExpenses(ctx context.Context, expenses []model.Expense) (int, error)
	GetExpense(ctx context.Context, id string) (*model.Expense, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	// DeleteCategory cascades to the category's patterns and composites.
	DeleteCategory(ctx context.Context, id int64) error
}

// Storage is the full persistence surface used by the CLI wiring.
type Storage interface {
	RuleStore
	MerchantStore
	PreferenceStore
	ExpenseStore
	CategoryStore
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for transient failures.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
