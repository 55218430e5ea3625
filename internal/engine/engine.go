package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgersmith/coinsort/internal/config"
	"github.com/ledgersmith/coinsort/internal/learning"
	"github.com/ledgersmith/coinsort/internal/merchant"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/pattern"
	"github.com/ledgersmith/coinsort/internal/service"
)

// perWeightBoost is how much one point of preference weight contributes to
// a suggestion's confidence before the configured cap applies.
const perWeightBoost = 0.05

// Engine is the classification entry point. Evaluation is pure and safe to
// run for many expenses concurrently; mutation flows through the learning
// processor and the rule store.
type Engine struct {
	rules     service.RuleStore
	prefs     service.PreferenceStore
	expenses  service.ExpenseStore
	cache     *Cache
	evaluator *pattern.Evaluator
	scoring   *pattern.ConfidenceModel
	learner   *learning.Processor
	cfg       config.Engine
}

// New wires up an engine from its collaborators.
func New(rules service.RuleStore, prefs service.PreferenceStore, expenses service.ExpenseStore, cache *Cache, cfg config.Engine) *Engine {
	e := &Engine{
		rules:     rules,
		prefs:     prefs,
		expenses:  expenses,
		cache:     cache,
		evaluator: pattern.NewEvaluator(),
		scoring:   pattern.NewConfidenceModel(cfg.EvidenceGate),
		cfg:       cfg,
	}
	e.learner = learning.NewProcessor(rules, expenses, cache, cfg)
	return e
}

// Classify evaluates every active rule against the expense and returns
// ranked category suggestions. One malformed rule never aborts
// classification; the worst outcome for an expense is an empty list.
func (e *Engine) Classify(ctx context.Context, expense model.Expense) (model.Suggestions, error) {
	patterns, composites, err := e.cache.Snapshot(ctx, e.loadRuleSet)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}

	byID := make(map[int64]*model.Pattern, len(patterns))
	for i := range patterns {
		byID[patterns[i].ID] = &patterns[i]
	}

	suggestions := make(model.Suggestions, 0, 4)

	for i := range patterns {
		p := &patterns[i]
		if !e.evaluator.Matches(p, expense) {
			continue
		}
		suggestions = append(suggestions, model.Suggestion{
			CategoryID: p.CategoryID,
			Confidence: e.scoring.Confidence(p),
			RuleID:     p.ID,
			RuleKind:   model.RulePattern,
			UsageCount: p.UsageCount,
			Reason:     patternReason(p, expense),
		})
	}

	for i := range composites {
		c := &composites[i]
		components := resolveComponents(c, byID)
		if !e.evaluator.MatchesComposite(c, components, expense) {
			continue
		}
		suggestions = append(suggestions, model.Suggestion{
			CategoryID: c.CategoryID,
			Confidence: e.scoring.CompositeConfidence(c, components),
			RuleID:     c.ID,
			RuleKind:   model.RuleComposite,
			UsageCount: c.UsageCount,
			Reason:     fmt.Sprintf("%s combination of %d patterns matched", c.Operator, len(components)),
		})
	}

	e.applyPreferenceBoost(ctx, expense, suggestions)
	suggestions.Sort()
	return suggestions, nil
}

// loadRuleSet is the cache-miss path back to the authoritative store.
func (e *Engine) loadRuleSet(ctx context.Context) ([]model.Pattern, []model.CompositePattern, error) {
	patterns, err := e.rules.GetActivePatterns(ctx)
	if err != nil {
		return nil, nil, err
	}
	composites, err := e.rules.GetActiveComposites(ctx)
	if err != nil {
		return nil, nil, err
	}
	return patterns, composites, nil
}

func resolveComponents(c *model.CompositePattern, byID map[int64]*model.Pattern) []*model.Pattern {
	components := make([]*model.Pattern, 0, len(c.PatternIDs))
	for _, id := range c.PatternIDs {
		if p, ok := byID[id]; ok {
			components = append(components, p)
		}
	}
	return components
}

// applyPreferenceBoost blends a bounded contextual boost into matched
// suggestions. Preferences are a secondary signal; a store failure here
// degrades to no boost rather than failing the classification.
func (e *Engine) applyPreferenceBoost(ctx context.Context, expense model.Expense, suggestions model.Suggestions) {
	if len(suggestions) == 0 || e.prefs == nil || e.cfg.PreferenceBoostCap <= 0 {
		return
	}

	weights := make(map[int64]int)
	for _, key := range preferenceContexts(expense) {
		prefs, err := e.prefs.GetPreferences(ctx, key.contextType, key.contextValue)
		if err != nil {
			slog.Warn("Failed to load category preferences",
				"context_type", key.contextType,
				"error", err)
			continue
		}
		for _, pref := range prefs {
			weights[pref.CategoryID] += pref.PreferenceWeight
		}
	}
	if len(weights) == 0 {
		return
	}

	for i := range suggestions {
		boost := perWeightBoost * float64(weights[suggestions[i].CategoryID])
		if boost > e.cfg.PreferenceBoostCap {
			boost = e.cfg.PreferenceBoostCap
		}
		suggestions[i].Confidence += boost
	}
}

type preferenceKey struct {
	contextType  model.PreferenceContext
	contextValue string
}

// preferenceContexts derives the lookup keys an expense participates in.
func preferenceContexts(expense model.Expense) []preferenceKey {
	keys := make([]preferenceKey, 0, 4)
	if expense.MerchantName != "" {
		keys = append(keys, preferenceKey{model.ContextMerchant, merchant.Normalize(expense.MerchantName)})
	}
	if !expense.OccurredAt.IsZero() {
		keys = append(keys,
			preferenceKey{model.ContextTimeOfDay, model.TimeOfDayBucket(expense.OccurredAt)},
			preferenceKey{model.ContextDayOfWeek, model.DayOfWeekValue(expense.OccurredAt)},
		)
	}
	keys = append(keys, preferenceKey{model.ContextAmountRange, model.AmountBucket(expense.Amount)})
	return keys
}

// ProcessFeedback runs a feedback event through the learning loop and,
// when the user confirmed a category, reinforces the expense's contextual
// preferences.
func (e *Engine) ProcessFeedback(ctx context.Context, event *model.FeedbackEvent) error {
	if err := e.learner.ProcessFeedback(ctx, event); err != nil {
		return err
	}

	if event.Kind == model.FeedbackAccepted || event.Kind == model.FeedbackCorrection {
		e.reinforcePreferences(ctx, event)
	}
	return nil
}

func (e *Engine) reinforcePreferences(ctx context.Context, event *model.FeedbackEvent) {
	if e.prefs == nil {
		return
	}
	expense, err := e.expenses.GetExpense(ctx, event.ExpenseID)
	if err != nil {
		slog.Debug("Skipping preference reinforcement", "expense_id", event.ExpenseID, "error", err)
		return
	}
	for _, key := range preferenceContexts(*expense) {
		if err := e.prefs.RecordPreference(ctx, key.contextType, key.contextValue, event.CategoryID); err != nil {
			slog.Warn("Failed to record category preference",
				"context_type", key.contextType,
				"error", err)
		}
	}
}

// CreatePattern persists a new pattern and invalidates the cache. The
// mutation is not complete until the invalidation is confirmed.
func (e *Engine) CreatePattern(ctx context.Context, p *model.Pattern) error {
	token, err := e.rules.CreatePattern(ctx, p)
	if err != nil {
		return err
	}
	return e.cache.Invalidate(token)
}

// UpdatePattern persists pattern changes and invalidates the cache.
func (e *Engine) UpdatePattern(ctx context.Context, p *model.Pattern) error {
	token, err := e.rules.UpdatePattern(ctx, p)
	if err != nil {
		return err
	}
	return e.cache.Invalidate(token)
}

// DeactivatePattern switches a pattern off and invalidates the cache.
func (e *Engine) DeactivatePattern(ctx context.Context, id int64) error {
	token, err := e.rules.DeactivatePattern(ctx, id)
	if err != nil {
		return err
	}
	return e.cache.Invalidate(token)
}

// CreateComposite persists a new composite and invalidates the cache.
func (e *Engine) CreateComposite(ctx context.Context, c *model.CompositePattern) error {
	token, err := e.rules.CreateComposite(ctx, c)
	if err != nil {
		return err
	}
	return e.cache.Invalidate(token)
}

// UpdateComposite persists composite changes and invalidates the cache.
func (e *Engine) UpdateComposite(ctx context.Context, c *model.CompositePattern) error {
	token, err := e.rules.UpdateComposite(ctx, c)
	if err != nil {
		return err
	}
	return e.cache.Invalidate(token)
}

// DeactivateComposite switches a composite off and invalidates the cache.
func (e *Engine) DeactivateComposite(ctx context.Context, id int64) error {
	token, err := e.rules.DeactivateComposite(ctx, id)
	if err != nil {
		return err
	}
	return e.cache.Invalidate(token)
}

// patternReason builds the human-readable explanation for a suggestion.
func patternReason(p *model.Pattern, expense model.Expense) string {
	subject := expense.MerchantName
	if subject == "" {
		subject = expense.Description
	}
	switch p.Kind {
	case model.KindMerchant:
		return fmt.Sprintf("merchant matches %q", p.Value)
	case model.KindKeyword:
		return fmt.Sprintf("%q appears in %q", p.Value, subject)
	case model.KindDescription:
		return fmt.Sprintf("description contains %q", p.Value)
	case model.KindAmountRange:
		return fmt.Sprintf("amount %s falls in %s", expense.Amount, p.Value)
	case model.KindRegex:
		return fmt.Sprintf("matches pattern /%s/", p.Value)
	case model.KindTime:
		return fmt.Sprintf("occurred during %s", p.Value)
	}
	return "matched"
}
