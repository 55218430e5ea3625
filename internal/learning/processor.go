// Package learning adjusts rule confidence from user feedback and grows the
// pattern library from repeated corrections.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/config"
	"github.com/ledgersmith/coinsort/internal/merchant"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

// SynthesizedPatternWeight is the starting confidence weight of patterns
// created from corrections.
const SynthesizedPatternWeight = 1.2

// Processor consumes feedback events: it updates usage counters, deactivates
// poor performers, and synthesizes new patterns from corrections.
type Processor struct {
	rules       service.RuleStore
	expenses    service.ExpenseStore
	invalidator service.Invalidator
	cfg         config.Engine
}

// NewProcessor creates a feedback processor.
func NewProcessor(rules service.RuleStore, expenses service.ExpenseStore, invalidator service.Invalidator, cfg config.Engine) *Processor {
	return &Processor{
		rules:       rules,
		expenses:    expenses,
		invalidator: invalidator,
		cfg:         cfg,
	}
}

// RecordUsage notes one outcome for the rule a feedback event references.
// The counter update and the event append are one atomic storage operation;
// the deactivation check runs immediately afterwards so a rule switched off
// here is invisible to the very next classification.
func (p *Processor) RecordUsage(ctx context.Context, event *model.FeedbackEvent, wasSuccessful bool) error {
	switch {
	case event.PatternID != nil:
		updated, err := p.rules.RecordPatternUsage(ctx, *event.PatternID, wasSuccessful, event)
		if err != nil {
			return fmt.Errorf("failed to record pattern usage: %w", err)
		}
		return p.checkPatternPerformance(ctx, updated)
	case event.CompositeID != nil:
		updated, err := p.rules.RecordCompositeUsage(ctx, *event.CompositeID, wasSuccessful, event)
		if err != nil {
			return fmt.Errorf("failed to record composite usage: %w", err)
		}
		return p.checkCompositePerformance(ctx, updated)
	default:
		if err := p.rules.AppendFeedback(ctx, event); err != nil {
			return fmt.Errorf("failed to append feedback event: %w", err)
		}
		return nil
	}
}

// ProcessFeedback routes a feedback event through the learning loop.
func (p *Processor) ProcessFeedback(ctx context.Context, event *model.FeedbackEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	switch event.Kind {
	case model.FeedbackAccepted, model.FeedbackRejected, model.FeedbackCorrected:
		return p.RecordUsage(ctx, event, event.WasSuccessful())
	case model.FeedbackCorrection:
		if err := p.RecordUsage(ctx, event, false); err != nil {
			return err
		}
		return p.synthesizePattern(ctx, event)
	}
	return nil
}

// synthesizePattern creates a new user-created pattern from a correction,
// preferring the expense's merchant name over its description.
func (p *Processor) synthesizePattern(ctx context.Context, event *model.FeedbackEvent) error {
	expense, err := p.expenses.GetExpense(ctx, event.ExpenseID)
	if err != nil {
		return fmt.Errorf("failed to load corrected expense: %w", err)
	}

	kind, value := inferPattern(expense)
	if value == "" {
		slog.Debug("Correction has nothing to learn from", "expense_id", event.ExpenseID)
		return nil
	}

	if existing, err := p.rules.FindPattern(ctx, event.CategoryID, kind, value); err == nil && existing != nil {
		slog.Debug("Pattern already exists, skipping synthesis",
			"category_id", event.CategoryID,
			"pattern_type", kind,
			"pattern_value", value)
		return nil
	} else if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to check for existing pattern: %w", err)
	}

	created, err := model.NewPattern(event.CategoryID, kind, value, SynthesizedPatternWeight)
	if err != nil {
		return fmt.Errorf("failed to build synthesized pattern: %w", err)
	}
	created.UserCreated = true

	token, err := p.rules.CreatePattern(ctx, created)
	if err != nil {
		return fmt.Errorf("failed to create synthesized pattern: %w", err)
	}
	if err := p.invalidator.Invalidate(token); err != nil {
		return fmt.Errorf("pattern created but cache not invalidated: %w", err)
	}

	slog.Info("Synthesized pattern from correction",
		"category_id", event.CategoryID,
		"pattern_type", kind,
		"pattern_value", value)
	return nil
}

// inferPattern picks the pattern type and value a correction teaches us.
func inferPattern(expense *model.Expense) (model.PatternKind, string) {
	if strings.TrimSpace(expense.MerchantName) != "" {
		return model.KindMerchant, merchant.Normalize(expense.MerchantName)
	}
	if strings.TrimSpace(expense.Description) != "" {
		return model.KindDescription, strings.ToLower(strings.TrimSpace(expense.Description))
	}
	return model.KindKeyword, ""
}

// checkPatternPerformance deactivates a pattern with enough evidence of
// poor performance. User-created patterns are never touched.
func (p *Processor) checkPatternPerformance(ctx context.Context, pattern *model.Pattern) error {
	if !pattern.Active || !pattern.EligibleForDeactivation(p.cfg.DeactivationMinUsage, p.cfg.DeactivationMaxSuccessRate) {
		return nil
	}

	token, err := p.rules.DeactivatePattern(ctx, pattern.ID)
	if err != nil {
		return fmt.Errorf("failed to deactivate pattern %d: %w", pattern.ID, err)
	}
	if err := p.invalidator.Invalidate(token); err != nil {
		return fmt.Errorf("pattern deactivated but cache not invalidated: %w", err)
	}

	slog.Info("Deactivated poorly performing pattern",
		"pattern_id", pattern.ID,
		"usage_count", pattern.UsageCount,
		"success_rate", pattern.SuccessRate)
	return nil
}

// checkCompositePerformance mirrors checkPatternPerformance for composites.
func (p *Processor) checkCompositePerformance(ctx context.Context, composite *model.CompositePattern) error {
	if !composite.Active || !composite.EligibleForDeactivation(p.cfg.DeactivationMinUsage, p.cfg.DeactivationMaxSuccessRate) {
		return nil
	}

	token, err := p.rules.DeactivateComposite(ctx, composite.ID)
	if err != nil {
		return fmt.Errorf("failed to deactivate composite %d: %w", composite.ID, err)
	}
	if err := p.invalidator.Invalidate(token); err != nil {
		return fmt.Errorf("composite deactivated but cache not invalidated: %w", err)
	}

	slog.Info("Deactivated poorly performing composite",
		"composite_id", composite.ID,
		"usage_count", composite.UsageCount,
		"success_rate", composite.SuccessRate)
	return nil
}
