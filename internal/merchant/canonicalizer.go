package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

// Canonicalizer resolves raw merchant strings to canonical merchants,
// creating or reusing aliases along the way. Every raw string converges to
// exactly one canonical identity, with alias confidence proportional to the
// observed similarity.
type Canonicalizer struct {
	store               service.MerchantStore
	scorer              *Scorer
	similarityThreshold float64
	aliasThreshold      float64
}

// NewCanonicalizer creates a canonicalizer. Thresholds come from the engine
// configuration.
func NewCanonicalizer(store service.MerchantStore, scorer *Scorer, similarityThreshold, aliasThreshold float64) *Canonicalizer {
	return &Canonicalizer{
		store:               store,
		scorer:              scorer,
		similarityThreshold: similarityThreshold,
		aliasThreshold:      aliasThreshold,
	}
}

// FindOrCreate resolves a raw merchant string. Lookup order: exact alias by
// raw name, exact alias by normalized name, fuzzy alias by edit distance,
// fuzzy canonical by trigram similarity, and finally a brand-new canonical
// merchant with a confidence-1.0 alias.
func (c *Canonicalizer) FindOrCreate(ctx context.Context, raw string) (*model.CanonicalMerchant, error) {
	if raw == "" {
		return nil, fmt.Errorf("merchant name cannot be empty")
	}

	now := time.Now()

	if alias, err := c.store.GetAliasByRawName(ctx, raw); err == nil {
		return c.resolveThrough(ctx, alias, now)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up alias: %w", err)
	}

	normalized := Normalize(raw)
	if normalized == "" {
		return nil, fmt.Errorf("merchant name %q normalizes to nothing", raw)
	}

	if alias, err := c.store.GetAliasByNormalizedName(ctx, normalized); err == nil {
		return c.adoptCanonical(ctx, raw, normalized, alias.CanonicalMerchantID, 1.0, now)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up alias: %w", err)
	}

	if alias, score, err := c.closestAlias(ctx, normalized); err != nil {
		return nil, err
	} else if alias != nil {
		return c.adoptCanonical(ctx, raw, normalized, alias.CanonicalMerchantID, score, now)
	}

	if canonical, score, err := c.closestCanonical(ctx, normalized); err != nil {
		return nil, err
	} else if canonical != nil {
		return c.adoptCanonical(ctx, raw, normalized, canonical.ID, score, now)
	}

	return c.createCanonical(ctx, raw, normalized, now)
}

// resolveThrough bumps the counters on a known alias and its canonical
// merchant.
func (c *Canonicalizer) resolveThrough(ctx context.Context, alias *model.MerchantAlias, now time.Time) (*model.CanonicalMerchant, error) {
	alias.RecordMatch(now)
	if err := c.store.SaveAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("failed to update alias: %w", err)
	}

	canonical, err := c.store.GetCanonicalMerchant(ctx, alias.CanonicalMerchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical merchant: %w", err)
	}

	canonical.UsageCount++
	if err := c.store.SaveCanonicalMerchant(ctx, canonical); err != nil {
		return nil, fmt.Errorf("failed to update canonical merchant: %w", err)
	}
	return canonical, nil
}

// adoptCanonical records a new alias pointing at an existing canonical
// merchant.
func (c *Canonicalizer) adoptCanonical(ctx context.Context, raw, normalized string, canonicalID int64, confidence float64, now time.Time) (*model.CanonicalMerchant, error) {
	alias := &model.MerchantAlias{
		RawName:             raw,
		NormalizedName:      normalized,
		CanonicalMerchantID: canonicalID,
		Confidence:          confidence,
		MatchCount:          1,
		LastSeenAt:          now,
	}
	if err := c.store.SaveAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("failed to create alias: %w", err)
	}

	canonical, err := c.store.GetCanonicalMerchant(ctx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical merchant: %w", err)
	}
	canonical.UsageCount++
	if err := c.store.SaveCanonicalMerchant(ctx, canonical); err != nil {
		return nil, fmt.Errorf("failed to update canonical merchant: %w", err)
	}

	slog.Debug("Linked merchant alias",
		"raw", raw,
		"canonical", canonical.Name,
		"confidence", confidence)
	return canonical, nil
}

// closestAlias finds an existing alias whose normalized name is within edit
// distance of the candidate.
func (c *Canonicalizer) closestAlias(ctx context.Context, normalized string) (*model.MerchantAlias, float64, error) {
	aliases, err := c.store.ListAliases(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list aliases: %w", err)
	}

	var best *model.MerchantAlias
	bestScore := c.aliasThreshold
	for i := range aliases {
		score := c.scorer.EditSimilarity(normalized, aliases[i].NormalizedName)
		if score > bestScore {
			best = &aliases[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

// closestCanonical finds the most similar existing canonical merchant above
// the configured threshold.
func (c *Canonicalizer) closestCanonical(ctx context.Context, normalized string) (*model.CanonicalMerchant, float64, error) {
	merchants, err := c.store.ListCanonicalMerchants(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list canonical merchants: %w", err)
	}

	var best *model.CanonicalMerchant
	var bestScore float64
	for i := range merchants {
		score := c.scorer.Similarity(normalized, merchants[i].Name)
		if score >= c.similarityThreshold && score > bestScore {
			best = &merchants[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

// createCanonical registers a merchant never seen before in any form.
func (c *Canonicalizer) createCanonical(ctx context.Context, raw, normalized string, now time.Time) (*model.CanonicalMerchant, error) {
	canonical := &model.CanonicalMerchant{
		Name:        normalized,
		DisplayName: Beautify(normalized),
		UsageCount:  1,
	}
	if err := c.store.SaveCanonicalMerchant(ctx, canonical); err != nil {
		return nil, fmt.Errorf("failed to create canonical merchant: %w", err)
	}

	alias := &model.MerchantAlias{
		RawName:             raw,
		NormalizedName:      normalized,
		CanonicalMerchantID: canonical.ID,
		Confidence:          1.0,
		MatchCount:          1,
		LastSeenAt:          now,
	}
	if err := c.store.SaveAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("failed to create alias: %w", err)
	}

	slog.Debug("Created canonical merchant", "name", normalized, "display", canonical.DisplayName)
	return canonical, nil
}
