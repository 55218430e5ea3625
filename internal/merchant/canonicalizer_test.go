package merchant

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/model"
)

// memoryMerchantStore is an in-memory MerchantStore for canonicalizer tests.
type memoryMerchantStore struct {
	aliases   map[int64]*model.MerchantAlias
	merchants map[int64]*model.CanonicalMerchant
	nextID    int64
}

func newMemoryMerchantStore() *memoryMerchantStore {
	return &memoryMerchantStore{
		aliases:   make(map[int64]*model.MerchantAlias),
		merchants: make(map[int64]*model.CanonicalMerchant),
	}
}

func (s *memoryMerchantStore) GetAliasByRawName(_ context.Context, rawName string) (*model.MerchantAlias, error) {
	for _, a := range s.aliases {
		if a.RawName == rawName {
			copied := *a
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *memoryMerchantStore) GetAliasByNormalizedName(_ context.Context, normalizedName string) (*model.MerchantAlias, error) {
	for _, a := range s.aliases {
		if a.NormalizedName == normalizedName {
			copied := *a
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *memoryMerchantStore) ListAliases(_ context.Context) ([]model.MerchantAlias, error) {
	out := make([]model.MerchantAlias, 0, len(s.aliases))
	for _, a := range s.aliases {
		out = append(out, *a)
	}
	return out, nil
}

func (s *memoryMerchantStore) SaveAlias(_ context.Context, alias *model.MerchantAlias) error {
	if alias.ID == 0 {
		s.nextID++
		alias.ID = s.nextID
	}
	copied := *alias
	s.aliases[alias.ID] = &copied
	return nil
}

func (s *memoryMerchantStore) GetCanonicalMerchant(_ context.Context, id int64) (*model.CanonicalMerchant, error) {
	m, ok := s.merchants[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *memoryMerchantStore) ListCanonicalMerchants(_ context.Context) ([]model.CanonicalMerchant, error) {
	out := make([]model.CanonicalMerchant, 0, len(s.merchants))
	for _, m := range s.merchants {
		out = append(out, *m)
	}
	return out, nil
}

func (s *memoryMerchantStore) SaveCanonicalMerchant(_ context.Context, merchant *model.CanonicalMerchant) error {
	if merchant.ID == 0 {
		s.nextID++
		merchant.ID = s.nextID
	}
	copied := *merchant
	s.merchants[merchant.ID] = &copied
	return nil
}

func (s *memoryMerchantStore) MergeCanonicalMerchants(_ context.Context, targetID, sourceID int64) error {
	return fmt.Errorf("not implemented")
}

func newTestCanonicalizer(store *memoryMerchantStore) *Canonicalizer {
	return NewCanonicalizer(store, NewScorer(), 0.6, 0.85)
}

func TestFindOrCreateNewMerchant(t *testing.T) {
	store := newMemoryMerchantStore()
	c := newTestCanonicalizer(store)

	canonical, err := c.FindOrCreate(context.Background(), "STARBUCKS #1234")
	require.NoError(t, err)
	assert.Equal(t, "starbucks", canonical.Name)
	assert.Equal(t, "Starbucks", canonical.DisplayName)
	assert.Equal(t, 1, canonical.UsageCount)

	alias, err := store.GetAliasByRawName(context.Background(), "STARBUCKS #1234")
	require.NoError(t, err)
	assert.Equal(t, canonical.ID, alias.CanonicalMerchantID)
	assert.InDelta(t, 1.0, alias.Confidence, 1e-9)
}

func TestFindOrCreateExactAliasReuse(t *testing.T) {
	store := newMemoryMerchantStore()
	c := newTestCanonicalizer(store)
	ctx := context.Background()

	first, err := c.FindOrCreate(ctx, "STARBUCKS #1234")
	require.NoError(t, err)
	second, err := c.FindOrCreate(ctx, "STARBUCKS #1234")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.UsageCount)
	assert.Len(t, store.aliases, 1, "exact repeats reuse the alias")
}

func TestFindOrCreateNormalizedConvergence(t *testing.T) {
	store := newMemoryMerchantStore()
	c := newTestCanonicalizer(store)
	ctx := context.Background()

	first, err := c.FindOrCreate(ctx, "UBER TRIP 99182")
	require.NoError(t, err)
	second, err := c.FindOrCreate(ctx, "Uber   Trip 33410")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "raw variants with one normalized form share a canonical merchant")
	assert.Len(t, store.aliases, 2, "each raw variant keeps its own alias")
}

func TestFindOrCreateFuzzyCanonicalMatch(t *testing.T) {
	store := newMemoryMerchantStore()
	c := newTestCanonicalizer(store)
	ctx := context.Background()

	uber, err := c.FindOrCreate(ctx, "UBER")
	require.NoError(t, err)

	trip, err := c.FindOrCreate(ctx, "UBER TECHNOLOGIES 8827")
	require.NoError(t, err)
	assert.Equal(t, uber.ID, trip.ID, "similar names join the existing canonical merchant")

	alias, err := store.GetAliasByRawName(ctx, "UBER TECHNOLOGIES 8827")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, alias.Confidence, 0.6, "fuzzy joins carry the similarity as confidence")
}

func TestFindOrCreateFuzzyAliasMatch(t *testing.T) {
	store := newMemoryMerchantStore()
	c := newTestCanonicalizer(store)
	ctx := context.Background()

	original, err := c.FindOrCreate(ctx, "BLUE BOTTLE COFFEE")
	require.NoError(t, err)

	typo, err := c.FindOrCreate(ctx, "BLUE BOTTLE COFFE")
	require.NoError(t, err)
	assert.Equal(t, original.ID, typo.ID, "near-identical normalized names reuse the alias's canonical merchant")

	alias, err := store.GetAliasByRawName(ctx, "BLUE BOTTLE COFFE")
	require.NoError(t, err)
	assert.Less(t, alias.Confidence, 1.0)
	assert.Greater(t, alias.Confidence, 0.85)
}

func TestFindOrCreateDistinctMerchantsStaySeparate(t *testing.T) {
	store := newMemoryMerchantStore()
	c := newTestCanonicalizer(store)
	ctx := context.Background()

	starbucks, err := c.FindOrCreate(ctx, "STARBUCKS")
	require.NoError(t, err)
	walmart, err := c.FindOrCreate(ctx, "WALMART STORE 5543")
	require.NoError(t, err)

	assert.NotEqual(t, starbucks.ID, walmart.ID)
	assert.Len(t, store.merchants, 2)
}

func TestFindOrCreateRejectsEmpty(t *testing.T) {
	c := newTestCanonicalizer(newMemoryMerchantStore())
	_, err := c.FindOrCreate(context.Background(), "")
	require.Error(t, err)
}
