package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersmith/coinsort/internal/common"
	"github.com/ledgersmith/coinsort/internal/config"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

// stubStore is an in-memory implementation of the store interfaces the
// engine needs.
type stubStore struct {
	patterns   map[int64]*model.Pattern
	composites map[int64]*model.CompositePattern
	expenses   map[string]*model.Expense
	prefs      map[string][]model.CategoryPreference
	recorded   []string
	loads      int
	nextSeq    uint64
}

func newStubStore() *stubStore {
	return &stubStore{
		patterns:   make(map[int64]*model.Pattern),
		composites: make(map[int64]*model.CompositePattern),
		expenses:   make(map[string]*model.Expense),
		prefs:      make(map[string][]model.CategoryPreference),
	}
}

func (s *stubStore) token() service.InvalidationToken {
	s.nextSeq++
	return service.InvalidationToken{Scope: "rules", Seq: s.nextSeq}
}

func (s *stubStore) CreatePattern(_ context.Context, p *model.Pattern) (service.InvalidationToken, error) {
	if p.ID == 0 {
		p.ID = int64(len(s.patterns) + 1)
	}
	s.patterns[p.ID] = p
	return s.token(), nil
}

func (s *stubStore) UpdatePattern(_ context.Context, p *model.Pattern) (service.InvalidationToken, error) {
	s.patterns[p.ID] = p
	return s.token(), nil
}

func (s *stubStore) DeactivatePattern(_ context.Context, id int64) (service.InvalidationToken, error) {
	if p, ok := s.patterns[id]; ok {
		p.Active = false
	}
	return s.token(), nil
}

func (s *stubStore) GetPattern(_ context.Context, id int64) (*model.Pattern, error) {
	p, ok := s.patterns[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) GetActivePatterns(_ context.Context) ([]model.Pattern, error) {
	s.loads++
	var out []model.Pattern
	for _, p := range s.patterns {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubStore) FindPattern(_ context.Context, categoryID int64, kind model.PatternKind, value string) (*model.Pattern, error) {
	for _, p := range s.patterns {
		if p.CategoryID == categoryID && p.Kind == kind && p.Value == value {
			return p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *stubStore) RecordPatternUsage(_ context.Context, id int64, wasSuccessful bool, _ *model.FeedbackEvent) (*model.Pattern, error) {
	p, ok := s.patterns[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	p.UsageCount++
	if wasSuccessful {
		p.SuccessCount++
	}
	p.SuccessRate = float64(p.SuccessCount) / float64(p.UsageCount)
	return p, nil
}

func (s *stubStore) CreateComposite(_ context.Context, c *model.CompositePattern) (service.InvalidationToken, error) {
	if c.ID == 0 {
		c.ID = int64(len(s.composites) + 1)
	}
	s.composites[c.ID] = c
	return s.token(), nil
}

func (s *stubStore) UpdateComposite(_ context.Context, c *model.CompositePattern) (service.InvalidationToken, error) {
	s.composites[c.ID] = c
	return s.token(), nil
}

func (s *stubStore) DeactivateComposite(_ context.Context, id int64) (service.InvalidationToken, error) {
	if c, ok := s.composites[id]; ok {
		c.Active = false
	}
	return s.token(), nil
}

func (s *stubStore) GetComposite(_ context.Context, id int64) (*model.CompositePattern, error) {
	c, ok := s.composites[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (s *stubStore) GetActiveComposites(_ context.Context) ([]model.CompositePattern, error) {
	var out []model.CompositePattern
	for _, c := range s.composites {
		if c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubStore) RecordCompositeUsage(_ context.Context, id int64, wasSuccessful bool, _ *model.FeedbackEvent) (*model.CompositePattern, error) {
	c, ok := s.composites[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c.UsageCount++
	if wasSuccessful {
		c.SuccessCount++
	}
	c.SuccessRate = float64(c.SuccessCount) / float64(c.UsageCount)
	return c, nil
}

func (s *stubStore) AppendFeedback(_ context.Context, _ *model.FeedbackEvent) error {
	return nil
}

func (s *stubStore) GetPreferences(_ context.Context, contextType model.PreferenceContext, contextValue string) ([]model.CategoryPreference, error) {
	return s.prefs[string(contextType)+":"+contextValue], nil
}

func (s *stubStore) RecordPreference(_ context.Context, contextType model.PreferenceContext, contextValue string, categoryID int64) error {
	s.recorded = append(s.recorded, string(contextType)+":"+contextValue)
	return nil
}

func (s *stubStore) SaveExpenses(_ context.Context, expenses []model.Expense) (int, error) {
	for i := range expenses {
		copied := expenses[i]
		s.expenses[copied.ID] = &copied
	}
	return len(expenses), nil
}

func (s *stubStore) GetExpense(_ context.Context, id string) (*model.Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return e, nil
}

func activePattern(id, categoryID int64, kind model.PatternKind, value string, weight float64) *model.Pattern {
	return &model.Pattern{
		ID: id, CategoryID: categoryID, Kind: kind, Value: value,
		ConfidenceWeight: weight, Active: true,
	}
}

func testEngine(store *stubStore) *Engine {
	return New(store, store, store, NewCache(), config.DefaultEngine())
}

func coffeeExpense() model.Expense {
	return model.Expense{
		ID:           "expense-1",
		MerchantName: "STARBUCKS #1234",
		Description:  "latte",
		Amount:       decimal.RequireFromString("5.75"),
		OccurredAt:   time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC),
	}
}

func TestClassifyRanksMatches(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 2.0)
	store.patterns[2] = activePattern(2, 20, model.KindKeyword, "latte", 1.0)
	store.patterns[3] = activePattern(3, 30, model.KindMerchant, "walmart", 3.0)

	suggestions, err := testEngine(store).Classify(context.Background(), coffeeExpense())
	require.NoError(t, err)

	require.Len(t, suggestions, 2, "only matching rules produce suggestions")
	assert.Equal(t, int64(10), suggestions[0].CategoryID, "heavier pattern ranks first")
	assert.Equal(t, int64(20), suggestions[1].CategoryID)
	assert.InDelta(t, 1.4, suggestions[0].Confidence, 1e-9, "young pattern scores weight * 0.7")
	assert.Equal(t, model.RulePattern, suggestions[0].RuleKind)
	assert.NotEmpty(t, suggestions[0].Reason)
}

func TestClassifyNoMatchesReturnsEmpty(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "walmart", 1.0)

	suggestions, err := testEngine(store).Classify(context.Background(), coffeeExpense())
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestClassifyIncludesComposites(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	store.patterns[2] = activePattern(2, 10, model.KindAmountRange, "1-20", 1.0)
	store.composites[1] = &model.CompositePattern{
		ID: 1, CategoryID: 10, Operator: model.OperatorAnd,
		PatternIDs: []int64{1, 2}, ConfidenceWeight: 1.5, Active: true,
	}

	suggestions, err := testEngine(store).Classify(context.Background(), coffeeExpense())
	require.NoError(t, err)

	kinds := make(map[model.RuleKind]int)
	for _, s := range suggestions {
		kinds[s.RuleKind]++
	}
	assert.Equal(t, 2, kinds[model.RulePattern])
	assert.Equal(t, 1, kinds[model.RuleComposite])
}

func TestClassifyUsesCacheUntilInvalidated(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	e := testEngine(store)
	ctx := context.Background()

	_, err := e.Classify(ctx, coffeeExpense())
	require.NoError(t, err)
	_, err = e.Classify(ctx, coffeeExpense())
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads, "repeat classifications serve from the cache")

	newPattern, err := model.NewPattern(20, model.KindKeyword, "latte", 1.0)
	require.NoError(t, err)
	require.NoError(t, e.CreatePattern(ctx, newPattern))

	suggestions, err := e.Classify(ctx, coffeeExpense())
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads, "a write invalidates the cache")
	assert.Len(t, suggestions, 2, "the new rule is visible immediately")
}

func TestDeactivationVisibleWithoutRestart(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	e := testEngine(store)
	ctx := context.Background()

	suggestions, err := e.Classify(ctx, coffeeExpense())
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	require.NoError(t, e.DeactivatePattern(ctx, 1))

	suggestions, err = e.Classify(ctx, coffeeExpense())
	require.NoError(t, err)
	assert.Empty(t, suggestions, "a deactivated rule never matches again")
}

func TestClassifyAppliesPreferenceBoost(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	store.patterns[2] = activePattern(2, 20, model.KindKeyword, "latte", 1.0)
	store.prefs["merchant:starbucks"] = []model.CategoryPreference{
		{ContextType: model.ContextMerchant, ContextValue: "starbucks", CategoryID: 20, PreferenceWeight: 2},
	}

	suggestions, err := testEngine(store).Classify(context.Background(), coffeeExpense())
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	// Both patterns score 0.7 alone; the preferred category wins the tie.
	assert.Equal(t, int64(20), suggestions[0].CategoryID)
	assert.InDelta(t, 0.8, suggestions[0].Confidence, 1e-9)
	assert.InDelta(t, 0.7, suggestions[1].Confidence, 1e-9)
}

func TestPreferenceBoostIsCapped(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	store.prefs["merchant:starbucks"] = []model.CategoryPreference{
		{ContextType: model.ContextMerchant, ContextValue: "starbucks", CategoryID: 10, PreferenceWeight: 50},
	}

	suggestions, err := testEngine(store).Classify(context.Background(), coffeeExpense())
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.InDelta(t, 0.7+config.DefaultEngine().PreferenceBoostCap, suggestions[0].Confidence, 1e-9)
}

func TestProcessFeedbackReinforcesPreferences(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	expense := coffeeExpense()
	_, err := store.SaveExpenses(context.Background(), []model.Expense{expense})
	require.NoError(t, err)

	e := testEngine(store)
	event := model.NewFeedbackEvent(expense.ID, 10, model.FeedbackAccepted)
	patternID := int64(1)
	event.PatternID = &patternID

	require.NoError(t, e.ProcessFeedback(context.Background(), event))
	assert.Equal(t, 1, store.patterns[1].UsageCount)
	assert.Contains(t, store.recorded, "merchant:starbucks")
	assert.Contains(t, store.recorded, "time_of_day:morning")
	assert.Contains(t, store.recorded, "day_of_week:monday")
	assert.Contains(t, store.recorded, "amount_range:under_10")
}

func TestRejectionDoesNotReinforcePreferences(t *testing.T) {
	store := newStubStore()
	store.patterns[1] = activePattern(1, 10, model.KindMerchant, "starbucks", 1.0)
	expense := coffeeExpense()
	_, err := store.SaveExpenses(context.Background(), []model.Expense{expense})
	require.NoError(t, err)

	e := testEngine(store)
	event := model.NewFeedbackEvent(expense.ID, 10, model.FeedbackRejected)
	patternID := int64(1)
	event.PatternID = &patternID

	require.NoError(t, e.ProcessFeedback(context.Background(), event))
	assert.Empty(t, store.recorded)
}
