package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/ledgersmith/coinsort/internal/config"
	"github.com/ledgersmith/coinsort/internal/engine"
	"github.com/ledgersmith/coinsort/internal/merchant"
	"github.com/ledgersmith/coinsort/internal/service"
	"github.com/ledgersmith/coinsort/internal/storage"
)

// initStorage opens the database, applies pending migrations, and returns the
// loaded engine thresholds alongside it.
func initStorage(ctx context.Context) (service.Storage, config.Engine, error) {
	cfg, err := config.LoadEngine()
	if err != nil {
		return nil, config.Engine{}, fmt.Errorf("failed to load engine config: %w", err)
	}

	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/coinsort/coinsort.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath, cfg)
	if err != nil {
		return nil, config.Engine{}, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, config.Engine{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// newEngine wires the classification engine over an open store.
func newEngine(store service.Storage, cfg config.Engine) *engine.Engine {
	return engine.New(store, store, store, engine.NewCache(), cfg)
}

// newCanonicalizer wires the merchant canonicalizer over an open store.
func newCanonicalizer(store service.Storage, cfg config.Engine) *merchant.Canonicalizer {
	return merchant.NewCanonicalizer(store, merchant.NewScorer(),
		cfg.MerchantSimilarityThreshold, cfg.AliasSimilarityThreshold)
}
