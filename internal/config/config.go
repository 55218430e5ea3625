// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Engine holds the tunable thresholds of the categorization engine. The
// defaults come from observed behavior rather than derivation, so every one
// of them is overridable from the config file or environment.
type Engine struct {
	// MerchantSimilarityThreshold is the minimum trigram similarity for a
	// raw merchant name to join an existing canonical merchant.
	MerchantSimilarityThreshold float64
	// AliasSimilarityThreshold is the minimum edit-distance similarity for
	// a raw name to reuse an existing alias's canonical merchant.
	AliasSimilarityThreshold float64
	// DeactivationMinUsage and DeactivationMaxSuccessRate trigger the
	// poor-performance deactivation of non-user-created rules.
	DeactivationMinUsage       int
	DeactivationMaxSuccessRate float64
	// EvidenceGate is the usage count below which success rates are not
	// trusted when computing effective confidence.
	EvidenceGate int
	// PreferenceBoostCap bounds the total contextual-preference boost
	// blended into a suggestion's confidence.
	PreferenceBoostCap float64
	// PreferenceWeightThreshold is how many usages of a preference context
	// it takes before its weight increments.
	PreferenceWeightThreshold int
}

// DefaultEngine returns the engine thresholds used when nothing is
// configured.
func DefaultEngine() Engine {
	return Engine{
		MerchantSimilarityThreshold: 0.6,
		AliasSimilarityThreshold:    0.5,
		DeactivationMinUsage:        20,
		DeactivationMaxSuccessRate:  0.3,
		EvidenceGate:                5,
		PreferenceBoostCap:          0.25,
		PreferenceWeightThreshold:   5,
	}
}

// LoadEngine reads the engine thresholds from viper, falling back to the
// defaults for unset keys.
func LoadEngine() (Engine, error) {
	cfg := DefaultEngine()

	if viper.IsSet("engine.merchant_similarity_threshold") {
		cfg.MerchantSimilarityThreshold = viper.GetFloat64("engine.merchant_similarity_threshold")
	}
	if viper.IsSet("engine.alias_similarity_threshold") {
		cfg.AliasSimilarityThreshold = viper.GetFloat64("engine.alias_similarity_threshold")
	}
	if viper.IsSet("engine.deactivation_min_usage") {
		cfg.DeactivationMinUsage = viper.GetInt("engine.deactivation_min_usage")
	}
	if viper.IsSet("engine.deactivation_max_success_rate") {
		cfg.DeactivationMaxSuccessRate = viper.GetFloat64("engine.deactivation_max_success_rate")
	}
	if viper.IsSet("engine.evidence_gate") {
		cfg.EvidenceGate = viper.GetInt("engine.evidence_gate")
	}
	if viper.IsSet("engine.preference_boost_cap") {
		cfg.PreferenceBoostCap = viper.GetFloat64("engine.preference_boost_cap")
	}
	if viper.IsSet("engine.preference_weight_threshold") {
		cfg.PreferenceWeightThreshold = viper.GetInt("engine.preference_weight_threshold")
	}

	return cfg, cfg.Validate()
}

// Validate rejects threshold combinations that would break the engine.
func (e Engine) Validate() error {
	if e.MerchantSimilarityThreshold <= 0 || e.MerchantSimilarityThreshold > 1 {
		return fmt.Errorf("merchant similarity threshold must be in (0, 1], got %v", e.MerchantSimilarityThreshold)
	}
	if e.AliasSimilarityThreshold <= 0 || e.AliasSimilarityThreshold > 1 {
		return fmt.Errorf("alias similarity threshold must be in (0, 1], got %v", e.AliasSimilarityThreshold)
	}
	if e.DeactivationMinUsage < 1 {
		return fmt.Errorf("deactivation minimum usage must be at least 1, got %d", e.DeactivationMinUsage)
	}
	if e.DeactivationMaxSuccessRate < 0 || e.DeactivationMaxSuccessRate > 1 {
		return fmt.Errorf("deactivation success rate must be in [0, 1], got %v", e.DeactivationMaxSuccessRate)
	}
	if e.EvidenceGate < 1 {
		return fmt.Errorf("evidence gate must be at least 1, got %d", e.EvidenceGate)
	}
	if e.PreferenceBoostCap < 0 {
		return fmt.Errorf("preference boost cap cannot be negative, got %v", e.PreferenceBoostCap)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
