package model

import "time"

// CanonicalMerchant is the deduplicated identity behind the many raw text
// variants a merchant appears under.
type CanonicalMerchant struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string
	DisplayName  string
	CategoryHint string
	ID           int64
	UsageCount   int
}

// MergeFrom folds another canonical merchant into this one: counts are
// summed and missing metadata is taken from the source. Alias reassignment
// happens at the storage layer.
func (m *CanonicalMerchant) MergeFrom(other *CanonicalMerchant) {
	m.UsageCount += other.UsageCount
	if m.DisplayName == "" {
		m.DisplayName = other.DisplayName
	}
	if m.CategoryHint == "" {
		m.CategoryHint = other.CategoryHint
	}
}

// Alias confidence ceiling and the match volume past which confidence
// climbs toward it.
const (
	AliasConfidenceCeiling = 0.95
	AliasGrowthThreshold   = 10
	aliasGrowthStep        = 0.02
)

// MerchantAlias maps one raw merchant string to a canonical merchant.
type MerchantAlias struct {
	LastSeenAt          time.Time
	CreatedAt           time.Time
	RawName             string
	NormalizedName      string
	ID                  int64
	CanonicalMerchantID int64
	Confidence          float64
	MatchCount          int
}

// RecordMatch notes another sighting of the raw name. Once the alias has
// been seen more than AliasGrowthThreshold times its confidence climbs
// toward the ceiling.
func (a *MerchantAlias) RecordMatch(now time.Time) {
	a.MatchCount++
	a.LastSeenAt = now
	if a.MatchCount > AliasGrowthThreshold && a.Confidence < AliasConfidenceCeiling {
		a.Confidence += aliasGrowthStep
		if a.Confidence > AliasConfidenceCeiling {
			a.Confidence = AliasConfidenceCeiling
		}
	}
}

// MergeWith combines a duplicate alias of the same canonical merchant:
// match counts are summed and the higher confidence wins.
func (a *MerchantAlias) MergeWith(other *MerchantAlias) {
	a.MatchCount += other.MatchCount
	if other.Confidence > a.Confidence {
		a.Confidence = other.Confidence
	}
	if other.LastSeenAt.After(a.LastSeenAt) {
		a.LastSeenAt = other.LastSeenAt
	}
}
