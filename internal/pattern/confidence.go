package pattern

import (
	"github.com/ledgersmith/coinsort/internal/model"
)

// DefaultEvidenceGate is the usage count below which a rule's success rate
// is not yet trusted.
const DefaultEvidenceGate = 5

// ConfidenceModel blends a rule's static weight with its track record.
type ConfidenceModel struct {
	EvidenceGate int
}

// NewConfidenceModel creates a confidence model. A non-positive gate falls
// back to the default.
func NewConfidenceModel(evidenceGate int) *ConfidenceModel {
	if evidenceGate <= 0 {
		evidenceGate = DefaultEvidenceGate
	}
	return &ConfidenceModel{EvidenceGate: evidenceGate}
}

// Confidence computes the effective confidence of a base pattern. Rules with
// little evidence are penalized rather than trusted at full weight.
func (m *ConfidenceModel) Confidence(p *model.Pattern) float64 {
	if p == nil {
		return 0
	}
	if p.UsageCount >= m.EvidenceGate {
		return p.ConfidenceWeight * (0.5 + 0.5*p.SuccessRate)
	}
	return p.ConfidenceWeight * 0.7
}

// CompositeConfidence computes the effective confidence of a composite. The
// mean confidence of its components is blended into the composite's own
// weight before its own track record is applied, so composites built from
// reliable patterns start stronger but still earn their own history.
func (m *ConfidenceModel) CompositeConfidence(c *model.CompositePattern, components []*model.Pattern) float64 {
	if c == nil || len(components) == 0 {
		return 0
	}

	var sum float64
	for _, p := range components {
		sum += m.Confidence(p)
	}
	mean := sum / float64(len(components))

	adjusted := c.ConfidenceWeight * (0.7 + 0.3*mean)
	if c.UsageCount >= m.EvidenceGate {
		return adjusted * (0.5 + 0.5*c.SuccessRate)
	}
	return adjusted * 0.8
}
