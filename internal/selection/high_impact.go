package selection

import "github.com/joshsymonds/pocforge/internal/models"

// HighImpactStrategy keeps critical and high findings, critical first.
type HighImpactStrategy struct{}

// NewHighImpactStrategy creates a new high-impact strategy.
func NewHighImpactStrategy() *HighImpactStrategy {
	return &HighImpactStrategy{}
}

// Name returns the strategy name.
func (s *HighImpactStrategy) Name() string {
	return "high-impact"
}

// Description returns a human-readable description.
func (s *HighImpactStrategy) Description() string {
	return "Critical and high severity findings, most severe first"
}

// Select implements Strategy.
func (s *HighImpactStrategy) Select(findings []models.Finding) []models.Finding {
	return bySeverity(filterSeverity(findings, models.SeverityCritical, models.SeverityHigh))
}

func init() {
	DefaultRegistry.Register("high-impact", func() Strategy {
		return NewHighImpactStrategy()
	})
}
