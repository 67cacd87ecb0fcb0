package selection

import "github.com/joshsymonds/pocforge/internal/models"

// AllStrategy keeps every finding in input order.
type AllStrategy struct{}

// NewAllStrategy creates a new all strategy.
func NewAllStrategy() *AllStrategy {
	return &AllStrategy{}
}

// Name returns the strategy name.
func (s *AllStrategy) Name() string {
	return "all"
}

// Description returns a human-readable description.
func (s *AllStrategy) Description() string {
	return "Every finding in input order"
}

// Select implements Strategy.
func (s *AllStrategy) Select(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, len(findings))
	copy(out, findings)
	return out
}

func init() {
	DefaultRegistry.Register("all", func() Strategy {
		return NewAllStrategy()
	})
}
