package selection

import "github.com/joshsymonds/pocforge/internal/models"

// CriticalOnlyStrategy only generates PoCs for critical findings.
type CriticalOnlyStrategy struct{}

// NewCriticalOnlyStrategy creates a new critical-only strategy.
func NewCriticalOnlyStrategy() *CriticalOnlyStrategy {
	return &CriticalOnlyStrategy{}
}

// Name returns the strategy name.
func (s *CriticalOnlyStrategy) Name() string {
	return "critical-only"
}

// Description returns a human-readable description.
func (s *CriticalOnlyStrategy) Description() string {
	return "Only critical severity findings, to minimize provider calls"
}

// Select implements Strategy.
func (s *CriticalOnlyStrategy) Select(findings []models.Finding) []models.Finding {
	return filterSeverity(findings, models.SeverityCritical)
}

func init() {
	DefaultRegistry.Register("critical-only", func() Strategy {
		return NewCriticalOnlyStrategy()
	})
}
