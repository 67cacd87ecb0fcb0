package selection

import "github.com/joshsymonds/pocforge/internal/models"

// SeverityStrategy processes every finding, most severe first.
type SeverityStrategy struct{}

// NewSeverityStrategy creates a new severity strategy.
func NewSeverityStrategy() *SeverityStrategy {
	return &SeverityStrategy{}
}

// Name returns the strategy name.
func (s *SeverityStrategy) Name() string {
	return "severity"
}

// Description returns a human-readable description.
func (s *SeverityStrategy) Description() string {
	return "All findings ordered from critical to info"
}

// Select implements Strategy.
func (s *SeverityStrategy) Select(findings []models.Finding) []models.Finding {
	return bySeverity(findings)
}

func init() {
	DefaultRegistry.Register("severity", func() Strategy {
		return NewSeverityStrategy()
	})
}
