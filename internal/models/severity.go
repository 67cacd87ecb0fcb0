package models

// Severity levels as constants for type safety and consistency.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
	SeverityUnknown  = "unknown"
)

// ValidSeverities returns all valid severity levels for validation.
func ValidSeverities() []string {
	return []string{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
		SeverityUnknown,
	}
}

// SeverityRank orders severities; higher is more urgent.
func SeverityRank(severity string) int {
	switch NormalizeSeverity(severity) {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 75
	case SeverityMedium:
		return 50
	case SeverityLow:
		return 25
	case SeverityInfo:
		return 10
	default:
		return 0
	}
}
