// Package selection decides which findings get a PoC and in what order.
package selection

import (
	"sort"

	"github.com/joshsymonds/pocforge/internal/models"
)

// Strategy orders and filters findings before dispatch.
type Strategy interface {
	// Select returns the findings to process, highest priority first.
	Select(findings []models.Finding) []models.Finding

	// Name returns the strategy name
	Name() string

	// Description returns a human-readable description
	Description() string
}

// Apply runs the strategy and truncates the result to maxItems.
// A negative maxItems means no limit.
func Apply(s Strategy, findings []models.Finding, maxItems int) []models.Finding {
	selected := s.Select(findings)
	if maxItems >= 0 && len(selected) > maxItems {
		selected = selected[:maxItems]
	}
	return selected
}

// StrategyRegistry manages available selection strategies.
type StrategyRegistry struct {
	strategies map[string]func() Strategy
}

// NewStrategyRegistry creates a new strategy registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		strategies: make(map[string]func() Strategy),
	}
}

// Register registers a new strategy.
func (r *StrategyRegistry) Register(name string, factory func() Strategy) {
	r.strategies[name] = factory
}

// Get returns a strategy by name.
func (r *StrategyRegistry) Get(name string) (Strategy, error) {
	factory, ok := r.strategies[name]
	if !ok {
		return nil, &StrategyNotFoundError{Name: name}
	}
	return factory(), nil
}

// Names lists registered strategies in sorted order.
func (r *StrategyRegistry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StrategyNotFoundError is returned when a requested strategy doesn't exist.
type StrategyNotFoundError struct {
	Name string
}

func (e *StrategyNotFoundError) Error() string {
	return "selection strategy not found: " + e.Name
}

// DefaultRegistry is the global strategy registry.
var DefaultRegistry = NewStrategyRegistry()

// bySeverity returns a copy of findings sorted most severe first, keeping
// input order among equals.
func bySeverity(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return models.SeverityRank(out[i].Severity) > models.SeverityRank(out[j].Severity)
	})
	return out
}

func filterSeverity(findings []models.Finding, keep ...string) []models.Finding {
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		sev := models.NormalizeSeverity(f.Severity)
		for _, k := range keep {
			if sev == k {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
