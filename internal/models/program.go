package models

import "strings"

// Framework identifiers for audited programs.
const (
	FrameworkAnchor = "anchor"
	FrameworkNative = "native"
)

// Program describes the audited on-chain program the PoCs target.
type Program struct {
	Name      string   `json:"name" yaml:"name"`
	Framework string   `json:"framework" yaml:"framework"`
	ProgramID string   `json:"program_id,omitempty" yaml:"program_id,omitempty"`
	Repo      string   `json:"repo,omitempty" yaml:"repo,omitempty"`
	Files     []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// IsAnchor reports whether the program is built with the Anchor framework.
func (p Program) IsAnchor() bool {
	return strings.EqualFold(p.Framework, FrameworkAnchor)
}

// WorkItem is one finding plus its optional context, ready for PoC generation.
type WorkItem struct {
	Enrichment *EnrichedFinding `json:"enrichment,omitempty"`
	Patch      *Patch           `json:"patch,omitempty"`
	Finding    Finding          `json:"finding"`
	Index      int              `json:"index"`
}

// BuildWorkItems pairs each finding with its first matching enrichment and patch.
func BuildWorkItems(findings []Finding, enrichments []EnrichedFinding, patches []Patch) []WorkItem {
	items := make([]WorkItem, len(findings))
	for i, f := range findings {
		items[i] = WorkItem{
			Index:      i,
			Finding:    f,
			Enrichment: MatchEnrichment(f, enrichments),
			Patch:      MatchPatch(f, patches),
		}
	}
	return items
}
