package models

import "strings"

// EnrichedFinding carries the LLM analysis produced for a finding earlier in the pipeline.
type EnrichedFinding struct {
	Title           string   `json:"title" yaml:"title"`
	ExploitScenario string   `json:"exploit_scenario,omitempty" yaml:"exploit_scenario,omitempty"`
	Impact          string   `json:"impact,omitempty" yaml:"impact,omitempty"`
	Preconditions   []string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	AttackSteps     []string `json:"attack_steps,omitempty" yaml:"attack_steps,omitempty"`
}

// Patch is a proposed fix for a single file.
type Patch struct {
	File        string `json:"file" yaml:"file"`
	Diff        string `json:"diff" yaml:"diff"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// MatchEnrichment returns the first enrichment whose title equals the finding
// title or contains its class name. A nil result is not an error.
func MatchEnrichment(f Finding, enrichments []EnrichedFinding) *EnrichedFinding {
	for i := range enrichments {
		e := &enrichments[i]
		if e.Title == f.Title || (f.ClassName != "" && strings.Contains(e.Title, f.ClassName)) {
			return e
		}
	}
	return nil
}

// MatchPatch returns the first patch touching the finding's file.
func MatchPatch(f Finding, patches []Patch) *Patch {
	if f.Location.File == "" {
		return nil
	}
	for i := range patches {
		if patches[i].File == f.Location.File {
			return &patches[i]
		}
	}
	return nil
}
