// Package models contains data structures for pocforge findings and PoC artifacts.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Finding is a single vulnerability reported by the audit pipeline.
type Finding struct {
	Location    Location `json:"location" yaml:"location"`
	ID          string   `json:"id" yaml:"id"`
	ClassName   string   `json:"class_name" yaml:"class_name"`
	Title       string   `json:"title" yaml:"title"`
	Severity    string   `json:"severity" yaml:"severity"`
	Description string   `json:"description" yaml:"description"`
	Impact      string   `json:"impact,omitempty" yaml:"impact,omitempty"`
	ClassID     int      `json:"class_id" yaml:"class_id"`
	Confidence  float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Location points at the vulnerable code.
type Location struct {
	File        string `json:"file" yaml:"file"`
	Instruction string `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Line        int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// GenerateFindingID creates a stable, deterministic ID for a finding.
func GenerateFindingID(classID int, file string, line int) string {
	core := fmt.Sprintf("%d:%s:%d", classID, file, line)
	hash := sha256.Sum256([]byte(core))
	return hex.EncodeToString(hash[:8])
}

// IsValid checks if a finding has all required fields.
func (f *Finding) IsValid() error {
	if f.ClassID < 0 {
		return fmt.Errorf("finding has negative class_id: %d", f.ClassID)
	}
	if f.ClassName == "" {
		return fmt.Errorf("finding missing required field: class_name")
	}
	if f.Title == "" {
		return fmt.Errorf("finding missing required field: title")
	}
	if f.Severity == "" {
		return fmt.Errorf("finding missing required field: severity")
	}
	return nil
}

// SafeName turns the class name into an identifier usable in test function names.
func (f *Finding) SafeName() string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(f.ClassName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && sb.Len() > 0:
			sb.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

// NormalizeSeverity ensures severity values are consistent.
func NormalizeSeverity(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical", "very-high", "very high", "veryhigh":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low":
		return SeverityLow
	case "info", "informational", "negligible":
		return SeverityInfo
	default:
		return SeverityUnknown
	}
}
