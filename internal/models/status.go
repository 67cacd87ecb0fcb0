package models

import "time"

// PoC artifact status values.
const (
	PoCStatusGenerated = "generated"
	PoCStatusFallback  = "fallback"
)

// PoC is the proof-of-concept artifact produced for one finding.
type PoC struct {
	GeneratedAt time.Time `json:"generated_at"`
	FindingID   string    `json:"finding_id"`
	ClassName   string    `json:"class_name"`
	Title       string    `json:"title"`
	Identifier  string    `json:"identifier"`
	Status      string    `json:"status"`
	Language    string    `json:"language"`
	TestCode    string    `json:"test_code"`
	RunCommand  string    `json:"run_command"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Error       string    `json:"error,omitempty"`
	ClassID     int       `json:"class_id"`
	Duration    string    `json:"duration,omitempty"`
}

// IsGenerated reports whether the test code came from the LLM.
func (p *PoC) IsGenerated() bool {
	return p.Status == PoCStatusGenerated
}

// SetDuration records how long generation took, rounded for display.
func (p *PoC) SetDuration(d time.Duration) {
	p.Duration = d.Round(time.Millisecond).String()
}
