package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/internal/pocgen"
)

func TestRenderSummary(t *testing.T) {
	result := &pocgen.Result{
		Program:       "vault",
		Provider:      "moonshot",
		Model:         "kimi-k2.5",
		Strategy:      "severity",
		TotalFindings: 5,
		Selected:      2,
		Generated:     1,
		Fallback:      1,
		PoCs: []models.PoC{
			{Identifier: "PoC#4", ClassName: "Missing Signer Check", Status: models.PoCStatusGenerated},
			{Identifier: "PoC#9", ClassName: "Integer Overflow", Status: models.PoCStatusFallback, Error: "cancelled"},
		},
	}

	out := RenderSummary(result, "/tmp/runs/x")

	assert.Contains(t, out, "PoC Generation Summary")
	assert.Contains(t, out, "vault")
	assert.Contains(t, out, "5 total, 2 selected")
	assert.Contains(t, out, "Missing Signer Check")
	assert.Contains(t, out, "(cancelled)")
	assert.Contains(t, out, "Results saved to: /tmp/runs/x")
}

func TestRenderSummaryWithoutPoCs(t *testing.T) {
	out := RenderSummary(&pocgen.Result{Program: "swap"}, "")

	assert.Contains(t, out, "swap")
	assert.NotContains(t, out, "Results saved to")
}

func TestStatusStyle(t *testing.T) {
	tests := []struct {
		status string
		color  any
	}{
		{models.PoCStatusGenerated, GeneratedColor},
		{models.PoCStatusFallback, FallbackColor},
		{"other", MutedColor},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.color, StatusStyle(tt.status).GetForeground())
		})
	}
}
