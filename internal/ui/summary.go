// Package ui renders terminal summaries of generation runs.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/internal/pocgen"
)

// Style definitions.
var (
	GeneratedColor = lipgloss.Color("#00AF5F")
	FallbackColor  = lipgloss.Color("#FFA500")
	MutedColor     = lipgloss.Color("240")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().Bold(true).Width(12)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)
)

// StatusStyle returns the badge style for a PoC status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case models.PoCStatusGenerated:
		return base.Foreground(GeneratedColor)
	case models.PoCStatusFallback:
		return base.Foreground(FallbackColor)
	default:
		return base.Foreground(MutedColor)
	}
}

// RenderSummary renders the outcome of a run. runDir may be empty when the
// results were not saved.
func RenderSummary(result *pocgen.Result, runDir string) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("PoC Generation Summary"))
	sb.WriteString("\n")

	rows := [][2]string{
		{"Program", result.Program},
		{"Provider", fmt.Sprintf("%s (%s)", result.Provider, result.Model)},
		{"Strategy", result.Strategy},
		{"Findings", fmt.Sprintf("%d total, %d selected", result.TotalFindings, result.Selected)},
		{"Generated", fmt.Sprintf("%d", result.Generated)},
		{"Fallback", fmt.Sprintf("%d", result.Fallback)},
	}
	for _, row := range rows {
		sb.WriteString(labelStyle.Render(row[0]))
		sb.WriteString(infoStyle.Render(row[1]))
		sb.WriteString("\n")
	}

	if len(result.PoCs) > 0 {
		var lines []string
		for _, poc := range result.PoCs {
			line := fmt.Sprintf("%-9s %s %s", poc.Identifier, StatusStyle(poc.Status).Render(poc.Status), poc.ClassName)
			if poc.Error != "" {
				line += " " + lipgloss.NewStyle().Foreground(MutedColor).Render("("+poc.Error+")")
			}
			lines = append(lines, line)
		}
		sb.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		sb.WriteString("\n")
	}

	if runDir != "" {
		sb.WriteString(fmt.Sprintf("\nResults saved to: %s\n", runDir))
	}
	return sb.String()
}
