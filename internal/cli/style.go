package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
	dim     = lipgloss.Color("#6B7280")
	accent  = lipgloss.Color("#D97706")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	passStyle  = lipgloss.NewStyle().Foreground(success)
	failStyle  = lipgloss.NewStyle().Foreground(danger)
	warnStyle  = lipgloss.NewStyle().Foreground(warning)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
)

// mark renders the status glyph and word for a pass/fail/skip style status.
func mark(status string) string {
	switch status {
	case "pass", "ok":
		return passStyle.Render("✓ " + status)
	case "fail", "tampered", "error":
		return failStyle.Render("✗ " + status)
	default:
		return warnStyle.Render("- " + status)
	}
}
