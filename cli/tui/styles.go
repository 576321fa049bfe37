// Package tui provides Bubble Tea components for the prism CLI.
//
// TUI mode is opt-in via --tui, read-only, and renders the same payloads
// as the non-TUI formats.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for complete sessions.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for partial sessions.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for badly degraded sessions.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// ProgressStyle picks a style for a received/total ratio.
func ProgressStyle(received, total int) lipgloss.Style {
	if total <= 0 {
		return ValueStyle
	}
	switch {
	case received == total:
		return SuccessStyle
	case received*2 >= total:
		return WarningStyle
	default:
		return ErrorStyle
	}
}
