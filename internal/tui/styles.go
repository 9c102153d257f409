package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accentColor = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#7D56F4"}
	textColor   = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#FAFAFA"}
	mutedColor  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"}
	greenColor  = lipgloss.AdaptiveColor{Light: "#2E8B57", Dark: "#96CEB4"}
	redColor    = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
	yellowColor = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFEAA7"}
	focusColor  = lipgloss.Color("#04B575")
)

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(accentColor).
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(focusColor).
			Bold(true)

	DisabledStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(greenColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(redColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(yellowColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// ApplyTheme picks light or dark colours. "default" asks the terminal.
func ApplyTheme(theme string) {
	switch theme {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	default:
		lipgloss.SetHasDarkBackground(termenv.HasDarkBackground())
	}
}
