package explorer

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#06B6D4")
	colorAccent  = lipgloss.Color("#F59E0B")
	colorGood    = lipgloss.Color("#10B981")
	colorBad     = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#F8FAFC")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginBottom(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorGood)

	itemStyle = lipgloss.NewStyle().
			Foreground(colorText)

	goodStyle = lipgloss.NewStyle().
			Foreground(colorGood)

	badStyle = lipgloss.NewStyle().
			Foreground(colorBad)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorBad).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)
)
