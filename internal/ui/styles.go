package ui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00E5FF")
	magenta = lipgloss.Color("#FF1B6B")
	yellow  = lipgloss.Color("#FFB500")
	green   = lipgloss.Color("#2AFFAA")
	red     = lipgloss.Color("#FF5555")
	blue    = lipgloss.Color("#3B82F6")

	base03 = lipgloss.Color("#1B1D23")
	base01 = lipgloss.Color("#6C7280")
	base2  = lipgloss.Color("#ECEFF4")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(0, 2).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(base01).
			Padding(0, 1)

	mutedStyle    = lipgloss.NewStyle().Foreground(base01)
	goodStyle     = lipgloss.NewStyle().Foreground(green).Bold(true)
	badStyle      = lipgloss.NewStyle().Foreground(red).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(yellow).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(blue)
	noticeStyle   = lipgloss.NewStyle().Foreground(magenta)
	tableHeader   = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	tableSelected = lipgloss.NewStyle().Foreground(base03).Background(cyan)
	textStyle     = lipgloss.NewStyle().Foreground(base2)
)

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "ERROR", "DPANIC", "PANIC", "FATAL":
		return badStyle
	case "WARN":
		return warnStyle
	case "DEBUG":
		return mutedStyle
	default:
		return infoStyle
	}
}
