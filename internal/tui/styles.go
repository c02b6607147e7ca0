package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = "#7C3AED"
	colorMuted  = "#6B7280"
	colorText   = "#E5E7EB"
	colorError  = "#EF4444"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorAccent))

	authorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorAccent))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorText)).
			PaddingLeft(2)

	noticeStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color(colorMuted))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))
)
