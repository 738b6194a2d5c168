package ui

import "github.com/charmbracelet/lipgloss"

// Log line colors: normal/OK, red/error, yellow/warning, green/stage
// transition.
var (
	titleStyle        = lipgloss.NewStyle().Bold(true)
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	versionBadgeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	normalStyle = lipgloss.NewStyle()
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
)
