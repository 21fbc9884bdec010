package tui

import "github.com/charmbracelet/lipgloss"

var (
	dimColor    = lipgloss.Color("7")
	accentColor = lipgloss.Color("12")
	userColor   = lipgloss.Color("10")
	errorColor  = lipgloss.Color("9")

	titleStyle       = lipgloss.NewStyle().Bold(true)
	descriptionStyle = lipgloss.NewStyle().Foreground(dimColor)
	userStyle        = lipgloss.NewStyle().Foreground(userColor).Bold(true)
	assistantStyle   = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(errorColor)
	helpStyle        = lipgloss.NewStyle().Foreground(dimColor)
)
