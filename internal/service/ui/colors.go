package ui

import "github.com/charmbracelet/lipgloss"

// Basic ANSI colors so the help output follows the terminal theme.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle is dimmed so descriptions read below command names.
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// Verdict colors for admin command output.
	OkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)
