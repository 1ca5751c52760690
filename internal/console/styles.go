package console

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Header    lipgloss.Style
	Teacher   lipgloss.Style
	Classmate lipgloss.Style
	Student   lipgloss.Style
	Board     lipgloss.Style
	Question  lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Teacher:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		Classmate: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F2A03D")),
		Student:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3C9EE7")),
		Board:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Question:  lipgloss.NewStyle().Bold(true),
		Muted:     lipgloss.NewStyle().Faint(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#E84855")),
	}
}
