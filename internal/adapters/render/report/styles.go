package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	label      lipgloss.Style
	value      lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	ok         lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	id         lipgloss.Style
	date       lipgloss.Style
	kind       lipgloss.Style
	tokens     lipgloss.Style
	barBracket lipgloss.Style
	barEmpty   lipgloss.Style
	normal     lipgloss.Style
	active     lipgloss.Style
	emergency  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		label:      lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		value:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		ok:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		id:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		date:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		kind:       lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		tokens:     lipgloss.NewStyle().Faint(true),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		normal:     lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		active:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		emergency:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}
