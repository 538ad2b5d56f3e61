package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

var (
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"})

	paragraphStyle = lipgloss.NewStyle().Margin(1, 0, 0, 0)
)

func keyword(s string) string {
	return keywordStyle.Render(s)
}

// paragraph formats help text: wrapped, indented, with a leading blank
// line.
func paragraph(s string) string {
	return paragraphStyle.Render(indent.String(wordwrap.String(s, 78), 2))
}
