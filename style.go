package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"
)

var (
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"})
	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFB86C", Dark: "#FFB86C"})
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ED567A"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// keyword colorizes a word for emphasis in help text and banners.
func keyword(s string) string {
	return keywordStyle.Render(s)
}

func subtle(s string) string {
	return subtleStyle.Render(s)
}

// paragraph wraps and indents a block of help text to a readable
// width.
func paragraph(s string) string {
	w := terminalWidth() - 4
	if w > 76 {
		w = 76
	}
	return indent.String(wordwrap.String(s, w), 2)
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
