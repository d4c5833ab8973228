package app

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

var (
	paneStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	canvasPane        = paneStyle.Copy().BorderForeground(lipgloss.Color("204"))
	previewPane       = paneStyle.Copy().BorderForeground(lipgloss.Color("62"))
	titleStyle        = lipgloss.NewStyle().Bold(true)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	inputStatus       = lipgloss.NewStyle().Foreground(lipgloss.Color("211"))
	mutedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	staffStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	noteStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	flippedStyle      = noteStyle.Copy().Underline(true)
	textStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	articulationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	lyricStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("150")).Italic(true)
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Blink(true)
	dirtyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func styleForCell(kind cellKind, mark string) lipgloss.Style {
	var style lipgloss.Style
	switch kind {
	case cellNote:
		style = noteStyle
	case cellFlipped:
		style = flippedStyle
	case cellText:
		style = textStyle
	case cellArticulation:
		style = articulationStyle
	case cellLyric:
		style = lyricStyle
	case cellCursor:
		style = cursorStyle
	default:
		style = staffStyle
	}
	if mark != "" {
		style = style.Copy().Background(lipgloss.Color(mark)).Foreground(lipgloss.Color("16"))
	}
	return style
}

func applyInputTheme(input *textinput.Model) {
	input.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	input.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	input.PlaceholderStyle = mutedStyle
	input.Prompt = "│ "
}
