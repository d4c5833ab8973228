package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View draws the full UI (header, canvas or preview pane, input, status).
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	layout := m.calculateLayout()
	parts := []string{m.renderHeader(m.width), m.renderPane(layout)}
	if layout.InputRows > 0 {
		parts = append(parts, truncate(m.input.View(), m.width))
	}
	parts = append(parts, m.renderStatus(m.width, layout.FooterRows))
	return padBlock(strings.Join(parts, "\n"), m.width, m.height)
}

func (m *Model) paneStyle() lipgloss.Style {
	if m.mode == modePreview {
		return previewPane
	}
	return canvasPane
}

// renderHeader shows the page position, title and musical header.
func (m *Model) renderHeader(width int) string {
	page := m.sess.ActivePage()
	header := fmt.Sprintf("Page %d/%d  %s  %s %s ♩=%d  [%s]",
		m.sess.Active()+1, m.sess.PageCount(), page.Title,
		page.Meta.TimeSignature, page.Meta.Key, page.Meta.Tempo, m.sess.Mode())
	line := titleStyle.Render(header)
	if m.sess.Dirty() {
		line += " " + dirtyStyle.Render("●")
	}
	return truncate(line, width)
}

func (m *Model) renderPane(layout LayoutDimensions) string {
	var content string
	switch {
	case m.mode == modePreview:
		content = m.viewport.View()
	case m.showHelp:
		content = m.renderHelp()
	default:
		content = drawPage(m.sess.Layout(), m.sess.Snapshot().Content, m.sess.Cursor(), true)
	}
	content = padBlock(content, layout.ViewportWidth, layout.ViewportHeight)
	return m.paneStyle().Render(content)
}

// renderHelp lists every bound action. Undo and redo are dimmed while
// unavailable.
func (m *Model) renderHelp() string {
	lines := []string{titleStyle.Render("Keys"), ""}
	for _, action := range actionOrder {
		b, ok := m.bindings[action]
		if !ok {
			continue
		}
		switch action {
		case actionUndo:
			b.SetEnabled(m.sess.CanUndo())
		case actionRedo:
			b.SetEnabled(m.sess.CanRedo())
		}
		line := fmt.Sprintf("%-24s %s", b.Help().Key, b.Help().Desc)
		if !b.Enabled() {
			line = mutedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines,
		"",
		fmt.Sprintf("%-24s %s", "letters", "place symbol at cursor"),
		fmt.Sprintf("%-24s %s", "mouse click / drag", "apply the active tool"),
	)
	return strings.Join(lines, "\n")
}
