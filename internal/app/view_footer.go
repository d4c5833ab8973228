package app

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

func (m *Model) renderStatus(width, rows int) string {
	statusRows, _ := m.buildStatusRows(width, rows)
	style := statusStyle
	if m.mode == modeInput {
		style = inputStatus
	}
	for len(statusRows) < rows {
		statusRows = append(statusRows, "")
	}

	rendered := make([]string, 0, len(statusRows))
	for _, line := range statusRows {
		line = " " + truncateWithEllipsis(line, max(0, width-1))
		rendered = append(rendered, style.Width(width).Render(line))
	}
	return strings.Join(rendered, "\n")
}

// buildStatusRows packs help, context and status segments into at most
// rowLimit rows. It reports false when something had to be cut.
func (m *Model) buildStatusRows(width, rowLimit int) ([]string, bool) {
	if width <= 0 || rowLimit <= 0 {
		return nil, true
	}

	help := m.statusHelpSegments()
	context := m.statusContextSegments()
	status := strings.TrimSpace(m.status)

	segments := make([]string, 0, len(help)+len(context)+2)
	if len(help) > 0 {
		segments = append(segments, "Keys: "+help[0])
		segments = append(segments, help[1:]...)
	}
	if len(context) > 0 {
		segments = append(segments, context...)
	}
	if status != "" {
		segments = append(segments, "Status: "+status)
	}

	rows := make([]string, 1, rowLimit)
	rowIndex := 0
	fit := true
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		segment := seg
		if runewidth.StringWidth(segment) > width {
			segment = truncateWithEllipsis(segment, width)
		}

		candidate := segment
		if rows[rowIndex] != "" {
			candidate = rows[rowIndex] + " | " + segment
		}
		if runewidth.StringWidth(candidate) <= width {
			rows[rowIndex] = candidate
			continue
		}
		if rowIndex+1 < rowLimit {
			rowIndex++
			rows = append(rows, segment)
			continue
		}

		fit = false
		rows[rowIndex] = truncateWithEllipsis(candidate, width)
		break
	}
	return rows, fit
}

func (m *Model) statusHelpSegments() []string {
	switch m.mode {
	case modeInput:
		return []string{"Enter set text", "Esc cancel"}
	case modePreview:
		return []string{"↑/↓ PgUp/PgDn scroll", "Esc close"}
	}
	return []string{
		"letters place",
		m.primaryActionKey(actionUndo, "Ctrl+Z") + " undo",
		m.primaryActionKey(actionRedo, "Ctrl+Y") + " redo",
		m.primaryActionKey(actionToolNext, "Tab") + " tool",
		m.primaryActionKey(actionPageNext, "PgDn") + " page",
		m.primaryActionKey(actionHelp, "?") + " help",
	}
}

func (m *Model) statusContextSegments() []string {
	cursor := m.sess.Cursor()
	segments := []string{
		"Tool: " + m.toolLabel(),
		fmt.Sprintf("Oct %d", m.octave),
		fmt.Sprintf("Line %d", cursor.Line+1),
	}
	if summary := m.contentMetricsSummary(); summary != "" {
		segments = append(segments, summary)
	}
	switch {
	case m.sess.AutosavePending():
		segments = append(segments, m.spinner.View()+" autosave")
	case m.sess.Dirty():
		segments = append(segments, "unsaved")
	case !m.sess.LastSaved().IsZero():
		segments = append(segments, "saved "+m.sess.LastSaved().Format("15:04:05"))
	}
	return segments
}
