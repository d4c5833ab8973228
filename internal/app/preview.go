// preview.go renders the project's export document into the viewport.
//
// Rendering goes through glamour and can take a moment, so it runs as a
// command. Each request bumps previewSeq; results carrying an older
// sequence are dropped, which covers resizes and closing the preview while
// a render is in flight.
package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/cli-notation/internal/export"
	"github.com/treykane/cli-notation/internal/score"
)

type previewResultMsg struct {
	seq     int
	content string
	err     error
}

func (m *Model) openPreview() tea.Cmd {
	m.mode = modePreview
	m.showHelp = false
	m.updateLayout()
	return m.requestPreview()
}

func (m *Model) closePreview() {
	m.mode = modeCompose
	m.previewSeq++
	m.rendering = false
	m.updateLayout()
}

func (m *Model) requestPreview() tea.Cmd {
	m.previewSeq++
	m.rendering = true
	m.viewport.SetContent(m.spinner.View() + " Rendering...")
	return renderPreviewCmd(m.sess.Project(), previewWidthBucket(m.viewport.Width), m.previewSeq)
}

func renderPreviewCmd(p score.Project, width, seq int) tea.Cmd {
	return func() tea.Msg {
		out, err := export.Render(export.Markdown(p), width)
		return previewResultMsg{seq: seq, content: out, err: err}
	}
}

func (m *Model) handlePreviewResult(msg previewResultMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.previewSeq || m.mode != modePreview {
		return m, nil
	}
	m.rendering = false
	if msg.err != nil {
		m.viewport.SetContent("Preview failed")
		m.setStatusError("Preview failed", msg.err)
		return m, nil
	}
	m.viewport.SetContent(msg.content)
	m.viewport.GotoTop()
	return m, nil
}
