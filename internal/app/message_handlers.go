package app

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/cli-notation/internal/export"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/session"
)

// saveResultMsg carries a session save attempt, manual or automatic.
type saveResultMsg struct {
	err error
}

type exportResultMsg struct {
	path string
	err  error
}

// notifySave is the session's OnSave callback. It runs on the autosave
// timer goroutine and must not block.
func (m *Model) notifySave(err error) {
	select {
	case m.saves <- err:
	default:
		appLog.Debug("dropped save notification", "error", err)
	}
}

func waitForSave(saves <-chan error) tea.Cmd {
	return func() tea.Msg {
		return saveResultMsg{err: <-saves}
	}
}

// saveCmd saves the whole project. The result arrives through OnSave.
func saveCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
		defer cancel()
		_ = sess.Save(ctx)
		return nil
	}
}

func exportCmd(p score.Project, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
		defer cancel()
		path, err := export.Write(ctx, p, dir, export.FormatMarkdown)
		return exportResultMsg{path: path, err: err}
	}
}

// handleSpinnerTick updates the spinner animation state.
func (m *Model) handleSpinnerTick(msg spinner.TickMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	if m.rendering {
		m.viewport.SetContent(m.spinner.View() + " Rendering...")
	}
	return m, cmd
}

// handleWindowResize updates layout dimensions after terminal resize.
func (m *Model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.updateLayout()
	if m.mode == modePreview {
		return m, m.requestPreview()
	}
	return m, nil
}

func (m *Model) handleSaveResult(msg saveResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setStatusError("Save failed, edits kept in memory", msg.err)
	} else {
		m.status = "Saved"
	}
	return m, waitForSave(m.saves)
}

func (m *Model) handleExportResult(msg exportResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setStatusError("Export failed", msg.err, "dir", m.exportDir)
		return m, nil
	}
	m.status = "Exported " + msg.path
	return m, nil
}
