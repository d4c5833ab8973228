package app

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/cli-notation/internal/editor"
	"github.com/treykane/cli-notation/internal/placement"
)

// handleKey routes a key press by mode.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeInput:
		return m.handleInputKey(msg)
	case modePreview:
		return m.handlePreviewKey(msg)
	}
	return m.handleComposeKey(msg)
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.tool.Text = strings.TrimSpace(m.input.Value())
		m.closeInput()
		if m.tool.Text == "" {
			m.status = "Tool text cleared"
		} else {
			m.status = fmt.Sprintf("Tool text: %q", m.tool.Text)
		}
		return m, nil
	case "esc":
		m.closeInput()
		m.status = "Text entry cancelled"
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePreviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch action := m.actionForKey(msg.String()); {
	case action == actionQuit:
		return m, tea.Quit
	case action == actionPreview, msg.String() == "esc":
		m.closePreview()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleComposeKey runs the bound action, or places the catalog symbol for a
// single typed character.
func (m *Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if action := m.actionForKey(msg.String()); action != "" {
		return m.runAction(action)
	}
	if m.showHelp && msg.String() == "esc" {
		m.showHelp = false
		return m, nil
	}
	if msg.Type == tea.KeyRunes && !msg.Alt && len(msg.Runes) == 1 {
		m.placeKey(string(msg.Runes))
	}
	return m, nil
}

func (m *Model) runAction(action string) (tea.Model, tea.Cmd) {
	switch action {
	case actionQuit:
		return m, tea.Quit
	case actionUndo:
		if m.sess.Undo() {
			m.status = "Undone"
		} else {
			m.status = "Nothing to undo"
		}
	case actionRedo:
		if m.sess.Redo() {
			m.status = "Redone"
		} else {
			m.status = "Nothing to redo"
		}
	case actionDeleteLast:
		if m.sess.DeleteLast() {
			m.status = "Deleted last note"
		} else {
			m.status = "No notes to delete"
		}
	case actionClear:
		m.sess.Clear()
		m.status = fmt.Sprintf("Page cleared (%s to undo)", m.primaryActionKey(actionUndo, "Ctrl+Z"))
	case actionToolNext:
		m.tool = m.tool.Next()
		m.status = "Tool: " + m.toolLabel()
	case actionToolText:
		return m, m.openInput()
	case actionGlyphNext:
		m.selectGlyph(m.glyph + 1)
		m.status = "Articulation: " + m.tool.Glyph
	case actionOctaveUp:
		m.setOctave(m.octave + 1)
		m.status = fmt.Sprintf("Octave %d", m.octave)
	case actionOctaveDown:
		m.setOctave(m.octave - 1)
		m.status = fmt.Sprintf("Octave %d", m.octave)
	case actionPagePrev:
		m.switchPage(m.sess.Active() - 1)
	case actionPageNext:
		m.switchPage(m.sess.Active() + 1)
	case actionPageAdd:
		i := m.sess.AddPage()
		m.status = fmt.Sprintf("Added page %d", i+1)
	case actionPageRemove:
		m.removePage()
	case actionSave:
		m.status = "Saving..."
		return m, saveCmd(m.sess)
	case actionPreview:
		return m, m.openPreview()
	case actionExport:
		m.status = "Exporting..."
		return m, exportCmd(m.sess.Project(), m.exportDir)
	case actionHelp:
		m.showHelp = !m.showHelp
	}
	return m, nil
}

// placeKey places the symbol bound to key at the cursor with the current
// octave and makes it the note tool's symbol.
func (m *Model) placeKey(key string) {
	ref, ok := m.sess.Catalog().LookupByKey(m.sess.Mode(), key)
	if !ok {
		m.status = fmt.Sprintf("No symbol for %q", key)
		return
	}
	m.sess.AddNote(ref, nil, m.octave)
	m.tool.Symbol = ref
	m.status = "Placed " + ref.Name
	if m.sess.Cursor().Wrap == placement.WrapToStart {
		m.status += " (wrapped to first line)"
	}
}

func (m *Model) switchPage(i int) {
	if !m.sess.SwitchTo(i) {
		m.status = "No more pages"
		return
	}
	m.status = fmt.Sprintf("Page %d/%d", m.sess.Active()+1, m.sess.PageCount())
}

func (m *Model) removePage() {
	n := m.sess.Active()
	if !m.sess.RemovePage(n) {
		m.status = "A project keeps at least one page"
		return
	}
	m.status = fmt.Sprintf("Removed page %d", n+1)
}

func (m *Model) openInput() tea.Cmd {
	m.mode = modeInput
	m.input.SetValue(m.tool.Text)
	m.input.CursorEnd()
	m.updateLayout()
	m.status = "Enter text"
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.input.Blur()
	m.mode = modeCompose
	m.updateLayout()
}

// toolLabel names the active tool with its payload.
func (m *Model) toolLabel() string {
	name := m.tool.Kind.String()
	switch m.tool.Kind {
	case editor.ToolNote:
		if m.tool.Symbol.Name != "" {
			name += " " + m.tool.Symbol.Name
		}
	case editor.ToolText, editor.ToolLyric:
		if m.tool.Text != "" {
			name += fmt.Sprintf(" %q", m.tool.Text)
		} else {
			name += " (" + m.primaryActionKey(actionToolText, "Ctrl+T") + " to set text)"
		}
	case editor.ToolArticulation:
		name += " " + m.tool.Glyph
	}
	return name
}
