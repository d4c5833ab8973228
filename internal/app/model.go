// Package app is the terminal editor: a Bubble Tea program over one open
// session. Typed letters place catalog symbols at the cursor, the mouse
// applies the active tool, and every edit goes through the session so the
// HTTP API and the terminal see the same state.
package app

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/cli-notation/internal/config"
	"github.com/treykane/cli-notation/internal/editor"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/session"
)

// mode controls the UI state and which input widget is active.
type mode int

const (
	modeCompose mode = iota
	modeInput
	modePreview
)

// middleC is the MIDI note whose symbol the note tool starts with.
const middleC = 60

// Model holds the Bubble Tea state for the entire UI.
type Model struct {
	sess      *session.Session
	exportDir string

	// Active tool and its payload
	tool   editor.Tool
	glyph  int
	octave int

	// Pointer gesture in progress
	dragging bool
	dragFrom placement.Point

	// UI widgets
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	mode     mode
	status   string
	showHelp bool

	// Layout sizing
	width  int
	height int

	// Preview bookkeeping
	rendering  bool
	previewSeq int

	// saves receives OnSave results from the session's timer goroutine.
	saves chan error

	keyForAction map[string][]string
	keyToAction  map[string]string
	bindings     map[string]key.Binding
}

// New prepares the editor model for an open session.
func New(sess *session.Session, cfg config.Config) *Model {
	vp := viewport.New(0, 0)

	input := textinput.New()
	input.Placeholder = "Text for the text and lyric tools"
	input.CharLimit = InputCharLimit
	applyInputTheme(&input)

	spin := spinner.New()
	spin.Spinner = spinner.Line

	m := &Model{
		sess:      sess,
		exportDir: cfg.ExportDir(),
		octave:    session.DefaultOctave,
		viewport:  vp,
		input:     input,
		spinner:   spin,
		mode:      modeCompose,
		status:    "Ready",
		saves:     make(chan error, 8),
	}
	m.tool = editor.Tool{Kind: editor.ToolNote, Octave: m.octave}
	if ref, _, ok := sess.Catalog().LookupByMIDI(sess.Mode(), middleC); ok {
		m.tool.Symbol = ref
	}
	m.selectGlyph(0)
	m.loadKeybindings(cfg)
	sess.OnSave(m.notifySave)
	return m
}

// Init starts the spinner and waits for save results.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSave(m.saves))
}

// Update is the Bubble Tea update loop: handle events and emit commands.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		return m.handleSpinnerTick(msg)
	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case saveResultMsg:
		return m.handleSaveResult(msg)
	case exportResultMsg:
		return m.handleExportResult(msg)
	case previewResultMsg:
		return m.handlePreviewResult(msg)
	}
	return m, nil
}

// selectGlyph makes the i-th catalog articulation the articulation tool's
// payload, wrapping around.
func (m *Model) selectGlyph(i int) {
	arts := m.sess.Catalog().Articulations()
	if len(arts) == 0 {
		return
	}
	m.glyph = ((i % len(arts)) + len(arts)) % len(arts)
	m.tool.Glyph = arts[m.glyph].Glyph
	m.tool.Extensible = arts[m.glyph].Extensible
}

func (m *Model) setOctave(octave int) {
	m.octave = clamp(octave, 0, 8)
	m.tool.Octave = m.octave
}
