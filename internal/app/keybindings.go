package app

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/treykane/cli-notation/internal/config"
)

// ---------------------------------------------------------------------------
// Action constants
// ---------------------------------------------------------------------------
//
// Each constant identifies a user-triggerable action on the canvas. Keys
// that map to no action and are a single character go to the notation
// catalog and place a symbol, so default actions avoid plain letters.
//
// Default key assignments are declared in defaultActionKeys. Users can
// override any assignment via the "keybindings" map in config.json.
// ---------------------------------------------------------------------------

const (
	actionUndo       = "edit.undo"
	actionRedo       = "edit.redo"
	actionDeleteLast = "edit.delete_last"
	actionClear      = "edit.clear"

	// actionToolNext cycles note → text → stem → articulation → lyric →
	// highlighter.
	actionToolNext = "tool.next"

	// actionToolText opens the input row for the text and lyric tools.
	actionToolText = "tool.text"

	// actionGlyphNext cycles the articulation glyph.
	actionGlyphNext = "tool.glyph.next"

	actionOctaveUp   = "octave.up"
	actionOctaveDown = "octave.down"

	actionPagePrev   = "page.prev"
	actionPageNext   = "page.next"
	actionPageAdd    = "page.add"
	actionPageRemove = "page.remove"

	actionSave = "project.save"

	// actionPreview toggles the rendered export preview.
	actionPreview = "export.preview"

	// actionExport writes the project as Markdown into the export dir.
	actionExport = "export.write"

	actionHelp = "help.toggle"
	actionQuit = "app.quit"
)

// defaultActionKeys maps each action to its factory-default key bindings.
//
// Key strings use the Bubble Tea notation:
//   - Modifier keys: "ctrl+", "alt+", "shift+"
//   - Special keys: "enter", "esc", "tab", "up", "down", "left", "right"
var defaultActionKeys = map[string][]string{
	actionUndo:       {"ctrl+z"},
	actionRedo:       {"ctrl+y", "ctrl+shift+z"},
	actionDeleteLast: {"backspace"},
	actionClear:      {"ctrl+l"},
	actionToolNext:   {"tab"},
	actionToolText:   {"ctrl+t"},
	actionGlyphNext:  {"ctrl+g"},
	actionOctaveUp:   {"]"},
	actionOctaveDown: {"["},
	actionPagePrev:   {"pgup", "ctrl+left"},
	actionPageNext:   {"pgdown", "ctrl+right"},
	actionPageAdd:    {"ctrl+n"},
	actionPageRemove: {"ctrl+x"},
	actionSave:       {"ctrl+s"},
	actionPreview:    {"ctrl+p"},
	actionExport:     {"ctrl+e"},
	actionHelp:       {"?"},
	actionQuit:       {"ctrl+c", "ctrl+q"},
}

// actionOrder is the order actions are listed in the help pane.
var actionOrder = []string{
	actionUndo, actionRedo, actionDeleteLast, actionClear,
	actionToolNext, actionToolText, actionGlyphNext, actionOctaveUp, actionOctaveDown,
	actionPagePrev, actionPageNext, actionPageAdd, actionPageRemove,
	actionSave, actionPreview, actionExport, actionHelp, actionQuit,
}

var actionHelpText = map[string]string{
	actionUndo:       "undo",
	actionRedo:       "redo",
	actionDeleteLast: "delete last note",
	actionClear:      "clear page",
	actionToolNext:   "next tool",
	actionToolText:   "tool text",
	actionGlyphNext:  "next articulation",
	actionOctaveUp:   "octave up",
	actionOctaveDown: "octave down",
	actionPagePrev:   "previous page",
	actionPageNext:   "next page",
	actionPageAdd:    "add page",
	actionPageRemove: "remove page",
	actionSave:       "save",
	actionPreview:    "preview",
	actionExport:     "export",
	actionHelp:       "help",
	actionQuit:       "quit",
}

// loadKeybindings initializes the key↔action maps from the defaults and
// the "keybindings" overrides in config. Unknown actions and conflicting
// keys are logged and ignored; the first action to claim a key wins.
func (m *Model) loadKeybindings(cfg config.Config) {
	m.keyForAction = map[string][]string{}
	for action, keys := range defaultActionKeys {
		m.keyForAction[action] = append([]string(nil), keys...)
	}
	for action, key := range cfg.Keybindings {
		m.applyKeybindingOverride(action, key)
	}
	m.rebuildActionKeyIndex()
}

// applyKeybindingOverride replaces an action's full default key set.
func (m *Model) applyKeybindingOverride(action, key string) {
	action = strings.TrimSpace(action)
	key = normalizeKeyString(key)
	if action == "" || key == "" {
		return
	}
	if _, ok := defaultActionKeys[action]; !ok {
		appLog.Warn("ignore unknown keybinding action", "action", action)
		return
	}
	m.keyForAction[action] = []string{key}
}

// rebuildActionKeyIndex builds keyToAction and the help bindings from
// keyForAction.
func (m *Model) rebuildActionKeyIndex() {
	m.keyToAction = map[string]string{}
	m.bindings = map[string]key.Binding{}
	for _, action := range actionOrder {
		var claimed []string
		for _, k := range m.keyForAction[action] {
			if k == "" {
				continue
			}
			if existing, ok := m.keyToAction[k]; ok && existing != action {
				appLog.Warn("keybinding conflict ignored", "key", k, "action", action, "existing_action", existing)
				continue
			}
			m.keyToAction[k] = action
			claimed = append(claimed, k)
		}
		if len(claimed) == 0 {
			continue
		}
		m.bindings[action] = key.NewBinding(
			key.WithKeys(claimed...),
			key.WithHelp(strings.Join(m.actionKeyLabels(claimed), "/"), actionHelpText[action]),
		)
	}
}

// normalizeKeyString converts a user-provided key string into the canonical
// lowercase form used by the keybinding maps. A single uppercase letter
// becomes "shift+<letter>".
//
//	normalizeKeyString("Ctrl+Z")  → "ctrl+z"
//	normalizeKeyString(" Y ")     → "shift+y"
func normalizeKeyString(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len([]rune(key)) == 1 && strings.ToUpper(key) == key && strings.ToLower(key) != key {
		return "shift+" + strings.ToLower(key)
	}
	return strings.ToLower(key)
}

// actionForKey returns the action bound to key, or "".
func (m *Model) actionForKey(key string) string {
	if m.keyToAction == nil {
		return ""
	}
	return m.keyToAction[normalizeKeyString(key)]
}

func (m *Model) actionKeyLabels(keys []string) []string {
	labels := make([]string, 0, len(keys))
	for _, k := range keys {
		label := humanizeKeyLabel(k)
		if label == "" || slices.Contains(labels, label) {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

// primaryActionKey is the first key label of an action, or fallback when
// the action is unbound.
func (m *Model) primaryActionKey(action, fallback string) string {
	b, ok := m.bindings[action]
	if !ok {
		return fallback
	}
	label, _, _ := strings.Cut(b.Help().Key, "/")
	return label
}

func humanizeKeyLabel(key string) string {
	normalized := normalizeKeyString(key)
	if normalized == "" {
		return ""
	}
	special := map[string]string{
		"up":        "↑",
		"down":      "↓",
		"left":      "←",
		"right":     "→",
		"enter":     "Enter",
		"esc":       "Esc",
		"tab":       "Tab",
		"pgup":      "PgUp",
		"pgdown":    "PgDn",
		"space":     "Space",
		"backspace": "Backspace",
	}
	parts := strings.Split(normalized, "+")
	for i, part := range parts {
		switch part {
		case "ctrl":
			parts[i] = "Ctrl"
		case "alt":
			parts[i] = "Alt"
		case "shift":
			parts[i] = "Shift"
		default:
			if label, ok := special[part]; ok {
				parts[i] = label
				continue
			}
			runes := []rune(part)
			if len(runes) == 1 && runes[0] >= 'a' && runes[0] <= 'z' {
				parts[i] = strings.ToUpper(part)
			} else if len(runes) > 0 {
				parts[i] = strings.ToUpper(string(runes[0])) + string(runes[1:])
			}
		}
	}
	return strings.Join(parts, "+")
}
