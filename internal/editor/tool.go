package editor

import (
	"math"

	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

// HitRadius is how close a click must land to a note for tools that act on
// an existing note.
const HitRadius = 30

// ToolKind names the active pointer tool. Exactly one is active at a time.
type ToolKind int

const (
	ToolNote ToolKind = iota
	ToolText
	ToolStem
	ToolArticulation
	ToolLyric
	ToolHighlighter
)

var toolNames = map[ToolKind]string{
	ToolNote:         "note",
	ToolText:         "text",
	ToolStem:         "stem",
	ToolArticulation: "articulation",
	ToolLyric:        "lyric",
	ToolHighlighter:  "highlighter",
}

func (k ToolKind) String() string {
	if name, ok := toolNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseToolKind is the inverse of String.
func ParseToolKind(name string) (ToolKind, bool) {
	for k, n := range toolNames {
		if n == name {
			return k, true
		}
	}
	return ToolNote, false
}

// Tool is the active tool with its payload. Only the fields relevant to Kind
// are read.
type Tool struct {
	Kind ToolKind
	// Symbol is placed by ToolNote.
	Symbol score.SymbolRef
	Octave int
	// Text is written by ToolText and ToolLyric.
	Text string
	// Glyph and Extensible describe the ToolArticulation symbol.
	Glyph      string
	Extensible bool
	// Color and Opacity style ToolHighlighter rectangles.
	Color   string
	Opacity float64
}

// Next cycles to the following tool kind, keeping the payload.
func (t Tool) Next() Tool {
	t.Kind = (t.Kind + 1) % ToolKind(len(toolNames))
	return t
}

// Click applies the tool at a point. It reports whether the content changed.
func (c *Coordinator) Click(tool Tool, at placement.Point) bool {
	switch tool.Kind {
	case ToolNote:
		if tool.Symbol.Key == "" {
			return false
		}
		c.AddNote(tool.Symbol, &at, tool.Octave)
		return true
	case ToolText:
		if tool.Text == "" {
			return false
		}
		c.AddText(score.TextElement{Text: tool.Text, X: at.X, Y: at.Y})
		return true
	case ToolStem:
		n, ok := c.nearestNote(at)
		if !ok {
			return false
		}
		n.Flipped = !n.Flipped
		return c.UpdateNote(n)
	case ToolArticulation:
		if tool.Glyph == "" {
			return false
		}
		c.AddArticulation(score.ArticulationElement{
			Glyph:      tool.Glyph,
			X:          at.X,
			Y:          at.Y,
			Extensible: tool.Extensible,
		})
		return true
	case ToolLyric:
		n, ok := c.nearestNote(at)
		if !ok || tool.Text == "" {
			return false
		}
		_, ok = c.AddLyric(score.LyricElement{NoteID: n.ID, Text: tool.Text})
		return ok
	case ToolHighlighter:
		return false
	}
	return false
}

// Drag applies a press-drag-release gesture. Highlighters add a rectangle,
// extensible articulations are sized by the drag, and the note tool moves
// the note under the press point.
func (c *Coordinator) Drag(tool Tool, from, to placement.Point) bool {
	switch tool.Kind {
	case ToolHighlighter:
		if from == to {
			return false
		}
		c.AddHighlight(score.HighlighterElement{
			X:       from.X,
			Y:       from.Y,
			Width:   to.X - from.X,
			Height:  to.Y - from.Y,
			Color:   tool.Color,
			Opacity: tool.Opacity,
		})
		return true
	case ToolArticulation:
		if tool.Glyph == "" || !tool.Extensible {
			return c.Click(tool, to)
		}
		c.AddArticulation(score.ArticulationElement{
			Glyph:      tool.Glyph,
			X:          math.Min(from.X, to.X),
			Y:          math.Min(from.Y, to.Y),
			Width:      math.Abs(to.X - from.X),
			Height:     math.Abs(to.Y - from.Y),
			Extensible: true,
		})
		return true
	case ToolNote:
		n, ok := c.nearestNote(from)
		if !ok {
			return false
		}
		return c.MoveNote(n.ID, to)
	}
	return c.Click(tool, to)
}

// nearestNote finds the note closest to p within HitRadius. Later notes win
// ties so the one drawn on top is picked.
func (c *Coordinator) nearestNote(p placement.Point) (score.PlacedSymbol, bool) {
	var best score.PlacedSymbol
	bestDist := math.Inf(1)
	for _, n := range c.history.Current().Notes {
		if d := math.Hypot(n.X-p.X, n.Y-p.Y); d <= bestDist {
			best, bestDist = n, d
		}
	}
	return best, bestDist <= HitRadius
}
