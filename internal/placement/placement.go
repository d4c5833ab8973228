// Package placement decides where a newly placed symbol lands on the staff
// grid and advances the insertion cursor.
//
// Keyboard and MIDI input place at the cursor and flow left to right,
// wrapping onto the next staff line when a symbol would cross the right
// boundary. Clicks place at the pointer, snapped to the nearest staff line,
// and move the cursor there. Running off the last line wraps back to line 0;
// that case is reported through Cursor().Wrap rather than as an error.
package placement

import (
	"math"

	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/score"
)

// Layout is the fixed geometry of a page.
type Layout struct {
	// Lines holds staff-line Y positions, top to bottom.
	Lines       []float64 `json:"lines"`
	Left        float64   `json:"left"`
	Right       float64   `json:"right"`
	Increment   float64   `json:"increment"`
	SymbolWidth float64   `json:"symbol_width"`
	// Grid rounds clicked X positions; 0 disables rounding.
	Grid float64 `json:"grid"`
}

// GeneralLayout is the staff table of the general notation mode.
var GeneralLayout = Layout{
	Lines:       []float64{230, 338, 446, 554, 662, 770},
	Left:        60,
	Right:       1000,
	Increment:   50,
	SymbolWidth: 40,
	Grid:        1,
}

// DNRLayout is the tighter staff table of the DNR traditional mode.
var DNRLayout = Layout{
	Lines:       []float64{200, 290, 380, 470, 560, 650, 740},
	Left:        80,
	Right:       980,
	Increment:   45,
	SymbolWidth: 36,
	Grid:        1,
}

// LayoutFor returns the stock layout of a mode.
func LayoutFor(mode score.Mode) Layout {
	if mode == score.ModeDNR {
		return DNRLayout
	}
	return GeneralLayout
}

// Valid reports whether the layout can place anything.
func (l Layout) Valid() bool {
	return len(l.Lines) > 0 && l.Right > l.Left && l.Increment > 0
}

// Wrap describes what the last cursor placement had to do at the right edge.
type Wrap int

const (
	WrapNone Wrap = iota
	// WrapNextLine moved down one staff line.
	WrapNextLine
	// WrapToStart ran off the last line and went back to line 0. Symbols
	// placed from here can overlap earlier content.
	WrapToStart
)

func (w Wrap) String() string {
	switch w {
	case WrapNextLine:
		return "next-line"
	case WrapToStart:
		return "to-start"
	default:
		return "none"
	}
}

// Cursor is where the next keyboard or MIDI symbol lands.
type Cursor struct {
	NextX float64 `json:"next_x"`
	Line  int     `json:"line"`
	Wrap  Wrap    `json:"wrap"`
}

// Point is an explicit canvas coordinate from a click.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Engine owns the cursor of one page. It is not safe for concurrent use;
// the session serializes access.
type Engine struct {
	layout Layout
	cursor Cursor
	ids    idgen.Generator
}

// New returns an engine at the layout's start position. An invalid layout
// falls back to GeneralLayout.
func New(layout Layout, ids idgen.Generator) *Engine {
	if !layout.Valid() {
		layout = GeneralLayout
	}
	if ids == nil {
		ids = idgen.Default
	}
	e := &Engine{layout: layout, ids: ids}
	e.Reset()
	return e
}

// Layout returns the engine's geometry.
func (e *Engine) Layout() Layout {
	return e.layout
}

// Cursor returns the current cursor state.
func (e *Engine) Cursor() Cursor {
	return e.cursor
}

// SetCursor installs a cursor, clamping the line into range.
func (e *Engine) SetCursor(c Cursor) {
	c.Line = e.clampLine(c.Line)
	e.cursor = c
}

// Reset moves the cursor to the left boundary of line 0.
func (e *Engine) Reset() {
	e.cursor = Cursor{NextX: e.layout.Left, Line: 0}
}

// Place computes the position of a new symbol and advances the cursor. With
// at == nil the symbol goes to the cursor; otherwise to the clicked point
// snapped to the nearest staff line.
func (e *Engine) Place(ref score.SymbolRef, at *Point) score.PlacedSymbol {
	var x float64
	var line int

	if at != nil {
		line = e.Snap(at.Y)
		x = e.roundToGrid(at.X)
		e.cursor.Wrap = WrapNone
	} else {
		x = e.cursor.NextX
		line = e.clampLine(e.cursor.Line)
		e.cursor.Wrap = WrapNone
		if x+e.layout.SymbolWidth > e.layout.Right {
			if line == len(e.layout.Lines)-1 {
				line = 0
				e.cursor.Wrap = WrapToStart
			} else {
				line++
				e.cursor.Wrap = WrapNextLine
			}
			x = e.layout.Left
		}
	}

	e.cursor.Line = line
	e.cursor.NextX = x + e.layout.Increment

	return score.PlacedSymbol{
		ID:     e.ids(),
		Symbol: ref,
		X:      x,
		Y:      e.layout.Lines[line],
		Stave:  line,
	}
}

// Snap returns the index of the staff line nearest to y. Ties go to the
// lower index.
func (e *Engine) Snap(y float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, lineY := range e.layout.Lines {
		if d := math.Abs(lineY - y); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Recompute derives the cursor from the last placed note: just after it on
// its line. With no notes the cursor resets.
func (e *Engine) Recompute(notes []score.PlacedSymbol) {
	if len(notes) == 0 {
		e.Reset()
		return
	}
	last := notes[len(notes)-1]
	e.cursor = Cursor{
		NextX: last.X + e.layout.Increment,
		Line:  e.Snap(last.Y),
	}
}

func (e *Engine) clampLine(line int) int {
	if line < 0 || line >= len(e.layout.Lines) {
		return 0
	}
	return line
}

func (e *Engine) roundToGrid(x float64) float64 {
	if e.layout.Grid <= 0 {
		return x
	}
	return math.Round(x/e.layout.Grid) * e.layout.Grid
}
