package app

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/treykane/cli-notation/internal/editor"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

// canvas projects page coordinates onto terminal cells. Each staff line
// owns RowsPerLine rows: annotations above, notes, then lyrics.
type canvas struct {
	layout placement.Layout
}

func (c canvas) column(x float64) int {
	return int(math.Round((x - c.layout.Left) / c.layout.Increment * CellWidth))
}

func (c canvas) x(col int) float64 {
	return c.layout.Left + float64(col)/CellWidth*c.layout.Increment
}

// width is the number of columns between the left and right boundaries.
func (c canvas) width() int {
	return c.column(c.layout.Right) + 1
}

func (c canvas) rows() int {
	return len(c.layout.Lines) * RowsPerLine
}

// line returns the staff line nearest to y.
func (c canvas) line(y float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, ly := range c.layout.Lines {
		if d := math.Abs(ly - y); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// point maps a canvas cell back to page coordinates on its staff line.
func (c canvas) point(col, row int) (placement.Point, bool) {
	if col < 0 || row < 0 || row >= c.rows() {
		return placement.Point{}, false
	}
	return placement.Point{X: c.x(col), Y: c.layout.Lines[row/RowsPerLine]}, true
}

type cellKind int

const (
	cellBlank cellKind = iota
	cellNote
	cellFlipped
	cellText
	cellArticulation
	cellLyric
	cellCursor
)

type cell struct {
	r    rune
	kind cellKind
	// mark is the highlight color, "" when unmarked.
	mark string
	// cont marks the second column of a wide rune.
	cont bool
}

type grid struct {
	cells [][]cell
	width int
}

func newGrid(rows, width int) *grid {
	g := &grid{cells: make([][]cell, rows), width: width}
	for i := range g.cells {
		blank := ' '
		if i%RowsPerLine == 1 {
			blank = '─'
		}
		row := make([]cell, width)
		for j := range row {
			row[j] = cell{r: blank}
		}
		g.cells[i] = row
	}
	return g
}

// put writes s starting at col. Text running off either edge is clipped.
func (g *grid) put(row, col int, s string, kind cellKind) {
	if row < 0 || row >= len(g.cells) {
		return
	}
	cells := g.cells[row]
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col < 0 {
			col += w
			continue
		}
		if col+w > g.width {
			return
		}
		cells[col] = cell{r: r, kind: kind, mark: cells[col].mark}
		for i := 1; i < w; i++ {
			cells[col+i] = cell{kind: kind, mark: cells[col+i].mark, cont: true}
		}
		col += w
	}
}

func (g *grid) mark(row, from, to int, color string) {
	if row < 0 || row >= len(g.cells) {
		return
	}
	from = clamp(from, 0, g.width)
	to = clamp(to, 0, g.width-1)
	for i := from; i <= to; i++ {
		g.cells[row][i].mark = color
	}
}

func (g *grid) blank(row, col int) bool {
	if row < 0 || row >= len(g.cells) || col < 0 || col >= g.width {
		return false
	}
	return g.cells[row][col].kind == cellBlank
}

func (g *grid) render() string {
	lines := make([]string, len(g.cells))
	for i, row := range g.cells {
		var b, run strings.Builder
		kind, mark := cellBlank, ""
		flush := func() {
			if run.Len() > 0 {
				b.WriteString(styleForCell(kind, mark).Render(run.String()))
				run.Reset()
			}
		}
		for j, c := range row {
			if j == 0 || c.kind != kind || c.mark != mark {
				flush()
				kind, mark = c.kind, c.mark
			}
			if !c.cont {
				run.WriteRune(c.r)
			}
		}
		flush()
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// articulationMarks are the single-cell marks of fixed articulations.
var articulationMarks = map[string]string{
	"accent":    ">",
	"staccato":  ".",
	"fermata":   "^",
	"crescendo": "<",
}

// drawPage renders the content of a page and the insertion cursor.
func drawPage(layout placement.Layout, content score.Content, cursor placement.Cursor, showCursor bool) string {
	cv := canvas{layout: layout}
	g := newGrid(cv.rows(), cv.width())

	for _, h := range content.Highlights {
		color := h.Color
		if color == "" {
			color = editor.DefaultHighlightColor
		}
		from, to := cv.column(h.X), cv.column(h.X+h.Width)
		marked := false
		for i, ly := range layout.Lines {
			if ly >= h.Y && ly <= h.Y+h.Height {
				g.mark(i*RowsPerLine+1, from, to, color)
				marked = true
			}
		}
		if !marked {
			g.mark(cv.line(h.Y)*RowsPerLine+1, from, to, color)
		}
	}

	notes := make(map[string]score.PlacedSymbol, len(content.Notes))
	for _, n := range content.Notes {
		notes[n.ID] = n
		kind := cellNote
		if n.Flipped {
			kind = cellFlipped
		}
		g.put(cv.line(n.Y)*RowsPerLine+1, cv.column(n.X), symbolLabel(n), kind)
	}

	for _, t := range content.Texts {
		g.put(cv.line(t.Y)*RowsPerLine, cv.column(t.X), t.Text, cellText)
	}

	for _, a := range content.Articulations {
		row := cv.line(a.Y) * RowsPerLine
		col := cv.column(a.X)
		if a.Extensible {
			span := max(1, cv.column(a.X+a.Width)-col)
			g.put(row, col, strings.Repeat("⌒", span), cellArticulation)
			continue
		}
		mark, ok := articulationMarks[a.Glyph]
		if !ok && a.Glyph != "" {
			mark = string([]rune(a.Glyph)[:1])
		}
		g.put(row, col, mark, cellArticulation)
	}

	for _, l := range content.Lyrics {
		row, col := cv.line(l.Y-editor.LyricOffset)*RowsPerLine+2, cv.column(l.X)
		if n, ok := notes[l.NoteID]; ok {
			row, col = cv.line(n.Y)*RowsPerLine+2, cv.column(n.X)
		}
		g.put(row, col, l.Text, cellLyric)
	}

	if showCursor {
		row, col := cursor.Line*RowsPerLine+1, cv.column(cursor.NextX)
		if g.blank(row, col) {
			g.put(row, col, "▏", cellCursor)
		}
	}
	return g.render()
}

// symbolLabel is the note's key with octave ticks: ' per octave above the
// middle octave and , per octave below, at most two.
func symbolLabel(n score.PlacedSymbol) string {
	label := n.Symbol.Key
	if label == "" {
		label = "?"
	}
	switch d := clamp(n.Octave-4, -2, 2); {
	case d > 0:
		label += strings.Repeat("'", d)
	case d < 0:
		label += strings.Repeat(",", -d)
	}
	return label
}
