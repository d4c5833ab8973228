package app

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

func TestCanvasColumnRoundTrip(t *testing.T) {
	cv := canvas{layout: placement.GeneralLayout}
	for _, col := range []int{0, 3, 9, 30} {
		if got := cv.column(cv.x(col)); got != col {
			t.Fatalf("column(x(%d)) = %d", col, got)
		}
	}
	p, ok := cv.point(3, RowsPerLine+1)
	if !ok || p.Y != placement.GeneralLayout.Lines[1] {
		t.Fatalf("expected a point on line 1, got %+v %v", p, ok)
	}
	if _, ok := cv.point(0, cv.rows()); ok {
		t.Fatal("expected rows below the last line to be off canvas")
	}
	if _, ok := cv.point(-1, 0); ok {
		t.Fatal("expected negative columns to be off canvas")
	}
}

func TestDrawPage(t *testing.T) {
	layout := placement.GeneralLayout
	top := layout.Lines[0]
	content := score.Content{
		Notes: []score.PlacedSymbol{
			{ID: "n1", Symbol: score.SymbolRef{Key: "s"}, X: layout.Left, Y: top, Octave: 4},
			{ID: "n2", Symbol: score.SymbolRef{Key: "r"}, X: layout.Left + 2*layout.Increment, Y: top, Octave: 5},
		},
		Texts:  []score.TextElement{{ID: "t1", Text: "hi", X: layout.Left + layout.Increment, Y: top}},
		Lyrics: []score.LyricElement{{ID: "l1", NoteID: "n1", Text: "la", X: layout.Left, Y: top + 60}},
	}
	cursor := placement.Cursor{NextX: layout.Left + layout.Increment, Line: 0}

	lines := strings.Split(ansi.Strip(drawPage(layout, content, cursor, true)), "\n")
	if len(lines) != len(layout.Lines)*RowsPerLine {
		t.Fatalf("expected %d rows, got %d", len(layout.Lines)*RowsPerLine, len(lines))
	}
	if !strings.HasPrefix(lines[0], "   hi") {
		t.Fatalf("unexpected annotation row %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "s──▏──r'") {
		t.Fatalf("unexpected note row %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "la") {
		t.Fatalf("unexpected lyric row %q", lines[2])
	}
	if strings.TrimLeft(lines[4], "─") != "" {
		t.Fatalf("expected an empty staff line, got %q", lines[4])
	}
}

func TestGridPutClipsWideRunes(t *testing.T) {
	g := newGrid(RowsPerLine, 4)
	g.put(0, 1, "日本", cellText)
	got := ansi.Strip(strings.Split(g.render(), "\n")[0])
	if got != " 日 " {
		t.Fatalf("expected the second wide rune to be clipped, got %q", got)
	}
}

func TestSymbolLabelOctaveTicks(t *testing.T) {
	tests := []struct {
		octave int
		want   string
	}{
		{4, "s"},
		{5, "s'"},
		{3, "s,"},
		{8, "s''"},
		{0, "s,,"},
	}
	for _, tt := range tests {
		n := score.PlacedSymbol{Symbol: score.SymbolRef{Key: "s"}, Octave: tt.octave}
		if got := symbolLabel(n); got != tt.want {
			t.Fatalf("octave %d: got %q, want %q", tt.octave, got, tt.want)
		}
	}
}
