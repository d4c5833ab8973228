// Package score holds the placeable content of a notation page and the
// Snapshot aggregate that the history engine stores.
//
// All element types are plain comparable structs so two collections can be
// compared with slices.Equal. Slices inside a Snapshot are treated as
// read-only once the Snapshot has been built; code that needs a different
// collection builds a new slice.
package score

import (
	"fmt"
	"slices"
	"time"
)

// SymbolRef points into the static notation catalog. The core stores it and
// never mutates the catalog entry it came from.
type SymbolRef struct {
	ID    string `json:"id" yaml:"id"`
	Key   string `json:"key" yaml:"key"`
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image,omitempty" yaml:"image"`
}

// PlacedSymbol is one notation glyph on the staff grid.
type PlacedSymbol struct {
	ID      string    `json:"id"`
	Symbol  SymbolRef `json:"symbol"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Stave   int       `json:"stave"`
	Octave  int       `json:"octave"`
	Flipped bool      `json:"flipped,omitempty"`
}

// TextElement is a free text annotation.
type TextElement struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FontSize  float64 `json:"font_size,omitempty"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Underline bool    `json:"underline,omitempty"`
}

// TieGlyph is the articulation that spans horizontally and therefore needs a
// width as well as a height.
const TieGlyph = "tie"

// ArticulationElement is an articulation mark. Extensible marks stretch and
// carry their size.
type ArticulationElement struct {
	ID         string  `json:"id"`
	Glyph      string  `json:"glyph"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Extensible bool    `json:"extensible,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
}

// LyricElement is a syllable attached to a note.
type LyricElement struct {
	ID     string  `json:"id"`
	NoteID string  `json:"note_id"`
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// HighlighterElement is a translucent rectangle drawn over the page.
type HighlighterElement struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// Content is everything placeable on one page.
type Content struct {
	Notes         []PlacedSymbol        `json:"notes"`
	Texts         []TextElement         `json:"texts"`
	Articulations []ArticulationElement `json:"articulations"`
	Lyrics        []LyricElement        `json:"lyrics"`
	Highlights    []HighlighterElement  `json:"highlights"`
}

// Equal reports order-sensitive deep equality of every collection. A nil
// collection equals an empty one.
func (c Content) Equal(other Content) bool {
	return slices.Equal(c.Notes, other.Notes) &&
		slices.Equal(c.Texts, other.Texts) &&
		slices.Equal(c.Articulations, other.Articulations) &&
		slices.Equal(c.Lyrics, other.Lyrics) &&
		slices.Equal(c.Highlights, other.Highlights)
}

// Clone returns a copy that shares no backing arrays with c.
func (c Content) Clone() Content {
	return Content{
		Notes:         slices.Clone(c.Notes),
		Texts:         slices.Clone(c.Texts),
		Articulations: slices.Clone(c.Articulations),
		Lyrics:        slices.Clone(c.Lyrics),
		Highlights:    slices.Clone(c.Highlights),
	}
}

// IsEmpty reports whether no collection holds anything.
func (c Content) IsEmpty() bool {
	return len(c.Notes) == 0 && len(c.Texts) == 0 && len(c.Articulations) == 0 &&
		len(c.Lyrics) == 0 && len(c.Highlights) == 0
}

// Validate checks id uniqueness per collection and the articulation size
// invariant. It returns the first violation found.
func (c Content) Validate() error {
	if id, ok := firstDuplicate(c.Notes, func(n PlacedSymbol) string { return n.ID }); ok {
		return fmt.Errorf("duplicate note id %q", id)
	}
	if id, ok := firstDuplicate(c.Texts, func(t TextElement) string { return t.ID }); ok {
		return fmt.Errorf("duplicate text id %q", id)
	}
	if id, ok := firstDuplicate(c.Articulations, func(a ArticulationElement) string { return a.ID }); ok {
		return fmt.Errorf("duplicate articulation id %q", id)
	}
	if id, ok := firstDuplicate(c.Lyrics, func(l LyricElement) string { return l.ID }); ok {
		return fmt.Errorf("duplicate lyric id %q", id)
	}
	if id, ok := firstDuplicate(c.Highlights, func(h HighlighterElement) string { return h.ID }); ok {
		return fmt.Errorf("duplicate highlight id %q", id)
	}
	for _, a := range c.Articulations {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the extensible articulation size invariant.
func (a ArticulationElement) Validate() error {
	if !a.Extensible {
		return nil
	}
	if a.Height <= 0 {
		return fmt.Errorf("extensible articulation %q needs a positive height", a.ID)
	}
	if a.Glyph == TieGlyph && a.Width <= 0 {
		return fmt.Errorf("tie articulation %q needs a positive width", a.ID)
	}
	return nil
}

func firstDuplicate[T any](items []T, id func(T) string) (string, bool) {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := id(item)
		if _, ok := seen[key]; ok {
			return key, true
		}
		seen[key] = struct{}{}
	}
	return "", false
}

// Snapshot is one immutable capture of a page's content: the unit of
// undo/redo.
type Snapshot struct {
	Content
	Taken time.Time `json:"taken"`
}

// NewSnapshot stamps content with the current time.
func NewSnapshot(c Content) Snapshot {
	return Snapshot{Content: c, Taken: time.Now()}
}

// Equal compares content only; the timestamp is ignored.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Content.Equal(other.Content)
}
