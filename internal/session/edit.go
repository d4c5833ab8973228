package session

import (
	"github.com/treykane/cli-notation/internal/editor"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

// edit runs fn against the active page's coordinator under the session lock.
// A closed session returns the zero value without calling fn.
func edit[T any](s *Session, fn func(c *editor.Coordinator) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		var zero T
		return zero
	}
	return fn(s.coord)
}

// view is edit for reads, which stay available after Close.
func view[T any](s *Session, fn func(c *editor.Coordinator) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.coord)
}

// PlaceKey places the catalog symbol bound to key, at the cursor when at is
// nil. Unknown keys report false.
func (s *Session) PlaceKey(key string, at *placement.Point) (score.PlacedSymbol, bool) {
	ref, ok := s.catalog.LookupByKey(s.Mode(), key)
	if !ok {
		return score.PlacedSymbol{}, false
	}
	return s.AddNote(ref, at, DefaultOctave), true
}

// PlaceMIDI places the symbol for a MIDI note-on at the cursor.
func (s *Session) PlaceMIDI(note int) (score.PlacedSymbol, bool) {
	ref, octave, ok := s.catalog.LookupByMIDI(s.Mode(), note)
	if !ok {
		return score.PlacedSymbol{}, false
	}
	return s.AddNote(ref, nil, octave), true
}

func (s *Session) AddNote(ref score.SymbolRef, at *placement.Point, octave int) score.PlacedSymbol {
	return edit(s, func(c *editor.Coordinator) score.PlacedSymbol { return c.AddNote(ref, at, octave) })
}

func (s *Session) RemoveNote(id string) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.RemoveNote(id) })
}

func (s *Session) UpdateNote(n score.PlacedSymbol) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.UpdateNote(n) })
}

func (s *Session) MoveNote(id string, to placement.Point) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.MoveNote(id, to) })
}

func (s *Session) DeleteLast() bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.DeleteLast() })
}

func (s *Session) Clear() bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.Clear() })
}

func (s *Session) AddText(t score.TextElement) score.TextElement {
	return edit(s, func(c *editor.Coordinator) score.TextElement { return c.AddText(t) })
}

func (s *Session) RemoveText(id string) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.RemoveText(id) })
}

func (s *Session) UpdateText(t score.TextElement) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.UpdateText(t) })
}

func (s *Session) AddArticulation(a score.ArticulationElement) score.ArticulationElement {
	return edit(s, func(c *editor.Coordinator) score.ArticulationElement { return c.AddArticulation(a) })
}

func (s *Session) RemoveArticulation(id string) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.RemoveArticulation(id) })
}

func (s *Session) UpdateArticulation(a score.ArticulationElement) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.UpdateArticulation(a) })
}

// AddLyric reports false when the lyric's note does not exist.
func (s *Session) AddLyric(l score.LyricElement) (score.LyricElement, bool) {
	type result struct {
		l  score.LyricElement
		ok bool
	}
	r := edit(s, func(c *editor.Coordinator) result {
		added, ok := c.AddLyric(l)
		return result{added, ok}
	})
	return r.l, r.ok
}

func (s *Session) RemoveLyric(id string) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.RemoveLyric(id) })
}

func (s *Session) UpdateLyric(l score.LyricElement) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.UpdateLyric(l) })
}

func (s *Session) AddHighlight(h score.HighlighterElement) score.HighlighterElement {
	return edit(s, func(c *editor.Coordinator) score.HighlighterElement { return c.AddHighlight(h) })
}

func (s *Session) RemoveHighlight(id string) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.RemoveHighlight(id) })
}

func (s *Session) UpdateHighlight(h score.HighlighterElement) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.UpdateHighlight(h) })
}

// Click applies a pointer tool at a point.
func (s *Session) Click(tool editor.Tool, at placement.Point) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.Click(tool, at) })
}

// Drag applies a press-drag-release gesture.
func (s *Session) Drag(tool editor.Tool, from, to placement.Point) bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.Drag(tool, from, to) })
}

func (s *Session) Undo() bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.Undo() })
}

func (s *Session) Redo() bool {
	return edit(s, func(c *editor.Coordinator) bool { return c.Redo() })
}

func (s *Session) CanUndo() bool {
	return view(s, func(c *editor.Coordinator) bool { return c.CanUndo() })
}

func (s *Session) CanRedo() bool {
	return view(s, func(c *editor.Coordinator) bool { return c.CanRedo() })
}

// Snapshot returns the active page's present snapshot.
func (s *Session) Snapshot() score.Snapshot {
	return view(s, func(c *editor.Coordinator) score.Snapshot { return c.Snapshot() })
}

func (s *Session) Cursor() placement.Cursor {
	return view(s, func(c *editor.Coordinator) placement.Cursor { return c.Cursor() })
}

func (s *Session) Layout() placement.Layout {
	return view(s, func(c *editor.Coordinator) placement.Layout { return c.Layout() })
}

// Depth returns the undo and redo depths of the active page.
func (s *Session) Depth() (past, future int) {
	d := view(s, func(c *editor.Coordinator) [2]int {
		p, f := c.Depth()
		return [2]int{p, f}
	})
	return d[0], d[1]
}

// State is a consistent view of the session taken under one lock hold.
type State struct {
	Active   int
	Pages    int
	Snapshot score.Snapshot
	Cursor   placement.Cursor
	CanUndo  bool
	CanRedo  bool
	Dirty    bool
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Active:   s.active,
		Pages:    len(s.pages),
		Snapshot: s.coord.Snapshot(),
		Cursor:   s.coord.Cursor(),
		CanUndo:  s.coord.CanUndo(),
		CanRedo:  s.coord.CanRedo(),
		Dirty:    s.dirty,
	}
}
