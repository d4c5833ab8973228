// Package editor turns domain actions into snapshots.
//
// Every mutation follows the same steps: read the present snapshot from the
// history engine, build a new collection for the affected element type,
// copy the other collections across untouched, push, then reconcile the
// result into the active page. Building from the engine's present snapshot
// (never from a copy held by the caller) is what keeps an articulation add
// from reviving an outdated note list.
package editor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/treykane/cli-notation/internal/history"
	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/metrics"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
)

var editorLog = logging.New("editor")

const (
	// DefaultExtensibleHeight is given to extensible articulations created
	// without a height.
	DefaultExtensibleHeight = 40
	// DefaultTieWidth is given to ties created without a width.
	DefaultTieWidth = 80
	// LyricOffset places a lyric this far below its note by default.
	LyricOffset = 60
	// DefaultIDTimeout bounds a store id allocation before falling back.
	DefaultIDTimeout = 250 * time.Millisecond
	// DefaultHighlightColor fills highlights created without a color.
	DefaultHighlightColor = "#ffeb3b"
	// DefaultHighlightOpacity fills highlights created without an opacity.
	DefaultHighlightOpacity = 0.4
)

// Options configures a Coordinator. Zero values are usable.
type Options struct {
	Layout       placement.Layout
	HistoryLimit int
	// SkipEqualPushes drops actions that leave content unchanged.
	SkipEqualPushes bool
	// IDs generates ids when no allocator is set. Defaults to UUIDv7.
	IDs idgen.Generator
	// Allocator is consulted first for new ids; failures fall back to
	// local clock-based ids.
	Allocator store.IDAllocator
	IDTimeout time.Duration
	Metrics   *metrics.Recorder
	// Strict panics on invariant violations instead of logging them.
	Strict bool
	// OnChange runs after every push, undo and redo.
	OnChange func(Origin)
}

// Coordinator is the single writer of one page's content. It is not safe for
// concurrent use; the session serializes calls.
type Coordinator struct {
	history   *history.Engine
	placer    *placement.Engine
	page      *score.Page
	ids       idgen.Generator
	local     idgen.Generator
	allocator store.IDAllocator
	idTimeout time.Duration
	metrics   *metrics.Recorder
	strict    bool
	onChange  func(Origin)
}

// New returns a coordinator editing page. The page's content becomes the
// present snapshot with empty history.
func New(page *score.Page, opts Options) *Coordinator {
	hist := history.New(opts.HistoryLimit)
	hist.SkipEqual = opts.SkipEqualPushes
	c := &Coordinator{
		history:   hist,
		ids:       opts.IDs,
		local:     idgen.Local(),
		allocator: opts.Allocator,
		idTimeout: opts.IDTimeout,
		metrics:   opts.Metrics,
		strict:    opts.Strict,
		onChange:  opts.OnChange,
	}
	if c.ids == nil {
		c.ids = idgen.Default
	}
	if c.idTimeout <= 0 {
		c.idTimeout = DefaultIDTimeout
	}
	c.placer = placement.New(opts.Layout, func() string { return c.newID("note") })
	if page == nil {
		page = &score.Page{}
	}
	c.Load(page, page.Content)
	return c
}

// Load points the coordinator at page, installs incoming as the present
// snapshot with empty history and recomputes the cursor. Pending undo and
// redo context is discarded.
func (c *Coordinator) Load(page *score.Page, incoming score.Content) {
	c.page = page
	Reconcile(page, score.NewSnapshot(incoming), OriginReset, c.metrics)
	c.history.Reset(score.NewSnapshot(page.Content.Clone()))
	c.metrics.Transition("reset")
	c.placer.Recompute(page.Content.Notes)
}

// Page returns the page being edited.
func (c *Coordinator) Page() *score.Page {
	return c.page
}

// Snapshot returns the present snapshot. Its slices must not be modified.
func (c *Coordinator) Snapshot() score.Snapshot {
	return c.history.Current()
}

// CanUndo reports whether Undo would do anything.
func (c *Coordinator) CanUndo() bool {
	return c.history.CanUndo()
}

// CanRedo reports whether Redo would do anything.
func (c *Coordinator) CanRedo() bool {
	return c.history.CanRedo()
}

// Depth returns the undo and redo depths.
func (c *Coordinator) Depth() (past, future int) {
	return c.history.Depth()
}

// Cursor returns where the next keyboard symbol lands.
func (c *Coordinator) Cursor() placement.Cursor {
	return c.placer.Cursor()
}

// Layout returns the staff geometry in use.
func (c *Coordinator) Layout() placement.Layout {
	return c.placer.Layout()
}

// Undo steps back one snapshot.
func (c *Coordinator) Undo() bool {
	return c.transition(OriginUndo, c.history.Undo)
}

// Redo steps forward one snapshot.
func (c *Coordinator) Redo() bool {
	return c.transition(OriginRedo, c.history.Redo)
}

func (c *Coordinator) transition(origin Origin, step func() bool) bool {
	before := len(c.history.Current().Notes)
	if !step() {
		return false
	}
	c.metrics.Transition(origin.String())
	c.afterTransition(origin, before, true)
	return true
}

// apply builds the next content from the present snapshot and pushes it.
// recompute controls whether a change in note count re-derives the cursor;
// cursor placements already advanced it.
func (c *Coordinator) apply(build func(score.Content) score.Content, recompute bool) bool {
	current := c.history.Current()
	next := build(current.Content)
	c.validate(next)
	if !c.history.Push(score.NewSnapshot(next)) {
		return false
	}
	c.metrics.Transition("push")
	c.afterTransition(OriginMutation, len(current.Notes), recompute)
	return true
}

func (c *Coordinator) afterTransition(origin Origin, notesBefore int, recompute bool) {
	snap := c.history.Current()
	Reconcile(c.page, snap, origin, c.metrics)
	if recompute && len(snap.Notes) != notesBefore {
		c.placer.Recompute(snap.Notes)
	}
	if c.onChange != nil {
		c.onChange(origin)
	}
}

func (c *Coordinator) validate(next score.Content) {
	err := next.Validate()
	if err == nil {
		return
	}
	if c.strict {
		panic(fmt.Sprintf("editor: invalid content: %v", err))
	}
	editorLog.Error("invalid content", "error", err, "page", c.page.ID)
}

// newID asks the allocator for an id and falls back to a local one.
func (c *Coordinator) newID(kind string) string {
	if c.allocator == nil {
		return c.ids()
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.idTimeout)
	defer cancel()
	id, err := c.allocator.AllocateID(ctx, kind)
	if err == nil && id != "" {
		return id
	}
	editorLog.Debug("falling back to local id", "kind", kind, "error", err)
	c.metrics.IDFallback()
	return c.local()
}

// Notes

// AddNote places a symbol at the cursor (at == nil) or at a clicked point.
func (c *Coordinator) AddNote(ref score.SymbolRef, at *placement.Point, octave int) score.PlacedSymbol {
	note := c.placer.Place(ref, at)
	note.Octave = octave
	c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Notes = appendCopy(cur.Notes, note)
		return next
	}, false)
	return note
}

// RemoveNote removes a note and the lyrics attached to it.
func (c *Coordinator) RemoveNote(id string) bool {
	if _, ok := findByID(c.history.Current().Notes, id, noteID); !ok {
		return false
	}
	return c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Notes, _ = removeByID(cur.Notes, id, noteID)
		next.Lyrics = filterCopy(cur.Lyrics, func(l score.LyricElement) bool { return l.NoteID != id })
		return next
	}, true)
}

// UpdateNote replaces the note with the same id.
func (c *Coordinator) UpdateNote(n score.PlacedSymbol) bool {
	if _, ok := findByID(c.history.Current().Notes, n.ID, noteID); !ok {
		return false
	}
	return c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Notes, _ = replaceByID(cur.Notes, n, noteID)
		return next
	}, true)
}

// MoveNote is the drag-release path: the note lands at the point, snapped
// to the nearest staff line. A move back to the original spot still counts
// as one action.
func (c *Coordinator) MoveNote(id string, to placement.Point) bool {
	n, ok := findByID(c.history.Current().Notes, id, noteID)
	if !ok {
		return false
	}
	layout := c.placer.Layout()
	line := c.placer.Snap(to.Y)
	n.X = to.X
	if layout.Grid > 0 {
		n.X = math.Round(to.X/layout.Grid) * layout.Grid
	}
	n.Y = layout.Lines[line]
	n.Stave = line
	return c.UpdateNote(n)
}

// DeleteLast removes the most recently added note. No-op when there are
// none.
func (c *Coordinator) DeleteLast() bool {
	notes := c.history.Current().Notes
	if len(notes) == 0 {
		return false
	}
	return c.RemoveNote(notes[len(notes)-1].ID)
}

// Clear empties every collection of the page as one undoable action.
func (c *Coordinator) Clear() bool {
	if c.history.Current().IsEmpty() {
		return false
	}
	return c.apply(func(score.Content) score.Content { return score.Content{} }, true)
}

// Text

// AddText adds a text element, assigning an id when it has none.
func (c *Coordinator) AddText(t score.TextElement) score.TextElement {
	if t.ID == "" {
		t.ID = c.newID("text")
	}
	c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Texts = appendCopy(cur.Texts, t)
		return next
	}, true)
	return t
}

// RemoveText removes a text element by id.
func (c *Coordinator) RemoveText(id string) bool {
	return c.removeFrom(id, func(cur score.Content) (score.Content, bool) {
		texts, ok := removeByID(cur.Texts, id, textID)
		cur.Texts = texts
		return cur, ok
	})
}

// UpdateText replaces the text element with the same id.
func (c *Coordinator) UpdateText(t score.TextElement) bool {
	return c.removeFrom(t.ID, func(cur score.Content) (score.Content, bool) {
		texts, ok := replaceByID(cur.Texts, t, textID)
		cur.Texts = texts
		return cur, ok
	})
}

// Articulations

// AddArticulation adds an articulation, filling the size an extensible
// glyph requires.
func (c *Coordinator) AddArticulation(a score.ArticulationElement) score.ArticulationElement {
	if a.ID == "" {
		a.ID = c.newID("articulation")
	}
	a = sizeArticulation(a)
	c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Articulations = appendCopy(cur.Articulations, a)
		return next
	}, true)
	return a
}

// RemoveArticulation removes an articulation by id.
func (c *Coordinator) RemoveArticulation(id string) bool {
	return c.removeFrom(id, func(cur score.Content) (score.Content, bool) {
		arts, ok := removeByID(cur.Articulations, id, articulationID)
		cur.Articulations = arts
		return cur, ok
	})
}

// UpdateArticulation replaces the articulation with the same id.
func (c *Coordinator) UpdateArticulation(a score.ArticulationElement) bool {
	a = sizeArticulation(a)
	return c.removeFrom(a.ID, func(cur score.Content) (score.Content, bool) {
		arts, ok := replaceByID(cur.Articulations, a, articulationID)
		cur.Articulations = arts
		return cur, ok
	})
}

func sizeArticulation(a score.ArticulationElement) score.ArticulationElement {
	if !a.Extensible {
		return a
	}
	if a.Height <= 0 {
		a.Height = DefaultExtensibleHeight
	}
	if a.Glyph == score.TieGlyph && a.Width <= 0 {
		a.Width = DefaultTieWidth
	}
	return a
}

// Lyrics

// AddLyric attaches a lyric to an existing note. A lyric without a
// position goes under its note. Reports false when the note is unknown.
func (c *Coordinator) AddLyric(l score.LyricElement) (score.LyricElement, bool) {
	note, ok := findByID(c.history.Current().Notes, l.NoteID, noteID)
	if !ok {
		return l, false
	}
	if l.ID == "" {
		l.ID = c.newID("lyric")
	}
	if l.X == 0 && l.Y == 0 {
		l.X = note.X
		l.Y = note.Y + LyricOffset
	}
	c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Lyrics = appendCopy(cur.Lyrics, l)
		return next
	}, true)
	return l, true
}

// RemoveLyric removes a lyric by id.
func (c *Coordinator) RemoveLyric(id string) bool {
	return c.removeFrom(id, func(cur score.Content) (score.Content, bool) {
		lyrics, ok := removeByID(cur.Lyrics, id, lyricID)
		cur.Lyrics = lyrics
		return cur, ok
	})
}

// UpdateLyric replaces the lyric with the same id.
func (c *Coordinator) UpdateLyric(l score.LyricElement) bool {
	return c.removeFrom(l.ID, func(cur score.Content) (score.Content, bool) {
		lyrics, ok := replaceByID(cur.Lyrics, l, lyricID)
		cur.Lyrics = lyrics
		return cur, ok
	})
}

// Highlights

// AddHighlight adds a highlight rectangle, normalizing negative extents and
// clamping opacity into [0, 1].
func (c *Coordinator) AddHighlight(h score.HighlighterElement) score.HighlighterElement {
	if h.ID == "" {
		h.ID = c.newID("highlight")
	}
	h = normalizeHighlight(h)
	c.apply(func(cur score.Content) score.Content {
		next := cur
		next.Highlights = appendCopy(cur.Highlights, h)
		return next
	}, true)
	return h
}

// RemoveHighlight removes a highlight by id.
func (c *Coordinator) RemoveHighlight(id string) bool {
	return c.removeFrom(id, func(cur score.Content) (score.Content, bool) {
		hs, ok := removeByID(cur.Highlights, id, highlightID)
		cur.Highlights = hs
		return cur, ok
	})
}

// UpdateHighlight replaces the highlight with the same id.
func (c *Coordinator) UpdateHighlight(h score.HighlighterElement) bool {
	h = normalizeHighlight(h)
	return c.removeFrom(h.ID, func(cur score.Content) (score.Content, bool) {
		hs, ok := replaceByID(cur.Highlights, h, highlightID)
		cur.Highlights = hs
		return cur, ok
	})
}

func normalizeHighlight(h score.HighlighterElement) score.HighlighterElement {
	if h.Width < 0 {
		h.X += h.Width
		h.Width = -h.Width
	}
	if h.Height < 0 {
		h.Y += h.Height
		h.Height = -h.Height
	}
	if h.Opacity <= 0 {
		h.Opacity = DefaultHighlightOpacity
	}
	h.Opacity = math.Min(1, h.Opacity)
	if h.Color == "" {
		h.Color = DefaultHighlightColor
	}
	return h
}

// removeFrom runs an id-keyed edit and pushes only when the id existed.
func (c *Coordinator) removeFrom(id string, edit func(score.Content) (score.Content, bool)) bool {
	if id == "" {
		return false
	}
	if _, ok := edit(c.history.Current().Content); !ok {
		return false
	}
	return c.apply(func(cur score.Content) score.Content {
		next, _ := edit(cur)
		return next
	}, true)
}
