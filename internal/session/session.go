// Package session owns an open project: its page list, the active page index
// and the editor state of that page.
//
// Page navigation swaps the coordinator's state: the outgoing page is
// persisted, the incoming page's content is installed and history starts
// over. Content changes schedule a debounced autosave of the active page.
// Persistence never blocks editing; a failed save leaves the in-memory
// state authoritative and is reported through OnSave and the metrics.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/treykane/cli-notation/internal/catalog"
	"github.com/treykane/cli-notation/internal/debounce"
	"github.com/treykane/cli-notation/internal/editor"
	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/metrics"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
)

var sessionLog = logging.New("session")

const (
	DefaultAutosaveDelay = 5 * time.Second
	DefaultSaveTimeout   = 5 * time.Second
	// DefaultOctave is used for keyboard placements.
	DefaultOctave = 4
	// PageIDPrefix starts every generated page id.
	PageIDPrefix = "page-"
)

// Options configures a Session. Zero values are usable.
type Options struct {
	// Layout overrides the stock layout of the project's mode.
	Layout          placement.Layout
	HistoryLimit    int
	SkipEqualPushes bool
	// AutosaveDelay is the quiet period before an autosave. Negative
	// disables autosave.
	AutosaveDelay time.Duration
	SaveTimeout   time.Duration
	IDTimeout     time.Duration
	Catalog       *catalog.Catalog
	// PageIDs names new pages. Defaults to UUIDv7 after PageIDPrefix.
	PageIDs idgen.Generator
	// ElementIDs is used when the store does not allocate ids.
	ElementIDs idgen.Generator
	Metrics    *metrics.Recorder
	Strict     bool
	// AfterFunc replaces time.AfterFunc for the autosave timer.
	AfterFunc debounce.AfterFunc
}

// Session is safe for concurrent use. Every method runs to completion under
// one mutex.
type Session struct {
	mu sync.Mutex

	store   store.Store
	header  score.Project
	pages   []*score.Page
	active  int
	coord   *editor.Coordinator
	catalog *catalog.Catalog
	metrics *metrics.Recorder
	saver   *debounce.Debouncer
	pageIDs idgen.Generator

	saveTimeout time.Duration
	autosave    bool
	// unsaved holds page ids whose last save failed; they are not refreshed
	// from the store on switch.
	unsaved   map[string]bool
	dirty     bool
	lastSaved time.Time
	onSave    func(error)
	closed    bool
}

// Open starts a session on project with its first page active. The store may
// be nil for a purely in-memory session. A project without pages gets one.
func Open(ctx context.Context, st store.Store, project score.Project, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if project.Mode == "" {
		project.Mode = score.ModeGeneral
	}
	if project.Defaults == (score.Meta{}) {
		project.Defaults = score.DefaultMeta
	}
	s := &Session{
		store:       st,
		header:      project,
		catalog:     opts.Catalog,
		metrics:     opts.Metrics,
		pageIDs:     opts.PageIDs,
		saveTimeout: opts.SaveTimeout,
		autosave:    opts.AutosaveDelay >= 0,
		unsaved:     make(map[string]bool),
	}
	s.header.Pages = nil
	if s.catalog == nil {
		s.catalog = catalog.Stock()
	}
	if s.pageIDs == nil {
		s.pageIDs = idgen.Prefixed(PageIDPrefix, idgen.Default)
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = DefaultSaveTimeout
	}
	for _, p := range project.Clone().Pages {
		s.pages = append(s.pages, &p)
	}
	if len(s.pages) == 0 {
		s.pages = append(s.pages, s.newPage(0))
	}

	layout := opts.Layout
	if !layout.Valid() {
		layout = placement.LayoutFor(project.Mode)
	}
	var allocator store.IDAllocator
	if a, ok := st.(store.IDAllocator); ok {
		allocator = a
	}
	delay := opts.AutosaveDelay
	if delay == 0 {
		delay = DefaultAutosaveDelay
	}
	s.saver = debounce.NewWithAfterFunc(delay, s.autosaveNow, opts.AfterFunc)

	s.coord = editor.New(s.pages[0], editor.Options{
		Layout:          layout,
		HistoryLimit:    opts.HistoryLimit,
		SkipEqualPushes: opts.SkipEqualPushes,
		IDs:             opts.ElementIDs,
		Allocator:       allocator,
		IDTimeout:       opts.IDTimeout,
		Metrics:         opts.Metrics,
		Strict:          opts.Strict,
		OnChange:        s.changed,
	})
	sessionLog.Info("session opened", "project", project.ID, "pages", len(s.pages), "mode", project.Mode)
	return s, nil
}

// OpenProject loads a project from the store and opens it.
func OpenProject(ctx context.Context, st store.Store, id string, opts Options) (*Session, error) {
	p, err := st.LoadProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}
	return Open(ctx, st, p, opts)
}

// changed runs under s.mu from inside a coordinator call.
func (s *Session) changed(editor.Origin) {
	s.dirty = true
	if s.autosave && !s.closed {
		s.saver.Trigger()
	}
}

// OnSave registers a callback run after every save attempt, outside the
// session lock.
func (s *Session) OnSave(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSave = fn
}

// Dirty reports whether the active page has changes not yet saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastSaved is the time of the last successful save, zero if none.
func (s *Session) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// AutosavePending reports whether an autosave is scheduled.
func (s *Session) AutosavePending() bool {
	return s.saver.Pending()
}

func (s *Session) autosaveNow() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	err := s.persistActiveLocked(ctx)
	cancel()
	notify := s.onSave
	s.mu.Unlock()

	if err != nil {
		sessionLog.Warn("autosave failed", "error", err)
	}
	if notify != nil {
		notify(err)
	}
}

// Save persists the whole project synchronously, active page included.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	s.saver.Cancel()
	err := s.saveProjectLocked(ctx)
	notify := s.onSave
	s.mu.Unlock()

	if notify != nil {
		notify(err)
	}
	return err
}

// Close cancels any pending autosave and saves one last time. The session
// ignores edits afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.saver.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.saveProjectLocked(ctx)
	if err != nil {
		sessionLog.Warn("final save failed", "project", s.header.ID, "error", err)
	}
	return err
}

func (s *Session) saveProjectLocked(ctx context.Context) error {
	if s.store == nil {
		s.markSaved(s.pages[s.active].ID)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()
	err := s.store.SaveProject(ctx, s.projectLocked())
	s.metrics.Persist("save_project", err)
	if err != nil {
		return fmt.Errorf("save project %s: %w", s.header.ID, err)
	}
	s.markSaved(s.pages[s.active].ID)
	clear(s.unsaved)
	return nil
}

// persistActiveLocked saves the active page's notes and metadata.
func (s *Session) persistActiveLocked(ctx context.Context) error {
	return s.persistPageLocked(ctx, s.pages[s.active])
}

func (s *Session) persistPageLocked(ctx context.Context, page *score.Page) error {
	if s.store == nil {
		s.markSaved(page.ID)
		return nil
	}
	errNotes := s.store.SavePageNotes(ctx, s.header.ID, page.ID, page.Content.Notes)
	s.metrics.Persist("save_notes", errNotes)
	errMeta := s.store.SavePageMetadata(ctx, s.header.ID, page.ID, store.MetadataOf(page.Content))
	s.metrics.Persist("save_metadata", errMeta)

	if err := errors.Join(errNotes, errMeta); err != nil {
		s.unsaved[page.ID] = true
		return fmt.Errorf("save page %s: %w", page.ID, err)
	}
	s.markSaved(page.ID)
	return nil
}

func (s *Session) markSaved(pageID string) {
	delete(s.unsaved, pageID)
	if pageID == s.pages[s.active].ID {
		s.dirty = false
		s.lastSaved = time.Now()
	}
}

// Navigation

// Active returns the active page index.
func (s *Session) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PageCount returns the number of pages.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// SwitchTo makes page i active. Out-of-range indexes and the already active
// page are no-ops reporting false.
func (s *Session) SwitchTo(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || i < 0 || i >= len(s.pages) || i == s.active {
		return false
	}
	s.leaveActiveLocked()
	s.enterLocked(i)
	return true
}

// AddPage appends an empty page inheriting the project defaults, makes it
// active and returns its index.
func (s *Session) AddPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.active
	}
	s.leaveActiveLocked()
	s.pages = append(s.pages, s.newPage(len(s.pages)))
	s.syncProjectLocked("add page")
	s.enterLocked(len(s.pages) - 1)
	return s.active
}

// RemovePage deletes page i. The last remaining page cannot be removed.
// Removing the active page activates the one before it.
func (s *Session) RemovePage(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.pages) <= 1 || i < 0 || i >= len(s.pages) {
		return false
	}
	removed := s.pages[i]
	s.pages = slices.Delete(s.pages, i, i+1)
	delete(s.unsaved, removed.ID)

	switch {
	case i == s.active:
		s.saver.Cancel()
		s.enterLocked(max(0, i-1))
	case i < s.active:
		s.active--
	}
	s.syncProjectLocked("remove page")
	sessionLog.Info("page removed", "page", removed.ID, "active", s.active)
	return true
}

// leaveActiveLocked supersedes a pending autosave with a synchronous save of
// the outgoing page.
func (s *Session) leaveActiveLocked() {
	s.saver.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.persistActiveLocked(ctx); err != nil {
		sessionLog.Warn("saving outgoing page failed", "error", err)
	}
}

// enterLocked installs page i in the coordinator, refreshing it from the
// store first unless its own last save failed.
func (s *Session) enterLocked(i int) {
	page := s.pages[i]
	incoming := page.Content
	if s.store != nil && !s.unsaved[page.ID] {
		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		stored, err := s.store.LoadPage(ctx, s.header.ID, page.ID)
		cancel()
		switch {
		case err == nil:
			incoming = stored.Content
		case errors.Is(err, store.ErrNotFound):
		default:
			sessionLog.Warn("refreshing page failed", "page", page.ID, "error", err)
		}
	}
	s.active = i
	s.coord.Load(page, incoming)
	s.dirty = false
	s.metrics.PageSwitch()
}

func (s *Session) syncProjectLocked(op string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	err := s.store.SaveProject(ctx, s.projectLocked())
	s.metrics.Persist("save_project", err)
	if err != nil {
		sessionLog.Warn("saving project failed", "op", op, "project", s.header.ID, "error", err)
	}
}

func (s *Session) newPage(i int) *score.Page {
	return &score.Page{
		ID:    s.pageIDs(),
		Title: store.PageTitle(i),
		Meta:  s.header.Defaults,
	}
}

// Project returns a deep copy of the project with every page's content.
func (s *Session) Project() score.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectLocked()
}

func (s *Session) projectLocked() score.Project {
	p := s.header
	p.Pages = make([]score.Page, len(s.pages))
	for i, page := range s.pages {
		p.Pages[i] = *page
	}
	return p.Clone()
}

// ActivePage returns a copy of the active page.
func (s *Session) ActivePage() score.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := *s.pages[s.active]
	page.Content = page.Content.Clone()
	return page
}

// Mode returns the project's notation mode.
func (s *Session) Mode() score.Mode {
	return s.header.Mode
}

// Catalog returns the symbol catalog used for key and MIDI lookups.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}
