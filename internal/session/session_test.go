package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/treykane/cli-notation/internal/debounce"
	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/metrics"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
	"github.com/treykane/cli-notation/internal/store/filestore"
)

type fakeTimer struct {
	clock   *fakeClock
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock collects scheduled timers; Fire runs the ones still armed.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Fire() int {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	fired := 0
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.fn()
			fired++
		}
	}
	return fired
}

func newProject(t *testing.T, st store.Store) score.Project {
	t.Helper()
	p := store.NewProject("proj", "Test", score.ModeGeneral, score.DefaultMeta, "page-a")
	if st != nil {
		if _, err := st.CreateProject(context.Background(), p); err != nil {
			t.Fatalf("create project: %v", err)
		}
	}
	return p
}

func openSession(t *testing.T, st store.Store, clock *fakeClock) *Session {
	t.Helper()
	opts := Options{
		PageIDs:    idgen.Sequence("page-"),
		ElementIDs: idgen.Sequence("el-"),
		Strict:     true,
	}
	if clock != nil {
		opts.AfterFunc = clock.AfterFunc
	} else {
		opts.AutosaveDelay = -1
	}
	s, err := Open(context.Background(), st, newProject(t, st), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestPageSwitchPreservesContent(t *testing.T) {
	for _, tc := range []struct {
		name  string
		store func(t *testing.T) store.Store
	}{
		{"memory", func(*testing.T) store.Store { return nil }},
		{"filestore", func(t *testing.T) store.Store {
			fs, err := filestore.New(t.TempDir())
			if err != nil {
				t.Fatalf("filestore: %v", err)
			}
			return fs
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := openSession(t, tc.store(t), nil)
			a1, _ := s.PlaceKey("s", nil)
			a2, _ := s.PlaceKey("r", nil)

			b := s.AddPage()
			if b != 1 || s.Active() != 1 {
				t.Fatalf("expected new page active at 1, got %d", s.Active())
			}
			if s.CanUndo() {
				t.Fatal("expected fresh history on new page")
			}
			s.PlaceKey("g", nil)

			if !s.SwitchTo(0) {
				t.Fatal("expected switch back to page A")
			}
			notes := s.Snapshot().Notes
			if len(notes) != 2 || notes[0].ID != a1.ID || notes[1].ID != a2.ID {
				t.Fatalf("expected A's two notes, got %+v", notes)
			}
			if s.CanUndo() || s.CanRedo() {
				t.Fatal("expected A's history to hold none of B's pushes")
			}
			if cur := s.Cursor(); cur.NextX != a2.X+s.Layout().Increment {
				t.Fatalf("expected cursor after A's last note, got %+v", cur)
			}

			p := s.Project()
			if len(p.Pages) != 2 || len(p.Pages[1].Content.Notes) != 1 {
				t.Fatalf("expected page B to keep its note, got %+v", p.Pages)
			}
		})
	}
}

func TestRemovePageKeepsAtLeastOne(t *testing.T) {
	s := openSession(t, nil, nil)
	if s.RemovePage(0) {
		t.Fatal("expected removing the only page to fail")
	}
	if s.PageCount() != 1 {
		t.Fatalf("expected 1 page, got %d", s.PageCount())
	}
}

func TestRemovePageMovesActive(t *testing.T) {
	s := openSession(t, nil, nil)
	s.AddPage()
	s.AddPage()
	s.PlaceKey("s", nil)

	if !s.RemovePage(2) {
		t.Fatal("expected remove of active page")
	}
	if s.Active() != 1 || s.PageCount() != 2 {
		t.Fatalf("expected active 1 of 2, got %d of %d", s.Active(), s.PageCount())
	}

	s.PlaceKey("r", nil)
	if !s.RemovePage(0) {
		t.Fatal("expected remove of earlier page")
	}
	if s.Active() != 0 {
		t.Fatalf("expected active index to shift down, got %d", s.Active())
	}
	if !s.CanUndo() {
		t.Fatal("expected history kept when a different page is removed")
	}
	if got := len(s.Snapshot().Notes); got != 1 {
		t.Fatalf("expected the active page's note, got %d", got)
	}
}

func TestInvalidNavigationIsNoOp(t *testing.T) {
	s := openSession(t, nil, nil)
	for _, i := range []int{-1, 0, 1, 5} {
		if s.SwitchTo(i) {
			t.Fatalf("expected SwitchTo(%d) to be a no-op", i)
		}
	}
	if s.RemovePage(3) {
		t.Fatal("expected out-of-range remove to fail")
	}
}

func TestNewPageInheritsDefaults(t *testing.T) {
	p := score.Project{ID: "p", Mode: score.ModeDNR, Defaults: score.Meta{TimeSignature: "7/8", Key: "D", Tempo: 90}}
	s, err := Open(context.Background(), nil, p, Options{AutosaveDelay: -1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.AddPage()
	page := s.ActivePage()
	if page.Meta != p.Defaults || page.Title != "Page 2" {
		t.Fatalf("unexpected new page %+v", page)
	}
}

func TestAutosaveDebounces(t *testing.T) {
	dir := t.TempDir()
	fs, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	clock := &fakeClock{}
	s := openSession(t, fs, clock)

	var saves []error
	s.OnSave(func(err error) { saves = append(saves, err) })

	s.PlaceKey("s", nil)
	s.PlaceKey("r", nil)
	s.AddText(score.TextElement{Text: "Intro"})
	if !s.Dirty() || !s.AutosavePending() {
		t.Fatal("expected dirty session with a pending autosave")
	}

	if fired := clock.Fire(); fired != 1 {
		t.Fatalf("expected one armed timer after a burst, got %d", fired)
	}
	if len(saves) != 1 || saves[0] != nil {
		t.Fatalf("expected one successful save, got %v", saves)
	}
	if s.Dirty() || s.LastSaved().IsZero() {
		t.Fatal("expected clean session after autosave")
	}

	page, err := fs.LoadPage(context.Background(), "proj", "page-a")
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	if len(page.Content.Notes) != 2 || len(page.Content.Texts) != 1 {
		t.Fatalf("expected saved content, got %+v", page.Content)
	}
}

func TestSwitchSupersedesPendingAutosave(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	clock := &fakeClock{}
	s := openSession(t, fs, clock)
	s.PlaceKey("s", nil)
	s.AddPage()

	if s.AutosavePending() {
		t.Fatal("expected switch to cancel the pending autosave")
	}
	if fired := clock.Fire(); fired != 0 {
		t.Fatalf("expected no armed timers, got %d", fired)
	}
	page, err := fs.LoadPage(context.Background(), "proj", "page-a")
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	if len(page.Content.Notes) != 1 {
		t.Fatalf("expected outgoing page saved synchronously, got %+v", page.Content)
	}
}

// flakyStore fails every page save while failing is set.
type flakyStore struct {
	store.Store
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *flakyStore) SavePageNotes(ctx context.Context, projectID, pageID string, notes []score.PlacedSymbol) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.SavePageNotes(ctx, projectID, pageID, notes)
}

func (f *flakyStore) SavePageMetadata(ctx context.Context, projectID, pageID string, meta store.PageMetadata) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.SavePageMetadata(ctx, projectID, pageID, meta)
}

func (f *flakyStore) SaveProject(ctx context.Context, p score.Project) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.SaveProject(ctx, p)
}

func TestPersistenceFailureKeepsLocalState(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	flaky := &flakyStore{Store: fs}
	reg := prometheus.NewRegistry()
	clock := &fakeClock{}
	s, err := Open(context.Background(), flaky, newProject(t, fs), Options{
		PageIDs:   idgen.Sequence("page-"),
		Metrics:   metrics.New(reg),
		AfterFunc: clock.AfterFunc,
		Strict:    true,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var saves []error
	s.OnSave(func(err error) { saves = append(saves, err) })

	flaky.setFailing(true)
	s.PlaceKey("s", nil)
	s.PlaceKey("r", nil)
	clock.Fire()
	if len(saves) != 1 || saves[0] == nil {
		t.Fatalf("expected a failed autosave, got %v", saves)
	}
	if !s.Dirty() {
		t.Fatal("expected session to stay dirty after failed save")
	}

	// Switching away and back must not replace local notes with the stale
	// stored page.
	s.AddPage()
	s.SwitchTo(0)
	if got := len(s.Snapshot().Notes); got != 2 {
		t.Fatalf("expected 2 local notes after failed saves, got %d", got)
	}

	flaky.setFailing(false)
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("save after recovery: %v", err)
	}
	page, err := fs.LoadPage(context.Background(), "proj", "page-a")
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	if len(page.Content.Notes) != 2 {
		t.Fatalf("expected recovered save to persist notes, got %+v", page.Content.Notes)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var failures float64
	for _, f := range families {
		if f.GetName() == "notation_persistence_failures_total" {
			for _, m := range f.GetMetric() {
				failures += m.GetCounter().GetValue()
			}
		}
	}
	if failures == 0 {
		t.Fatal("expected persistence failures counted")
	}
}

func TestCloseSavesAndStopsEditing(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	clock := &fakeClock{}
	s := openSession(t, fs, clock)
	s.PlaceKey("s", nil)

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if clock.Fire() != 0 {
		t.Fatal("expected close to cancel the autosave")
	}
	s.PlaceKey("r", nil)
	if got := len(s.Snapshot().Notes); got != 1 {
		t.Fatalf("expected edits after close to be ignored, got %d notes", got)
	}
	got, err := fs.LoadProject(context.Background(), "proj")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Pages[0].Content.Notes) != 1 {
		t.Fatalf("expected final save, got %+v", got.Pages[0].Content)
	}
}

func TestPlaceMIDIUsesCatalogOctave(t *testing.T) {
	s := openSession(t, nil, nil)
	n, ok := s.PlaceMIDI(62)
	if !ok {
		t.Fatal("expected MIDI 62 to map")
	}
	if n.Symbol.ID != "re" || n.Octave != 4 {
		t.Fatalf("unexpected MIDI note %+v", n)
	}
	if _, ok := s.PlaceKey("?", nil); ok {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestDefaultPageIDsArePrefixed(t *testing.T) {
	s, err := Open(context.Background(), nil, newProject(t, nil), Options{AutosaveDelay: -1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	i := s.AddPage()
	id := s.ActivePage().ID
	if s.Active() != i || !strings.HasPrefix(id, PageIDPrefix) || len(id) <= len(PageIDPrefix) {
		t.Fatalf("expected generated page id after %q, got %q", PageIDPrefix, id)
	}
}

func TestStateIsConsistentUnderConcurrentEdits(t *testing.T) {
	s := openSession(t, nil, nil)
	ref := score.SymbolRef{ID: "sa", Key: "s", Name: "Sa"}
	const edits = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < edits; i++ {
			s.AddNote(ref, nil, DefaultOctave)
		}
	}()

	for {
		st := s.State()
		n := len(st.Snapshot.Notes)
		if st.CanUndo != (n > 0) || st.Dirty != (n > 0) || st.CanRedo {
			t.Fatalf("inconsistent state with %d notes: %+v", n, st)
		}
		if st.Pages != 1 || st.Active != 0 {
			t.Fatalf("unexpected pages %d active %d", st.Pages, st.Active)
		}
		if n == edits {
			break
		}
	}
	wg.Wait()
}
