// Package storetest holds the behaviour every store.Store must share. Each
// backend's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
)

// Run exercises the store contract against stores built by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("create and load", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		p := sampleProject()
		id, err := s.CreateProject(ctx, p)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id != p.ID {
			t.Fatalf("expected id %q kept, got %q", p.ID, id)
		}

		got, err := s.LoadProject(ctx, id)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Name != p.Name || got.Mode != p.Mode || got.Defaults != p.Defaults {
			t.Fatalf("header mismatch: got %+v", got)
		}
		if len(got.Pages) != 2 || got.Pages[0].ID != "p1" || got.Pages[1].ID != "p2" {
			t.Fatalf("expected pages p1,p2 in order, got %+v", got.Pages)
		}
		if !got.Pages[0].Content.Equal(p.Pages[0].Content) {
			t.Fatalf("page content mismatch: got %+v", got.Pages[0].Content)
		}
	})

	t.Run("create assigns id", func(t *testing.T) {
		s := open(t)
		p := sampleProject()
		p.ID = ""
		id, err := s.CreateProject(context.Background(), p)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id == "" {
			t.Fatal("expected assigned id")
		}
	})

	t.Run("missing project", func(t *testing.T) {
		s := open(t)
		if _, err := s.LoadProject(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteProject(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on delete, got %v", err)
		}
	})

	t.Run("save notes and metadata", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		p := sampleProject()
		if _, err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}

		notes := []score.PlacedSymbol{{ID: "n9", X: 300, Y: 446, Stave: 2}}
		if err := s.SavePageNotes(ctx, p.ID, "p2", notes); err != nil {
			t.Fatalf("save notes: %v", err)
		}
		meta := store.PageMetadata{
			Texts:      []score.TextElement{{ID: "t1", Text: "Alap", X: 10, Y: 20, Bold: true}},
			Lyrics:     []score.LyricElement{{ID: "l1", NoteID: "n9", Text: "la"}},
			Highlights: []score.HighlighterElement{{ID: "h1", Width: 5, Height: 5, Color: "#ff0", Opacity: 0.4}},
		}
		if err := s.SavePageMetadata(ctx, p.ID, "p2", meta); err != nil {
			t.Fatalf("save metadata: %v", err)
		}

		page, err := s.LoadPage(ctx, p.ID, "p2")
		if err != nil {
			t.Fatalf("load page: %v", err)
		}
		want := score.Content{Notes: notes}
		meta.Apply(&want)
		if !page.Content.Equal(want) {
			t.Fatalf("expected %+v, got %+v", want, page.Content)
		}
		// The sibling page is untouched.
		other, err := s.LoadPage(ctx, p.ID, "p1")
		if err != nil {
			t.Fatalf("load p1: %v", err)
		}
		if !other.Content.Equal(p.Pages[0].Content) {
			t.Fatalf("expected p1 unchanged, got %+v", other.Content)
		}
	})

	t.Run("save project replaces page list", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		p := sampleProject()
		if _, err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
		p.Name = "Renamed"
		p.Pages = []score.Page{p.Pages[1], {ID: "p3", Title: "Page 3", Meta: p.Defaults}}
		if err := s.SaveProject(ctx, p); err != nil {
			t.Fatalf("save project: %v", err)
		}

		got, err := s.LoadProject(ctx, p.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Name != "Renamed" || len(got.Pages) != 2 || got.Pages[0].ID != "p2" || got.Pages[1].ID != "p3" {
			t.Fatalf("unexpected project after save: %+v", got)
		}
		if _, err := s.LoadPage(ctx, p.ID, "p1"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected dropped page to be gone, got %v", err)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		p := sampleProject()
		if _, err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
		list, err := s.ListProjects(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 || list[0].ID != p.ID || list[0].Pages != 2 {
			t.Fatalf("unexpected listing %+v", list)
		}
		if err := s.DeleteProject(ctx, p.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.LoadProject(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected deleted project gone, got %v", err)
		}
	})
}

func sampleProject() score.Project {
	p := store.NewProject("proj-1", "Raga Yaman", score.ModeGeneral, score.DefaultMeta, "p1")
	p.Pages[0].Content = score.Content{
		Notes: []score.PlacedSymbol{
			{ID: "n1", Symbol: score.SymbolRef{ID: "sa", Key: "s", Name: "Sa"}, X: 60, Y: 230},
			{ID: "n2", Symbol: score.SymbolRef{ID: "re", Key: "r", Name: "Re"}, X: 110, Y: 230, Octave: 4, Flipped: true},
		},
		Articulations: []score.ArticulationElement{{ID: "a1", Glyph: score.TieGlyph, Extensible: true, Width: 80, Height: 40}},
	}
	p.Pages = append(p.Pages, score.Page{ID: "p2", Title: store.PageTitle(1), Meta: p.Defaults})
	return p
}
