package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
	"github.com/treykane/cli-notation/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("new filestore: %v", err)
		}
		return s
	})
}

func TestLayoutOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	p := store.NewProject("proj", "Layout", score.ModeDNR, score.Meta{}, "page-a")
	if _, err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, rel := range []string{
		filepath.Join("projects", "proj", "project.json"),
		filepath.Join("projects", "proj", "pages", "page-a.json"),
	} {
		info, err := os.Stat(filepath.Join(dir, rel))
		if err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
		if perm := info.Mode().Perm(); perm != filePermission {
			t.Fatalf("expected %s mode %o, got %o", rel, filePermission, perm)
		}
	}
}

func TestLoadProjectToleratesMissingPageFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	p := store.NewProject("proj", "Gaps", score.ModeGeneral, score.DefaultMeta, "p1")
	if _, err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.Remove(s.pagePath("proj", "p1")); err != nil {
		t.Fatalf("remove page file: %v", err)
	}

	got, err := s.LoadProject(context.Background(), "proj")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Pages) != 1 || !got.Pages[0].Content.IsEmpty() {
		t.Fatalf("expected one empty page, got %+v", got.Pages)
	}
}

func TestCreateRejectsExistingProject(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	p := store.NewProject("dup", "Dup", score.ModeGeneral, score.DefaultMeta, "p1")
	if _, err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateProject(context.Background(), p); err == nil {
		t.Fatal("expected error creating the same project twice")
	}
}

func TestCancelledContext(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SavePageNotes(ctx, "p", "x", nil); err == nil {
		t.Fatal("expected cancelled context error")
	}
}

func TestRejectsIDsThatEscapeTheRoot(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	ctx := context.Background()

	for _, id := range []string{"../x", "..", "a/b", `a\b`, " "} {
		t.Run(id, func(t *testing.T) {
			p := store.NewProject(id, "Escape", score.ModeGeneral, score.Meta{}, "page-a")
			if _, err := s.CreateProject(ctx, p); !errors.Is(err, store.ErrInvalidID) {
				t.Fatalf("create %q: expected ErrInvalidID, got %v", id, err)
			}
			if _, err := s.LoadProject(ctx, id); !errors.Is(err, store.ErrInvalidID) {
				t.Fatalf("load %q: expected ErrInvalidID, got %v", id, err)
			}
			if err := s.DeleteProject(ctx, id); !errors.Is(err, store.ErrInvalidID) {
				t.Fatalf("delete %q: expected ErrInvalidID, got %v", id, err)
			}
		})
	}

	p := store.NewProject("proj", "Pages", score.ModeGeneral, score.Meta{}, "../../page")
	if _, err := s.CreateProject(ctx, p); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("expected page id rejected, got %v", err)
	}
	if _, err := s.LoadPage(ctx, "proj", "../proj"); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("expected page id rejected on load, got %v", err)
	}
	if err := s.SavePageNotes(ctx, "..", "page-a", nil); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("expected project id rejected on save, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "x")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing written outside the data dir, stat err %v", err)
	}
}
