package sqlstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
	"github.com/treykane/cli-notation/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return OpenMemory(t)
	})
}

func TestAllocateIDIsUniqueAndPrefixed(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	first, err := s.AllocateID(ctx, "note")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	second, err := s.AllocateID(ctx, "note")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids, both %q", first)
	}
	if !strings.HasPrefix(first, "note-") {
		t.Fatalf("expected note- prefix, got %q", first)
	}
}

func TestSaveNotesOnUnknownPage(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	p := store.NewProject("proj", "Unknown page", score.ModeGeneral, score.DefaultMeta, "p1")
	if _, err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SavePageNotes(ctx, "proj", "ghost", nil); err == nil {
		t.Fatal("expected error for unknown page")
	}
}

func TestOpenFileDatabasePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "notation.db")
	s, err := Open(path, WithMkdirAll(), WithBusyTimeout(2000), WithSynchronous("FULL"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p := store.NewProject("proj", "Durable", score.ModeDNR, score.DefaultMeta, "p1")
	if _, err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.LoadProject(context.Background(), "proj")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if got.Mode != score.ModeDNR || len(got.Pages) != 1 {
		t.Fatalf("unexpected project after reopen: %+v", got)
	}
}
