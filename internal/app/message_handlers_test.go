package app

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSaveResultsReachTheModel(t *testing.T) {
	m := newTestModel(t)
	typeKeys(m, runes("s"))

	if err := m.sess.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	msg := waitForSave(m.saves)()
	_, cmd := m.Update(msg)
	if m.status != "Saved" {
		t.Fatalf("unexpected status %q", m.status)
	}
	if cmd == nil {
		t.Fatal("expected the model to wait for the next save")
	}
	if m.sess.Dirty() {
		t.Fatal("expected a clean session after save")
	}
}

func TestSaveFailureKeepsEditing(t *testing.T) {
	m := newTestModel(t)
	m.Update(saveResultMsg{err: errors.New("disk full")})
	if !strings.HasPrefix(m.status, "Save failed") {
		t.Fatalf("unexpected status %q", m.status)
	}
	typeKeys(m, runes("s"))
	if len(m.sess.Snapshot().Content.Notes) != 1 {
		t.Fatal("expected editing to continue after a failed save")
	}
}

func TestNotifySaveNeverBlocks(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < cap(m.saves)+3; i++ {
		m.notifySave(nil)
	}
	if len(m.saves) != cap(m.saves) {
		t.Fatalf("expected a full buffer, got %d", len(m.saves))
	}
}
