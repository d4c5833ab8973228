package app

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/cli-notation/internal/config"
	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/session"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	sess, err := session.Open(context.Background(), nil, score.Project{ID: "p1", Name: "Test"}, session.Options{
		AutosaveDelay: -1,
		Strict:        true,
		ElementIDs:    idgen.Sequence("e"),
		PageIDs:       idgen.Sequence("page"),
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close(context.Background()) })

	m := New(sess, config.Default(t.TempDir()))
	m.width, m.height = 100, 40
	m.updateLayout()
	return m
}

func typeKeys(m *Model, keys ...tea.KeyMsg) {
	for _, k := range keys {
		m.Update(k)
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyOf(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}
