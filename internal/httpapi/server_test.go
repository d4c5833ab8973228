package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/metrics"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	sess, err := session.Open(context.Background(), nil, score.Project{ID: "p", Name: "Demo"}, session.Options{
		AutosaveDelay: -1,
		ElementIDs:    idgen.Sequence("el-"),
		PageIDs:       idgen.Sequence("page-"),
		Metrics:       metrics.New(reg),
		Strict:        true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return New(sess, Options{Gatherer: reg, ExportDir: t.TempDir()})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateView {
	t.Helper()
	var st stateView
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, rec.Body.String())
	}
	return st
}

func TestAddNoteUndoRedo(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/notes", `{"key":"s"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add note: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodPost, "/api/notes", `{"key":"r","x":400,"y":300}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add note at point: %d %s", rec.Code, rec.Body.String())
	}

	st := decodeState(t, do(t, s, http.MethodGet, "/api/snapshot", ""))
	if len(st.Snapshot.Notes) != 2 || st.Snapshot.Notes[1].Y != 338 || !st.CanUndo {
		t.Fatalf("unexpected state %+v", st)
	}

	st = decodeState(t, do(t, s, http.MethodPost, "/api/undo", ""))
	if len(st.Snapshot.Notes) != 1 || !st.CanRedo {
		t.Fatalf("unexpected state after undo %+v", st)
	}
	st = decodeState(t, do(t, s, http.MethodPost, "/api/redo", ""))
	if len(st.Snapshot.Notes) != 2 || st.CanRedo {
		t.Fatalf("unexpected state after redo %+v", st)
	}
	if rec := do(t, s, http.MethodPost, "/api/redo", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict on empty redo, got %d", rec.Code)
	}
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"unknown key", http.MethodPost, "/api/notes", `{"key":"?"}`, http.StatusBadRequest},
		{"half point", http.MethodPost, "/api/notes", `{"key":"s","x":10}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/notes", `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/texts", `{"text":"a","colour":"red"}`, http.StatusBadRequest},
		{"empty text", http.MethodPost, "/api/texts", `{"text":""}`, http.StatusBadRequest},
		{"unknown glyph", http.MethodPost, "/api/articulations", `{"glyph":"zigzag"}`, http.StatusBadRequest},
		{"lyric without note", http.MethodPost, "/api/lyrics", `{"note_id":"nope","text":"la"}`, http.StatusNotFound},
		{"missing note", http.MethodDelete, "/api/notes/nope", "", http.StatusNotFound},
		{"midi out of range", http.MethodPost, "/api/midi", `{"note":200}`, http.StatusBadRequest},
		{"bad page index", http.MethodPost, "/api/pages/x/activate", "", http.StatusBadRequest},
		{"page out of range", http.MethodPost, "/api/pages/3/activate", "", http.StatusNotFound},
		{"unknown tool", http.MethodPost, "/api/click", `{"tool":"eraser"}`, http.StatusBadRequest},
		{"bad format", http.MethodGet, "/api/export?format=docx", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == nil {
				t.Fatalf("expected JSON error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestElementLifecycle(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/notes", `{"key":"s"}`)

	rec := do(t, s, http.MethodPost, "/api/texts", `{"text":"Alap","x":10,"y":20}`)
	var text score.TextElement
	if err := json.Unmarshal(rec.Body.Bytes(), &text); err != nil || text.ID == "" {
		t.Fatalf("add text: %v %s", err, rec.Body.String())
	}
	if rec := do(t, s, http.MethodPut, "/api/texts/"+text.ID, `{"text":"Jor","x":10,"y":20}`); rec.Code != http.StatusOK {
		t.Fatalf("update text: %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/articulations", `{"glyph":"tie","x":50,"y":200}`)
	var art score.ArticulationElement
	if err := json.Unmarshal(rec.Body.Bytes(), &art); err != nil {
		t.Fatalf("add articulation: %v", err)
	}
	if !art.Extensible || art.Width <= 0 || art.Height <= 0 {
		t.Fatalf("expected sized tie, got %+v", art)
	}

	st := decodeState(t, do(t, s, http.MethodGet, "/api/snapshot", ""))
	if len(st.Snapshot.Notes) != 1 || st.Snapshot.Texts[0].Text != "Jor" {
		t.Fatalf("unexpected snapshot %+v", st.Snapshot)
	}

	if rec := do(t, s, http.MethodDelete, "/api/articulations/"+art.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("remove articulation: %d", rec.Code)
	}
	st = decodeState(t, do(t, s, http.MethodDelete, "/api/notes/last", ""))
	if len(st.Snapshot.Notes) != 0 || len(st.Snapshot.Texts) != 1 {
		t.Fatalf("unexpected snapshot after delete last %+v", st.Snapshot)
	}
	if rec := do(t, s, http.MethodDelete, "/api/notes/last", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict deleting from empty page, got %d", rec.Code)
	}
}

func TestPages(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/notes", `{"key":"s"}`)
	do(t, s, http.MethodPost, "/api/notes", `{"key":"r"}`)

	st := decodeState(t, do(t, s, http.MethodPost, "/api/pages", ""))
	if st.Active != 1 || st.Pages != 2 || len(st.Snapshot.Notes) != 0 {
		t.Fatalf("unexpected state after add page %+v", st)
	}
	st = decodeState(t, do(t, s, http.MethodPost, "/api/pages/0/activate", ""))
	if st.Active != 0 || len(st.Snapshot.Notes) != 2 || st.CanUndo {
		t.Fatalf("unexpected state after activate %+v", st)
	}
	if rec := do(t, s, http.MethodDelete, "/api/pages/1", ""); rec.Code != http.StatusOK {
		t.Fatalf("remove page: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/pages/0", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict removing the last page, got %d", rec.Code)
	}
}

func TestMIDIAndTools(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/midi", `{"note":67}`)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"pa"`) {
		t.Fatalf("midi: %d %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, do(t, s, http.MethodPost, "/api/drag",
		`{"tool":"highlighter","color":"#ff0","opacity":0.3,"from":{"x":10,"y":10},"to":{"x":60,"y":40}}`))
	if len(st.Snapshot.Highlights) != 1 || st.Snapshot.Highlights[0].Width != 50 {
		t.Fatalf("unexpected highlight %+v", st.Snapshot.Highlights)
	}
	st = decodeState(t, do(t, s, http.MethodPost, "/api/click", `{"tool":"text","text":"Taan","at":{"x":5,"y":5}}`))
	if len(st.Snapshot.Texts) != 1 {
		t.Fatalf("unexpected texts %+v", st.Snapshot.Texts)
	}
}

func TestExportAndMetrics(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/notes", `{"key":"s"}`)

	rec := do(t, s, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# Demo") {
		t.Fatalf("markdown export: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodGet, "/api/export?format=html", "")
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") || !strings.Contains(rec.Body.String(), "<h1>Demo</h1>") {
		t.Fatalf("html export: %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/export?format=md", "")
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out["path"] == "" {
		t.Fatalf("export file: %v %s", err, rec.Body.String())
	}
	if _, err := os.Stat(out["path"]); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}

	rec = do(t, s, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), `notation_history_transitions_total{kind="push"} 1`) {
		t.Fatalf("expected push counter in metrics:\n%s", rec.Body.String())
	}
}

func TestSaveWithoutStore(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/notes", `{"key":"s"}`)
	rec := do(t, s, http.MethodPost, "/api/save", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, do(t, s, http.MethodGet, "/api/snapshot", "")); st.Dirty {
		t.Fatal("expected clean state after save")
	}
}
