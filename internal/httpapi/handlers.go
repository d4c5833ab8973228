package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/treykane/cli-notation/internal/editor"
	"github.com/treykane/cli-notation/internal/export"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

// stateView is returned by every call that changes which snapshot is
// current.
type stateView struct {
	Active   int              `json:"active"`
	Pages    int              `json:"pages"`
	Snapshot score.Content    `json:"snapshot"`
	Cursor   placement.Cursor `json:"cursor"`
	CanUndo  bool             `json:"can_undo"`
	CanRedo  bool             `json:"can_redo"`
	Dirty    bool             `json:"dirty"`
}

func (s *Server) state() stateView {
	st := s.sess.State()
	return stateView{
		Active:   st.Active,
		Pages:    st.Pages,
		Snapshot: st.Snapshot.Content,
		Cursor:   st.Cursor,
		CanUndo:  st.CanUndo,
		CanRedo:  st.CanRedo,
		Dirty:    st.Dirty,
	}
}

func (s *Server) writeState(w http.ResponseWriter, changed bool) {
	if !changed {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "nothing to do", "state": s.state()})
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Project())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.sess.Catalog()
	mode := s.sess.Mode()
	symbols := make([]score.SymbolRef, 0)
	for _, key := range cat.Keys(mode) {
		if ref, ok := cat.LookupByKey(mode, key); ok {
			symbols = append(symbols, ref)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":          mode,
		"symbols":       symbols,
		"articulations": cat.Articulations(),
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.sess.Undo())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.sess.Redo())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.sess.Clear())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Save(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved_at": s.sess.LastSaved()})
}

// Notes

type addNoteRequest struct {
	Key    string   `json:"key"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Octave *int     `json:"octave,omitempty"`
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req addNoteRequest
	if !decode(w, r, &req) {
		return
	}
	ref, ok := s.sess.Catalog().LookupByKey(s.sess.Mode(), req.Key)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown key "+strconv.Quote(req.Key))
		return
	}
	var at *placement.Point
	if req.X != nil || req.Y != nil {
		if req.X == nil || req.Y == nil {
			writeError(w, http.StatusBadRequest, "x and y must be given together")
			return
		}
		at = &placement.Point{X: *req.X, Y: *req.Y}
	}
	octave := 4
	if req.Octave != nil {
		octave = *req.Octave
	}
	note := s.sess.AddNote(ref, at, octave)
	writeJSON(w, http.StatusCreated, map[string]any{"note": note, "cursor": s.sess.Cursor()})
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note int `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}
	note, ok := s.sess.PlaceMIDI(req.Note)
	if !ok {
		writeError(w, http.StatusBadRequest, "no symbol for midi note "+strconv.Itoa(req.Note))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"note": note, "cursor": s.sess.Cursor()})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var n score.PlacedSymbol
	if !decode(w, r, &n) {
		return
	}
	n.ID = chi.URLParam(r, "id")
	s.found(w, s.sess.UpdateNote(n))
}

func (s *Server) handleMoveNote(w http.ResponseWriter, r *http.Request) {
	var to placement.Point
	if !decode(w, r, &to) {
		return
	}
	s.found(w, s.sess.MoveNote(chi.URLParam(r, "id"), to))
}

func (s *Server) handleRemoveNote(w http.ResponseWriter, r *http.Request) {
	s.found(w, s.sess.RemoveNote(chi.URLParam(r, "id")))
}

func (s *Server) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.sess.DeleteLast())
}

// found maps an id-keyed result: false means the id did not exist.
func (s *Server) found(w http.ResponseWriter, ok bool) {
	if !ok {
		writeError(w, http.StatusNotFound, "element not found")
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// Text

func (s *Server) handleAddText(w http.ResponseWriter, r *http.Request) {
	var t score.TextElement
	if !decode(w, r, &t) {
		return
	}
	if t.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	t.ID = ""
	writeJSON(w, http.StatusCreated, s.sess.AddText(t))
}

func (s *Server) handleUpdateText(w http.ResponseWriter, r *http.Request) {
	var t score.TextElement
	if !decode(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "id")
	s.found(w, s.sess.UpdateText(t))
}

func (s *Server) handleRemoveText(w http.ResponseWriter, r *http.Request) {
	s.found(w, s.sess.RemoveText(chi.URLParam(r, "id")))
}

// Articulations

func (s *Server) handleAddArticulation(w http.ResponseWriter, r *http.Request) {
	var a score.ArticulationElement
	if !decode(w, r, &a) {
		return
	}
	known, ok := s.sess.Catalog().Articulation(a.Glyph)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown articulation "+strconv.Quote(a.Glyph))
		return
	}
	a.ID = ""
	a.Extensible = known.Extensible
	writeJSON(w, http.StatusCreated, s.sess.AddArticulation(a))
}

func (s *Server) handleUpdateArticulation(w http.ResponseWriter, r *http.Request) {
	var a score.ArticulationElement
	if !decode(w, r, &a) {
		return
	}
	a.ID = chi.URLParam(r, "id")
	s.found(w, s.sess.UpdateArticulation(a))
}

func (s *Server) handleRemoveArticulation(w http.ResponseWriter, r *http.Request) {
	s.found(w, s.sess.RemoveArticulation(chi.URLParam(r, "id")))
}

// Lyrics

func (s *Server) handleAddLyric(w http.ResponseWriter, r *http.Request) {
	var l score.LyricElement
	if !decode(w, r, &l) {
		return
	}
	l.ID = ""
	added, ok := s.sess.AddLyric(l)
	if !ok {
		writeError(w, http.StatusNotFound, "note "+strconv.Quote(l.NoteID)+" not found")
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateLyric(w http.ResponseWriter, r *http.Request) {
	var l score.LyricElement
	if !decode(w, r, &l) {
		return
	}
	l.ID = chi.URLParam(r, "id")
	s.found(w, s.sess.UpdateLyric(l))
}

func (s *Server) handleRemoveLyric(w http.ResponseWriter, r *http.Request) {
	s.found(w, s.sess.RemoveLyric(chi.URLParam(r, "id")))
}

// Highlights

func (s *Server) handleAddHighlight(w http.ResponseWriter, r *http.Request) {
	var h score.HighlighterElement
	if !decode(w, r, &h) {
		return
	}
	h.ID = ""
	writeJSON(w, http.StatusCreated, s.sess.AddHighlight(h))
}

func (s *Server) handleUpdateHighlight(w http.ResponseWriter, r *http.Request) {
	var h score.HighlighterElement
	if !decode(w, r, &h) {
		return
	}
	h.ID = chi.URLParam(r, "id")
	s.found(w, s.sess.UpdateHighlight(h))
}

func (s *Server) handleRemoveHighlight(w http.ResponseWriter, r *http.Request) {
	s.found(w, s.sess.RemoveHighlight(chi.URLParam(r, "id")))
}

// Tools

type toolRequest struct {
	Tool    string          `json:"tool"`
	Key     string          `json:"key,omitempty"`
	Text    string          `json:"text,omitempty"`
	Glyph   string          `json:"glyph,omitempty"`
	Color   string          `json:"color,omitempty"`
	Opacity float64         `json:"opacity,omitempty"`
	At      placement.Point `json:"at"`
	From    placement.Point `json:"from"`
	To      placement.Point `json:"to"`
	Octave  int             `json:"octave,omitempty"`
}

func (s *Server) tool(w http.ResponseWriter, req toolRequest) (editor.Tool, bool) {
	kind, ok := editor.ParseToolKind(req.Tool)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown tool "+strconv.Quote(req.Tool))
		return editor.Tool{}, false
	}
	t := editor.Tool{Kind: kind, Text: req.Text, Glyph: req.Glyph, Color: req.Color, Opacity: req.Opacity, Octave: req.Octave}
	if t.Octave == 0 {
		t.Octave = 4
	}
	if req.Key != "" {
		ref, ok := s.sess.Catalog().LookupByKey(s.sess.Mode(), req.Key)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown key "+strconv.Quote(req.Key))
			return editor.Tool{}, false
		}
		t.Symbol = ref
	}
	if req.Glyph != "" {
		if a, ok := s.sess.Catalog().Articulation(req.Glyph); ok {
			t.Extensible = a.Extensible
		}
	}
	return t, true
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if !decode(w, r, &req) {
		return
	}
	t, ok := s.tool(w, req)
	if !ok {
		return
	}
	s.writeState(w, s.sess.Click(t, req.At))
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if !decode(w, r, &req) {
		return
	}
	t, ok := s.tool(w, req)
	if !ok {
		return
	}
	s.writeState(w, s.sess.Drag(t, req.From, req.To))
}

// Pages

func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	s.sess.AddPage()
	writeJSON(w, http.StatusCreated, s.state())
}

func pageIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page index must be an integer")
		return 0, false
	}
	return i, true
}

func (s *Server) handleRemovePage(w http.ResponseWriter, r *http.Request) {
	i, ok := pageIndex(w, r)
	if !ok {
		return
	}
	s.writeState(w, s.sess.RemovePage(i))
}

func (s *Server) handleActivatePage(w http.ResponseWriter, r *http.Request) {
	i, ok := pageIndex(w, r)
	if !ok {
		return
	}
	if i < 0 || i >= s.sess.PageCount() {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}
	s.sess.SwitchTo(i)
	writeJSON(w, http.StatusOK, s.state())
}

// Export

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	md := export.Markdown(s.sess.Project())
	body := md
	switch format {
	case export.FormatHTML:
		if body, err = export.HTML(md); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case export.FormatPDF:
		writeError(w, http.StatusBadRequest, "pdf is written to disk: use POST /api/export?format=pdf")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleExportFile(w http.ResponseWriter, r *http.Request) {
	if s.exportDir == "" {
		writeError(w, http.StatusNotImplemented, "no export directory configured")
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := export.Write(r.Context(), s.sess.Project(), s.exportDir, format)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, export.ErrPandocMissing) {
			status = http.StatusNotImplemented
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}
