// Package httpapi exposes an open session over HTTP so other front ends and
// MIDI bridges can drive the editor. Every handler is one session call; the
// session serializes them.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/session"
)

var apiLog = logging.New("httpapi")

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// Gatherer backs GET /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	// ExportDir receives files written by POST /api/export.
	ExportDir string
}

// Server routes HTTP requests to one session.
type Server struct {
	sess      *session.Session
	router    *chi.Mux
	exportDir string
}

// New builds the router.
func New(sess *session.Session, opts Options) *Server {
	s := &Server{sess: sess, router: chi.NewRouter(), exportDir: opts.ExportDir}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/project", s.handleProject)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/catalog", s.handleCatalog)
		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)
		r.Post("/clear", s.handleClear)
		r.Post("/save", s.handleSave)
		r.Post("/midi", s.handleMIDI)
		r.Post("/click", s.handleClick)
		r.Post("/drag", s.handleDrag)

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", s.handleAddNote)
			r.Delete("/last", s.handleDeleteLast)
			r.Put("/{id}", s.handleUpdateNote)
			r.Post("/{id}/move", s.handleMoveNote)
			r.Delete("/{id}", s.handleRemoveNote)
		})
		r.Route("/texts", func(r chi.Router) {
			r.Post("/", s.handleAddText)
			r.Put("/{id}", s.handleUpdateText)
			r.Delete("/{id}", s.handleRemoveText)
		})
		r.Route("/articulations", func(r chi.Router) {
			r.Post("/", s.handleAddArticulation)
			r.Put("/{id}", s.handleUpdateArticulation)
			r.Delete("/{id}", s.handleRemoveArticulation)
		})
		r.Route("/lyrics", func(r chi.Router) {
			r.Post("/", s.handleAddLyric)
			r.Put("/{id}", s.handleUpdateLyric)
			r.Delete("/{id}", s.handleRemoveLyric)
		})
		r.Route("/highlights", func(r chi.Router) {
			r.Post("/", s.handleAddHighlight)
			r.Put("/{id}", s.handleUpdateHighlight)
			r.Delete("/{id}", s.handleRemoveHighlight)
		})
		r.Route("/pages", func(r chi.Router) {
			r.Post("/", s.handleAddPage)
			r.Delete("/{index}", s.handleRemovePage)
			r.Post("/{index}/activate", s.handleActivatePage)
		})
		r.Get("/export", s.handleExport)
		r.Post("/export", s.handleExportFile)
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		apiLog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		apiLog.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		apiLog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
