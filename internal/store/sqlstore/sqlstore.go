// Package sqlstore keeps projects in SQLite through the pure-Go
// modernc.org/sqlite driver.
//
// Pages are rows ordered by position. Notes and the remaining collections
// are stored as JSON columns so the two save paths touch one column each.
// The store also hands out element ids from an autoincrement table, which
// makes it an IDAllocator.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	mode          TEXT NOT NULL,
	defaults_json TEXT NOT NULL DEFAULT '{}',
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	id            TEXT NOT NULL,
	position      INTEGER NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	meta_json     TEXT NOT NULL DEFAULT '{}',
	notes_json    TEXT NOT NULL DEFAULT '[]',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (project_id, id)
);
CREATE INDEX IF NOT EXISTS idx_pages_order ON pages(project_id, position);

CREATE TABLE IF NOT EXISTS element_ids (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

type config struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
}

func defaults() config {
	return config{busyTimeout: 10_000, synchronous: "NORMAL"}
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates the parent directory of the database first.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// Store is a store.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	ids idgen.Generator
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.IDAllocator = (*Store)(nil)
)

// Open opens (and migrates) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return &Store{db: db, ids: idgen.Default}, nil
}

// OpenMemory opens an in-memory store that is closed when the test ends.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("sqlstore.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateProject inserts the project and its pages.
func (s *Store) CreateProject(ctx context.Context, p score.Project) (string, error) {
	if p.ID == "" {
		p.ID = s.ids()
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		defaultsJSON, err := json.Marshal(p.Defaults)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, mode, defaults_json, updated_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, string(p.Mode), string(defaultsJSON), time.Now().UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		return insertPages(ctx, tx, p)
	})
	if err != nil {
		return "", fmt.Errorf("sqlstore: create project %q: %w", p.ID, err)
	}
	return p.ID, nil
}

// LoadProject reads the header and all pages in order.
func (s *Store) LoadProject(ctx context.Context, id string) (score.Project, error) {
	var (
		p            score.Project
		mode         string
		defaultsJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, mode, defaults_json FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &mode, &defaultsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("sqlstore: project %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("sqlstore: load project %q: %w", id, err)
	}
	p.Mode = score.Mode(mode)
	if err := json.Unmarshal([]byte(defaultsJSON), &p.Defaults); err != nil {
		return p, fmt.Errorf("sqlstore: parse defaults of %q: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, meta_json, notes_json, metadata_json
		 FROM pages WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return p, fmt.Errorf("sqlstore: load pages of %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return p, fmt.Errorf("sqlstore: scan page of %q: %w", id, err)
		}
		p.Pages = append(p.Pages, page)
	}
	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("sqlstore: iterate pages of %q: %w", id, err)
	}
	return p, nil
}

// SaveProject rewrites the header and replaces the page rows.
func (s *Store) SaveProject(ctx context.Context, p score.Project) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		defaultsJSON, err := json.Marshal(p.Defaults)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, mode = ?, defaults_json = ?, updated_at = ? WHERE id = ?`,
			p.Name, string(p.Mode), string(defaultsJSON), time.Now().UnixMilli(), p.ID)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE project_id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear pages: %w", err)
		}
		return insertPages(ctx, tx, p)
	})
	if err != nil {
		return fmt.Errorf("sqlstore: save project %q: %w", p.ID, err)
	}
	return nil
}

// DeleteProject removes the project; pages go with it by cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete project %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlstore: project %q: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListProjects returns every project, most recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]store.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.mode, p.updated_at, COUNT(pg.id)
		FROM projects p LEFT JOIN pages pg ON pg.project_id = p.id
		GROUP BY p.id
		ORDER BY p.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list projects: %w", err)
	}
	defer rows.Close()

	var out []store.ProjectSummary
	for rows.Next() {
		var (
			sum     store.ProjectSummary
			mode    string
			updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &mode, &updated, &sum.Pages); err != nil {
			return nil, fmt.Errorf("sqlstore: scan project: %w", err)
		}
		sum.Mode = score.Mode(mode)
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// LoadPage reads one page.
func (s *Store) LoadPage(ctx context.Context, projectID, pageID string) (score.Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, meta_json, notes_json, metadata_json
		 FROM pages WHERE project_id = ? AND id = ?`, projectID, pageID)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return page, fmt.Errorf("sqlstore: page %q: %w", pageID, store.ErrNotFound)
	}
	if err != nil {
		return page, fmt.Errorf("sqlstore: load page %q: %w", pageID, err)
	}
	return page, nil
}

// SavePageNotes replaces the notes column of one page.
func (s *Store) SavePageNotes(ctx context.Context, projectID, pageID string, notes []score.PlacedSymbol) error {
	if notes == nil {
		notes = []score.PlacedSymbol{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("sqlstore: encode notes: %w", err)
	}
	return s.updatePageColumn(ctx, projectID, pageID, "notes_json", string(data))
}

// SavePageMetadata replaces the metadata column of one page.
func (s *Store) SavePageMetadata(ctx context.Context, projectID, pageID string, meta store.PageMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sqlstore: encode metadata: %w", err)
	}
	return s.updatePageColumn(ctx, projectID, pageID, "metadata_json", string(data))
}

// AllocateID hands out a database-unique id for a new element.
func (s *Store) AllocateID(ctx context.Context, kind string) (string, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO element_ids (kind, created_at) VALUES (?, ?)`, kind, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("sqlstore: allocate id: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("sqlstore: allocate id: %w", err)
	}
	return kind + "-" + strconv.FormatInt(seq, 10), nil
}

// updatePageColumn writes one JSON column. column is never user input.
func (s *Store) updatePageColumn(ctx context.Context, projectID, pageID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pages SET `+column+` = ?, updated_at = ? WHERE project_id = ? AND id = ?`,
		value, time.Now().UnixMilli(), projectID, pageID)
	if err != nil {
		return fmt.Errorf("sqlstore: save %s of page %q: %w", column, pageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlstore: page %q: %w", pageID, store.ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`, time.Now().UnixMilli(), projectID); err != nil {
		return fmt.Errorf("sqlstore: touch project %q: %w", projectID, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertPages(ctx context.Context, tx *sql.Tx, p score.Project) error {
	now := time.Now().UnixMilli()
	for i, page := range p.Pages {
		metaJSON, err := json.Marshal(page.Meta)
		if err != nil {
			return err
		}
		notes := page.Content.Notes
		if notes == nil {
			notes = []score.PlacedSymbol{}
		}
		notesJSON, err := json.Marshal(notes)
		if err != nil {
			return err
		}
		metadataJSON, err := json.Marshal(store.MetadataOf(page.Content))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pages (project_id, id, position, title, meta_json, notes_json, metadata_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, page.ID, i, page.Title, string(metaJSON), string(notesJSON), string(metadataJSON), now,
		); err != nil {
			return fmt.Errorf("insert page %q: %w", page.ID, err)
		}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(r rowScanner) (score.Page, error) {
	var page score.Page
	var metaJSON, notesJSON, metadataJSON string
	if err := r.Scan(&page.ID, &page.Title, &metaJSON, &notesJSON, &metadataJSON); err != nil {
		return page, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &page.Meta); err != nil {
		return page, fmt.Errorf("parse meta: %w", err)
	}
	if err := json.Unmarshal([]byte(notesJSON), &page.Content.Notes); err != nil {
		return page, fmt.Errorf("parse notes: %w", err)
	}
	var meta store.PageMetadata
	if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
		return page, fmt.Errorf("parse metadata: %w", err)
	}
	meta.Apply(&page.Content)
	return page, nil
}
