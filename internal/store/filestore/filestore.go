// Package filestore keeps projects as JSON files on the local device.
//
// Layout under the data directory:
//
//	projects/<project-id>/project.json     header and ordered page list
//	projects/<project-id>/pages/<id>.json  one page's content
//
// Page content lives in its own file so saving one page's notes rewrites
// only that file. Every write goes to a temp file first and is renamed into
// place, so a crash mid-write leaves the previous version intact.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
)

const (
	projectsDirName = "projects"
	pagesDirName    = "pages"
	projectFileName = "project.json"

	dirPermission  = 0o700
	filePermission = 0o600
)

var storeLog = logging.New("filestore")

// pageRef is a page entry in project.json; content lives in the page file.
type pageRef struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Meta  score.Meta `json:"meta"`
}

type projectFile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Mode      score.Mode `json:"mode"`
	Defaults  score.Meta `json:"defaults"`
	Pages     []pageRef  `json:"pages"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type pageFile struct {
	ID        string        `json:"id"`
	Content   score.Content `json:"content"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store is a store.Store backed by JSON files. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	root string
	ids  idgen.Generator
}

var _ store.Store = (*Store)(nil)

// New returns a store rooted at dir, creating it when missing.
func New(dir string) (*Store, error) {
	root := filepath.Join(dir, projectsDirName)
	if err := os.MkdirAll(root, dirPermission); err != nil {
		return nil, fmt.Errorf("filestore: mkdir %q: %w", root, err)
	}
	return &Store{root: root, ids: idgen.Default}, nil
}

func checkIDs(ids ...string) error {
	for _, id := range ids {
		if err := store.CheckID(id); err != nil {
			return fmt.Errorf("filestore: %w", err)
		}
	}
	return nil
}

func checkProject(p score.Project) error {
	ids := []string{p.ID}
	for _, page := range p.Pages {
		ids = append(ids, page.ID)
	}
	return checkIDs(ids...)
}

func (s *Store) projectDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) projectPath(id string) string {
	return filepath.Join(s.projectDir(id), projectFileName)
}

func (s *Store) pagePath(projectID, pageID string) string {
	return filepath.Join(s.projectDir(projectID), pagesDirName, pageID+".json")
}

// CreateProject writes a new project.
func (s *Store) CreateProject(ctx context.Context, p score.Project) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.ids()
	}
	if err := checkProject(p); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.projectPath(p.ID)); err == nil {
		return "", fmt.Errorf("filestore: project %q already exists", p.ID)
	}
	if err := s.writeProjectLocked(p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// LoadProject reads the header and every page file.
func (s *Store) LoadProject(ctx context.Context, id string) (score.Project, error) {
	if err := ctx.Err(); err != nil {
		return score.Project{}, err
	}
	if err := checkIDs(id); err != nil {
		return score.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.readProjectLocked(id)
	if err != nil {
		return score.Project{}, err
	}
	p := score.Project{
		ID:       pf.ID,
		Name:     pf.Name,
		Mode:     pf.Mode,
		Defaults: pf.Defaults,
		Pages:    make([]score.Page, 0, len(pf.Pages)),
	}
	for _, ref := range pf.Pages {
		page := score.Page{ID: ref.ID, Title: ref.Title, Meta: ref.Meta}
		content, err := s.readPageLocked(id, ref.ID)
		switch {
		case err == nil:
			page.Content = content
		case errors.Is(err, store.ErrNotFound):
			// A page listed before its first save is simply empty.
		default:
			return score.Project{}, err
		}
		p.Pages = append(p.Pages, page)
	}
	return p, nil
}

// SaveProject rewrites the header and all page files, removing page files
// that are no longer listed.
func (s *Store) SaveProject(ctx context.Context, p score.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkProject(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.projectPath(p.ID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("filestore: project %q: %w", p.ID, store.ErrNotFound)
		}
		return fmt.Errorf("filestore: stat project %q: %w", p.ID, err)
	}
	if err := s.writeProjectLocked(p); err != nil {
		return err
	}

	keep := make(map[string]bool, len(p.Pages))
	for _, page := range p.Pages {
		keep[page.ID+".json"] = true
	}
	pagesDir := filepath.Join(s.projectDir(p.ID), pagesDirName)
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		return fmt.Errorf("filestore: list pages: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || keep[entry.Name()] {
			continue
		}
		path := filepath.Join(pagesDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			storeLog.Warn("remove dropped page", "path", path, "error", err)
		}
	}
	return nil
}

// DeleteProject removes the project directory.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkIDs(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.projectPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("filestore: project %q: %w", id, store.ErrNotFound)
		}
		return err
	}
	if err := os.RemoveAll(s.projectDir(id)); err != nil {
		return fmt.Errorf("filestore: delete project %q: %w", id, err)
	}
	return nil
}

// ListProjects returns every readable project, most recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]store.ProjectSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("filestore: list projects: %w", err)
	}
	out := make([]store.ProjectSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pf, err := s.readProjectLocked(entry.Name())
		if err != nil {
			storeLog.Warn("skip unreadable project", "dir", entry.Name(), "error", err)
			continue
		}
		out = append(out, store.ProjectSummary{
			ID:        pf.ID,
			Name:      pf.Name,
			Mode:      pf.Mode,
			Pages:     len(pf.Pages),
			UpdatedAt: pf.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// LoadPage reads one page. The page must be listed in the project.
func (s *Store) LoadPage(ctx context.Context, projectID, pageID string) (score.Page, error) {
	if err := ctx.Err(); err != nil {
		return score.Page{}, err
	}
	if err := checkIDs(projectID, pageID); err != nil {
		return score.Page{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.readProjectLocked(projectID)
	if err != nil {
		return score.Page{}, err
	}
	for _, ref := range pf.Pages {
		if ref.ID != pageID {
			continue
		}
		page := score.Page{ID: ref.ID, Title: ref.Title, Meta: ref.Meta}
		content, err := s.readPageLocked(projectID, pageID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return score.Page{}, err
		}
		page.Content = content
		return page, nil
	}
	return score.Page{}, fmt.Errorf("filestore: page %q: %w", pageID, store.ErrNotFound)
}

// SavePageNotes replaces the notes of one page, keeping its other
// collections.
func (s *Store) SavePageNotes(ctx context.Context, projectID, pageID string, notes []score.PlacedSymbol) error {
	return s.updatePage(ctx, projectID, pageID, func(c *score.Content) {
		c.Notes = notes
	})
}

// SavePageMetadata replaces every non-note collection of one page.
func (s *Store) SavePageMetadata(ctx context.Context, projectID, pageID string, meta store.PageMetadata) error {
	return s.updatePage(ctx, projectID, pageID, meta.Apply)
}

// Close is a no-op; files are closed after every call.
func (s *Store) Close() error {
	return nil
}

func (s *Store) updatePage(ctx context.Context, projectID, pageID string, apply func(*score.Content)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkIDs(projectID, pageID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.readProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(pf.Pages, func(ref pageRef) bool { return ref.ID == pageID }) {
		return fmt.Errorf("filestore: page %q: %w", pageID, store.ErrNotFound)
	}
	content, err := s.readPageLocked(projectID, pageID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	apply(&content)
	return s.writePageLocked(projectID, pageID, content)
}

func (s *Store) readProjectLocked(id string) (projectFile, error) {
	var pf projectFile
	data, err := os.ReadFile(s.projectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return pf, fmt.Errorf("filestore: project %q: %w", id, store.ErrNotFound)
		}
		return pf, fmt.Errorf("filestore: read project %q: %w", id, err)
	}
	if err := json.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("filestore: parse project %q: %w", id, err)
	}
	return pf, nil
}

func (s *Store) readPageLocked(projectID, pageID string) (score.Content, error) {
	path := s.pagePath(projectID, pageID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return score.Content{}, fmt.Errorf("filestore: page %q: %w", pageID, store.ErrNotFound)
		}
		return score.Content{}, fmt.Errorf("filestore: read page %q: %w", path, err)
	}
	var pf pageFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return score.Content{}, fmt.Errorf("filestore: parse page %q: %w", path, err)
	}
	return pf.Content, nil
}

func (s *Store) writeProjectLocked(p score.Project) error {
	pf := projectFile{
		ID:        p.ID,
		Name:      p.Name,
		Mode:      p.Mode,
		Defaults:  p.Defaults,
		Pages:     make([]pageRef, 0, len(p.Pages)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, page := range p.Pages {
		pf.Pages = append(pf.Pages, pageRef{ID: page.ID, Title: page.Title, Meta: page.Meta})
	}
	if err := os.MkdirAll(filepath.Join(s.projectDir(p.ID), pagesDirName), dirPermission); err != nil {
		return fmt.Errorf("filestore: mkdir project %q: %w", p.ID, err)
	}
	if err := writeJSON(s.projectPath(p.ID), pf); err != nil {
		return err
	}
	for _, page := range p.Pages {
		if err := s.writePageLocked(p.ID, page.ID, page.Content); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writePageLocked(projectID, pageID string, content score.Content) error {
	return writeJSON(s.pagePath(projectID, pageID), pageFile{
		ID:        pageID,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	})
}

// writeJSON writes v next to path and renames it into place.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode %q: %w", path, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file for %q: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write %q: %w", path, err)
	}
	if err := tmp.Chmod(filePermission); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: chmod %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: rename %q: %w", path, err)
	}
	return nil
}
