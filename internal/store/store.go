// Package store defines the persistence collaborator of the editor.
//
// The editor never waits on a store for correctness: every call happens
// after the in-memory transition completed, and a failure only means the
// change is not durable yet. Two backends ship with the module:
// filestore (JSON files on the local device) and sqlstore (SQLite).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/treykane/cli-notation/internal/score"
)

// ErrNotFound is returned when a project or page does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidID is returned for ids that cannot name a project or page.
var ErrInvalidID = errors.New("invalid id")

// CheckID rejects empty ids and ids holding a path separator or "..", so an
// id can be used as a file name.
func CheckID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`+"\x00") || strings.Contains(id, "..") {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return nil
}

// PageMetadata is every page collection other than notes. Notes are saved on
// their own because they change far more often.
type PageMetadata struct {
	Texts         []score.TextElement         `json:"texts"`
	Articulations []score.ArticulationElement `json:"articulations"`
	Lyrics        []score.LyricElement        `json:"lyrics"`
	Highlights    []score.HighlighterElement  `json:"highlights"`
}

// MetadataOf splits the non-note collections out of a page's content.
func MetadataOf(c score.Content) PageMetadata {
	return PageMetadata{
		Texts:         c.Texts,
		Articulations: c.Articulations,
		Lyrics:        c.Lyrics,
		Highlights:    c.Highlights,
	}
}

// Apply writes the metadata collections into c.
func (m PageMetadata) Apply(c *score.Content) {
	c.Texts = m.Texts
	c.Articulations = m.Articulations
	c.Lyrics = m.Lyrics
	c.Highlights = m.Highlights
}

// ProjectSummary is one row of a project listing.
type ProjectSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Mode      score.Mode `json:"mode"`
	Pages     int        `json:"pages"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store persists projects and their pages.
type Store interface {
	// CreateProject stores a new project and returns its id, assigning one
	// when p.ID is empty.
	CreateProject(ctx context.Context, p score.Project) (string, error)
	// LoadProject returns the project with every page's content.
	LoadProject(ctx context.Context, id string) (score.Project, error)
	// SaveProject replaces the project header and page list, content
	// included. Pages missing from p are deleted.
	SaveProject(ctx context.Context, p score.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]ProjectSummary, error)

	LoadPage(ctx context.Context, projectID, pageID string) (score.Page, error)
	SavePageNotes(ctx context.Context, projectID, pageID string, notes []score.PlacedSymbol) error
	SavePageMetadata(ctx context.Context, projectID, pageID string, meta PageMetadata) error

	Close() error
}

// IDAllocator is implemented by stores that hand out element ids. The
// editor falls back to local ids when it is absent or fails.
type IDAllocator interface {
	AllocateID(ctx context.Context, kind string) (string, error)
}

// NewProject builds a one-page project with the given defaults.
func NewProject(id, name string, mode score.Mode, defaults score.Meta, pageID string) score.Project {
	if defaults == (score.Meta{}) {
		defaults = score.DefaultMeta
	}
	return score.Project{
		ID:       id,
		Name:     name,
		Mode:     mode,
		Defaults: defaults,
		Pages: []score.Page{{
			ID:    pageID,
			Title: PageTitle(0),
			Meta:  defaults,
		}},
	}
}

// PageTitle is the default title of the page at index i.
func PageTitle(i int) string {
	return fmt.Sprintf("Page %d", i+1)
}
