package editor

import (
	"slices"

	"github.com/treykane/cli-notation/internal/metrics"
	"github.com/treykane/cli-notation/internal/score"
)

// Origin says which transition produced the snapshot being reconciled.
type Origin int

const (
	OriginMutation Origin = iota
	OriginUndo
	OriginRedo
	// OriginReset is a page load or switch. Only this origin is subject to
	// the stale snapshot guard.
	OriginReset
)

func (o Origin) String() string {
	switch o {
	case OriginUndo:
		return "undo"
	case OriginRedo:
		return "redo"
	case OriginReset:
		return "reset"
	default:
		return "push"
	}
}

// Reconcile writes the snapshot's collections into the page, touching only
// collections whose content differs. On OriginReset it refuses to replace a
// non-empty collection with an empty one: a freshly loaded snapshot that is
// empty where the page is not is treated as stale or half-initialized, and
// the page wins. It reports whether the page changed.
func Reconcile(page *score.Page, snap score.Snapshot, origin Origin, rec *metrics.Recorder) bool {
	changed := false
	c := &page.Content
	changed = reconcileCollection("notes", &c.Notes, snap.Notes, origin, rec) || changed
	changed = reconcileCollection("texts", &c.Texts, snap.Texts, origin, rec) || changed
	changed = reconcileCollection("articulations", &c.Articulations, snap.Articulations, origin, rec) || changed
	changed = reconcileCollection("lyrics", &c.Lyrics, snap.Lyrics, origin, rec) || changed
	changed = reconcileCollection("highlights", &c.Highlights, snap.Highlights, origin, rec) || changed
	return changed
}

func reconcileCollection[T comparable](name string, dst *[]T, src []T, origin Origin, rec *metrics.Recorder) bool {
	if slices.Equal(*dst, src) {
		return false
	}
	if origin == OriginReset && len(src) == 0 && len(*dst) > 0 {
		editorLog.Warn("stale snapshot guard kept page collection",
			"collection", name, "kept", len(*dst))
		rec.StaleGuard(name)
		return false
	}
	*dst = slices.Clone(src)
	return true
}
