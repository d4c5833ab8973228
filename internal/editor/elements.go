package editor

import (
	"slices"

	"github.com/treykane/cli-notation/internal/score"
)

func noteID(n score.PlacedSymbol) string                { return n.ID }
func textID(t score.TextElement) string                 { return t.ID }
func articulationID(a score.ArticulationElement) string { return a.ID }
func lyricID(l score.LyricElement) string               { return l.ID }
func highlightID(h score.HighlighterElement) string     { return h.ID }

// appendCopy returns a new slice; the input may be shared with a snapshot.
func appendCopy[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func findByID[T any](items []T, id string, key func(T) string) (T, bool) {
	for _, item := range items {
		if key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func removeByID[T any](items []T, id string, key func(T) string) ([]T, bool) {
	i := slices.IndexFunc(items, func(item T) bool { return key(item) == id })
	if i < 0 {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), true
}

func replaceByID[T any](items []T, item T, key func(T) string) ([]T, bool) {
	i := slices.IndexFunc(items, func(existing T) bool { return key(existing) == key(item) })
	if i < 0 {
		return items, false
	}
	out := slices.Clone(items)
	out[i] = item
	return out, true
}

func filterCopy[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
