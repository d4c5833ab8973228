// Package history implements the snapshot undo/redo engine.
//
// The engine holds one "present" Snapshot outside two stacks:
//
//	past:   oldest → newest; the last entry is the state before present
//	future: next → farther;  the first entry is the next redo target
//
// Push records present onto past and clears future, so there is no
// branching history: acting after an undo discards the redo branch. Past is
// bounded; once full, the oldest entries are evicted first.
//
// Every transition runs under one mutex, so concurrent callers never see a
// half-applied push. No operation returns an error: undo and redo on empty
// stacks are no-ops that report false.
package history

import (
	"slices"
	"sync"

	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/score"
)

// DefaultLimit bounds the undo depth.
const DefaultLimit = 50

var historyLog = logging.New("history")

// Engine is the undo/redo state machine for one page.
type Engine struct {
	mu      sync.Mutex
	past    []score.Snapshot
	future  []score.Snapshot
	current score.Snapshot
	limit   int

	// SkipEqual drops pushes whose content equals the present snapshot.
	// Off by default: every user action yields one undo step, even a drag
	// that ends where it started.
	SkipEqual bool
}

// New returns an engine holding an empty snapshot. A limit below 1 falls
// back to DefaultLimit.
func New(limit int) *Engine {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Engine{limit: limit}
}

// Push makes next the present snapshot. It reports false only when
// SkipEqual suppressed the push.
func (e *Engine) Push(next score.Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.SkipEqual && e.current.Equal(next) {
		return false
	}
	e.past = e.appendPast(e.past, e.current)
	e.current = next
	// Any forward mutation invalidates the redo chain.
	e.future = nil
	return true
}

// Undo restores the most recent past snapshot. No-op when past is empty.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.past) == 0 {
		return false
	}
	last := e.past[len(e.past)-1]
	e.past = e.past[:len(e.past)-1]
	e.future = slices.Insert(e.future, 0, e.current)
	e.current = last
	return true
}

// Redo replays the next future snapshot. No-op when future is empty.
func (e *Engine) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.future) == 0 {
		return false
	}
	next := e.future[0]
	e.future = slices.Delete(e.future, 0, 1)
	e.past = e.appendPast(e.past, e.current)
	e.current = next
	return true
}

// Reset discards both stacks and installs s as the present snapshot. Used
// when a page is loaded or switched to.
func (e *Engine) Reset(s score.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.past = nil
	e.future = nil
	e.current = s
}

// Current returns the present snapshot. Its slices must not be modified.
func (e *Engine) Current() score.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CanUndo reports whether past is non-empty.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.past) > 0
}

// CanRedo reports whether future is non-empty.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.future) > 0
}

// Depth returns the sizes of past and future.
func (e *Engine) Depth() (past, future int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.past), len(e.future)
}

// appendPast appends s and evicts from the front past the limit. The
// returned slice never aliases an evicted prefix, so old snapshots can be
// collected.
func (e *Engine) appendPast(past []score.Snapshot, s score.Snapshot) []score.Snapshot {
	past = append(past, s)
	if over := len(past) - e.limit; over > 0 {
		historyLog.Debug("evict oldest snapshots", "evicted", over, "limit", e.limit)
		past = slices.Clone(past[over:])
	}
	return past
}
