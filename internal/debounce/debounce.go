// Package debounce runs a function once after a burst of triggers goes quiet.
//
// Every Trigger cancels the pending run and schedules a new one, so a burst
// of edits produces one save, delay after the last edit. Each scheduled run
// carries a sequence number; a timer that fires after being superseded sees
// a stale number and does nothing.
package debounce

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer is safe for concurrent use.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	after   AfterFunc
	timer   Timer
	seq     uint64
	pending bool
	stopped bool
}

// New returns a debouncer that calls fn delay after the last Trigger.
func New(delay time.Duration, fn func()) *Debouncer {
	return NewWithAfterFunc(delay, fn, realAfterFunc)
}

// NewWithAfterFunc lets tests drive the timer by hand.
func NewWithAfterFunc(delay time.Duration, fn func(), after AfterFunc) *Debouncer {
	if after == nil {
		after = realAfterFunc
	}
	return &Debouncer{delay: delay, fn: fn, after: after}
}

// Trigger cancels any pending run and schedules a fresh one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.cancelLocked()
	d.seq++
	seq := d.seq
	d.pending = true
	d.timer = d.after(d.delay, func() { d.fire(seq) })
}

// Cancel drops the pending run, if any, and reports whether one existed.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	was := d.pending
	d.cancelLocked()
	return was
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels the pending run and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// Invalidate any timer already past Stop and waiting on the lock.
	d.seq++
	d.pending = false
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}
