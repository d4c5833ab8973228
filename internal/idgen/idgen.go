// Package idgen provides pluggable id generation for placed elements.
//
// Every constructor that needs ids accepts a Generator, so tests can make
// them deterministic and the store can hand out server-side ids.
package idgen

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so insertion order survives a sort by id.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every id
// (e.g. "n_", "txt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Local returns a Generator of clock-based ids that never repeat within the
// process, even when the clock stands still or goes backwards. It is the
// fallback when the store does not assign an id.
func Local() Generator {
	var (
		mu   sync.Mutex
		last int64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now().UnixNano()
		if now <= last {
			now = last + 1
		}
		last = now
		return "local-" + strconv.FormatInt(now, 36)
	}
}

// Sequence returns a Generator yielding prefix1, prefix2, ... for tests and
// fixtures.
func Sequence(prefix string) Generator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an id using the Default generator.
func New() string {
	return Default()
}
