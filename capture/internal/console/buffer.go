// Package console keeps the most recent console errors of a page.
package console

import (
	"sync"

	"github.com/hazyhaar/devlens/event"
)

// DefaultMax is the number of entries kept when no limit is given.
const DefaultMax = 100

// Buffer is a bounded ring of console entries. The oldest entry is dropped
// when the buffer is full. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	max     int
	levels  map[string]bool
	entries []event.ConsoleError
	next    int
	full    bool
}

// NewBuffer keeps at most max entries of the given levels. An empty levels
// list accepts every level.
func NewBuffer(max int, levels ...string) *Buffer {
	if max <= 0 {
		max = DefaultMax
	}
	b := &Buffer{max: max, entries: make([]event.ConsoleError, max)}
	if len(levels) > 0 {
		b.levels = make(map[string]bool, len(levels))
		for _, l := range levels {
			b.levels[l] = true
		}
	}
	return b
}

// Add records e unless its level is filtered out.
func (b *Buffer) Add(e event.ConsoleError) bool {
	if b.levels != nil && !b.levels[e.Type] {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.max
	if b.next == 0 {
		b.full = true
	}
	return true
}

// Snapshot returns the entries oldest first.
func (b *Buffer) Snapshot() []event.ConsoleError {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]event.ConsoleError(nil), b.entries[:b.next]...)
	}
	out := make([]event.ConsoleError, 0, b.max)
	out = append(out, b.entries[b.next:]...)
	return append(out, b.entries[:b.next]...)
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return b.max
	}
	return b.next
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.next = 0
	b.full = false
}
