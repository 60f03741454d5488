package watcher

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RecordedChange is one timestamped entry in the change history.
type RecordedChange struct {
	Entry PathChangeEntry
	At    time.Time
}

// ChangeHistoryRecorder retains the last N recorded change events for
// postmortem inspection. It sits off every decision path: nothing in the
// engine reads it back.
type ChangeHistoryRecorder struct {
	clk clock.Clock

	mu      sync.Mutex
	entries []RecordedChange
	next    int
	filled  bool
}

// NewChangeHistoryRecorder creates a recorder holding up to capacity entries.
func NewChangeHistoryRecorder(clk clock.Clock, capacity int) *ChangeHistoryRecorder {
	if capacity < 1 {
		capacity = 1
	}
	return &ChangeHistoryRecorder{
		clk:     clk,
		entries: make([]RecordedChange, capacity),
	}
}

// Record appends an entry, evicting the oldest once capacity is reached.
func (r *ChangeHistoryRecorder) Record(entry PathChangeEntry) {
	now := r.clk.Now()
	r.mu.Lock()
	r.entries[r.next] = RecordedChange{Entry: entry, At: now}
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.filled = true
	}
	r.mu.Unlock()
}

// Snapshot returns the retained entries, oldest first.
func (r *ChangeHistoryRecorder) Snapshot() []RecordedChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]RecordedChange, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]RecordedChange, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
