package watcher

import "sync"

// BoundedOperationLimiter caps how many times a repetitive diagnostic action
// is allowed to fire. The cap boundary is distinguished so callers can emit
// one final "this is the last message of this kind" notice before going
// silent. It limits log volume only, never event processing.
type BoundedOperationLimiter struct {
	mu    sync.Mutex
	max   int
	count int
}

// NewBoundedOperationLimiter creates a limiter allowing max firings.
func NewBoundedOperationLimiter(max int) *BoundedOperationLimiter {
	return &BoundedOperationLimiter{max: max}
}

// Allow reports whether the action may fire, and whether this firing is the
// last one permitted.
func (l *BoundedOperationLimiter) Allow() (ok, last bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count >= l.max {
		return false, false
	}
	l.count++
	return true, l.count == l.max
}

// Count returns how many firings have been consumed.
func (l *BoundedOperationLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
