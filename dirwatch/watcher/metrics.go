package watcher

import "sync"

// EngineMetrics provides counter collection for the coalescing engine.
// Snapshot returns a copy so callers never observe concurrent mutation.
type EngineMetrics struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewEngineMetrics creates an empty metrics collector
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{counts: make(map[string]int64)}
}

// Increment safely increments an operation count
func (m *EngineMetrics) Increment(op string) {
	m.Add(op, 1)
}

// Add safely adds n to an operation count
func (m *EngineMetrics) Add(op string, n int64) {
	m.mu.Lock()
	m.counts[op] += n
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counts
func (m *EngineMetrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
