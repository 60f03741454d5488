package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/armon/go-radix"
	"github.com/google/uuid"
)

// watchEntry bundles the per-root subscriptions, one per facet, plus an ID
// used in diagnostics. An entry is disposed exactly once.
type watchEntry struct {
	id       uuid.UUID
	root     string
	handles  [len(facets)]WatchHandle
	started  bool
	disposed bool
}

func (e *watchEntry) dispose() error {
	if e.disposed {
		return nil
	}
	e.disposed = true
	var errs []error
	for _, h := range e.handles {
		if h == nil {
			continue
		}
		if err := h.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WatchRegistry owns the root to watch-entry mapping. Entries are stored in a
// patricia tree keyed by normalized root path so membership, enumeration and
// longest-prefix ancestor checks share one index. All mutation happens under
// a single exclusive lock; the coalescing loop only touches the registry
// through Roots and Remove during the root-existence poll.
type WatchRegistry struct {
	source WatchSource
	bind   func(root string, facet Facet) Callbacks

	mu      sync.Mutex
	tree    *radix.Tree
	started bool
}

// NewWatchRegistry creates an empty registry. bind produces the callback set
// wired into each new subscription for a given root and facet.
func NewWatchRegistry(source WatchSource, bind func(root string, facet Facet) Callbacks) *WatchRegistry {
	return &WatchRegistry{
		source: source,
		bind:   bind,
		tree:   radix.New(),
	}
}

// rootKey is the patricia tree key for a root. The trailing separator keeps
// /foo from matching /foobar on prefix lookups.
func rootKey(root string) string {
	return normalizeKey(root) + string(filepath.Separator)
}

// SetWatchedRoots computes the symmetric difference against the currently
// watched set, tears down removed roots and stands up added ones. Teardown
// happens synchronously on the caller's goroutine; callbacks already in
// flight may still land and are tolerated downstream.
func (r *WatchRegistry) SetWatchedRoots(roots []string) error {
	requested := make(map[string]string, len(roots))
	for _, root := range roots {
		requested[rootKey(root)] = filepath.Clean(root)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	var removed []string
	r.tree.Walk(func(key string, v interface{}) bool {
		if _, ok := requested[key]; !ok {
			removed = append(removed, key)
		}
		return false
	})
	for _, key := range removed {
		v, ok := r.tree.Delete(key)
		if !ok {
			continue
		}
		entry := v.(*watchEntry)
		slog.Debug("Tearing down watched root", "root", entry.root, "id", entry.id)
		if err := entry.dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", entry.root, err))
		}
	}

	for key, root := range requested {
		if _, ok := r.tree.Get(key); ok {
			continue
		}
		if ancestor, _, ok := r.tree.LongestPrefix(key); ok && ancestor != key {
			slog.Warn("Watched root is nested inside another watched root; events may be reported twice",
				"root", root, "ancestor", ancestor)
		}
		entry, err := r.standUp(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", root, err))
			continue
		}
		r.tree.Insert(key, entry)
		slog.Debug("Watching root", "root", root, "id", entry.id)
	}

	return errors.Join(errs...)
}

// standUp creates the three facet subscriptions for a root. Caller holds the
// registry lock. If the registry is already started, new subscriptions start
// immediately.
func (r *WatchRegistry) standUp(root string) (*watchEntry, error) {
	entry := &watchEntry{id: uuid.New(), root: root}
	for i, facet := range facets {
		handle, err := r.source.NewWatcher(root, facet, r.bind(root, facet))
		if err != nil {
			entry.dispose()
			return nil, fmt.Errorf("create %s subscription: %w", facet, err)
		}
		entry.handles[i] = handle
	}
	if r.started {
		if err := entry.start(); err != nil {
			entry.dispose()
			return nil, err
		}
	}
	return entry, nil
}

func (e *watchEntry) start() error {
	if e.started {
		return nil
	}
	for _, h := range e.handles {
		if err := h.Start(); err != nil {
			return fmt.Errorf("start subscription for %s: %w", e.root, err)
		}
	}
	e.started = true
	return nil
}

func (e *watchEntry) stop() error {
	if !e.started {
		return nil
	}
	var errs []error
	for _, h := range e.handles {
		if err := h.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	e.started = false
	return errors.Join(errs...)
}

// Start begins delivery on all registered subscriptions. Idempotent.
func (r *WatchRegistry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	var errs []error
	r.tree.Walk(func(key string, v interface{}) bool {
		if err := v.(*watchEntry).start(); err != nil {
			errs = append(errs, err)
		}
		return false
	})
	return errors.Join(errs...)
}

// Stop pauses delivery on all registered subscriptions. Idempotent.
func (r *WatchRegistry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	var errs []error
	r.tree.Walk(func(key string, v interface{}) bool {
		if err := v.(*watchEntry).stop(); err != nil {
			errs = append(errs, err)
		}
		return false
	})
	return errors.Join(errs...)
}

// Roots returns a snapshot of the currently watched roots.
func (r *WatchRegistry) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, r.tree.Len())
	r.tree.Walk(func(key string, v interface{}) bool {
		out = append(out, v.(*watchEntry).root)
		return false
	})
	return out
}

// Remove tears down a single root. Used by the deletion poll when a watched
// root has disappeared from disk. Returns false if the root was not watched.
func (r *WatchRegistry) Remove(root string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.tree.Delete(rootKey(root))
	if !ok {
		return false
	}
	entry := v.(*watchEntry)
	if err := entry.dispose(); err != nil {
		slog.Warn("Error disposing watch entry", "root", entry.root, "error", err)
	}
	return true
}

// Len returns the number of watched roots.
func (r *WatchRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tree.Len()
}
