package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/benbjohnson/clock"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/panics"
)

// ChangeNotifier observes a set of directory roots and delivers coalesced,
// rate-limited batches of path changes to a sink. Raw events from the watch
// subscriptions are merged into a pending map under a dedicated lock; a
// single background loop drains the map and decides what to flush and when,
// driven by three delay policies. The loop is lazily started on the first
// root addition and lives for the rest of the process; a faulted notifier is
// replaced with a fresh instance rather than restarted.
type ChangeNotifier struct {
	cfg      Config
	clk      clock.Clock
	exists   DirectoryChecker
	sink     BatchHandler
	errSink  ErrorHandler
	registry *WatchRegistry
	asserts  *assert.AssertHandler

	recorder    *ChangeHistoryRecorder
	metrics     *EngineMetrics
	dropLimiter *BoundedOperationLimiter
	ignorer     *ignore.GitIgnore

	// pendingMu guards only pending. It is never held together with the
	// registry lock.
	pendingMu sync.Mutex
	pending   map[string]PathChangeEntry
	wake      chan struct{}

	simple     *DelayPolicy
	structural *DelayPolicy
	poll       *DelayPolicy

	loopOnce sync.Once
}

// NewChangeNotifier creates a notifier delivering to sink. errSink may be nil
// if the host does not care about watch faults (not recommended).
func NewChangeNotifier(cfg Config, source WatchSource, sink BatchHandler, errSink ErrorHandler) (*ChangeNotifier, error) {
	if sink == nil {
		return nil, fmt.Errorf("notification sink is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	exists := cfg.DirectoryExists
	if exists == nil {
		exists = defaultDirectoryChecker
	}

	var ignorer *ignore.GitIgnore
	if len(cfg.IgnorePatterns) > 0 {
		ignorer = ignore.CompileIgnoreLines(cfg.IgnorePatterns...)
	}

	n := &ChangeNotifier{
		cfg:         cfg,
		clk:         clk,
		exists:      exists,
		sink:        sink,
		errSink:     errSink,
		asserts:     assert.NewAssertHandler(),
		recorder:    NewChangeHistoryRecorder(clk, cfg.HistoryCapacity),
		metrics:     NewEngineMetrics(),
		dropLimiter: NewBoundedOperationLimiter(cfg.LimiterMax),
		ignorer:     ignorer,
		pending:     make(map[string]PathChangeEntry),
		wake:        make(chan struct{}, 1),
		simple:      NewDelayPolicy(clk, cfg.SimpleCheckpoint, cfg.SimpleMax),
		structural:  NewDelayPolicy(clk, cfg.StructuralCheckpoint, cfg.StructuralMax),
		poll:        NewDelayPolicy(clk, cfg.PollCheckpoint, cfg.PollMax),
	}
	n.registry = NewWatchRegistry(source, n.callbacksFor)
	return n, nil
}

// SetWatchedRoots replaces the set of watched roots. Removed roots are torn
// down synchronously; added roots begin receiving callbacks as soon as their
// subscriptions exist. The background loop starts on the first call that
// watches anything.
func (n *ChangeNotifier) SetWatchedRoots(roots []string) error {
	valid := make([]string, 0, len(roots))
	var errs []error
	for _, root := range roots {
		if err := validatePath(root); err != nil {
			errs = append(errs, fmt.Errorf("root %q: %w", root, err))
			continue
		}
		valid = append(valid, root)
	}
	if err := n.registry.SetWatchedRoots(valid); err != nil {
		errs = append(errs, err)
	}
	if len(valid) > 0 {
		n.startLoop()
	}
	return errors.Join(errs...)
}

// Start begins delivery on all watched roots. Idempotent.
func (n *ChangeNotifier) Start() error {
	return n.registry.Start()
}

// Stop pauses delivery on all watched roots. Idempotent. The background loop
// keeps running; it simply finds nothing new to drain.
func (n *ChangeNotifier) Stop() error {
	return n.registry.Stop()
}

// History returns the retained change history, oldest first.
func (n *ChangeNotifier) History() []RecordedChange {
	return n.recorder.Snapshot()
}

// Metrics returns a snapshot of the engine counters.
func (n *ChangeNotifier) Metrics() map[string]int64 {
	return n.metrics.Snapshot()
}

// facetKind maps a subscription facet to the path kind its callbacks carry.
// The last-write facet cannot distinguish files from directories, so its
// events are always ambiguous.
func facetKind(facet Facet) PathKind {
	switch facet {
	case FacetDirectoryName:
		return PathDirectory
	case FacetFileName:
		return PathFile
	default:
		return PathFileOrDirectory
	}
}

// callbacksFor builds the callback set wired into one subscription. A rename
// becomes Deleted(old) then Created(new), in that order; each half is
// validated independently and the offending half is dropped alone.
func (n *ChangeNotifier) callbacksFor(root string, facet Facet) Callbacks {
	kind := facetKind(facet)
	return Callbacks{
		OnChanged: func(path string) { n.ingest(root, path, ChangeChanged, kind) },
		OnCreated: func(path string) { n.ingest(root, path, ChangeCreated, kind) },
		OnDeleted: func(path string) { n.ingest(root, path, ChangeDeleted, kind) },
		OnRenamed: func(oldPath, newPath string) {
			n.ingest(root, oldPath, ChangeDeleted, kind)
			n.ingest(root, newPath, ChangeCreated, kind)
		},
		OnError: n.reportError,
	}
}

// ingest normalizes one raw event and merges it into the pending map. Safe to
// call from arbitrary goroutines.
func (n *ChangeNotifier) ingest(root, path string, change ChangeKind, kind PathKind) {
	if err := validatePath(path); err != nil {
		n.dropPath(path, err)
		return
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		n.dropPath(path, err)
		return
	}
	if rel == "." {
		rel = ""
	}
	if n.ignorer != nil && rel != "" && n.ignorer.MatchesPath(rel) {
		n.metrics.Increment("ignored")
		return
	}
	n.enqueue(PathChangeEntry{Root: root, RelPath: rel, Change: change, Kind: kind})
}

// enqueue merges an already-normalized entry into the pending map and wakes
// the background loop.
func (n *ChangeNotifier) enqueue(entry PathChangeEntry) {
	key := normalizeKey(entry.FullPath())
	n.pendingMu.Lock()
	current, ok := n.pending[key]
	if !ok {
		current = neutralEntry(entry.Root, entry.RelPath)
	}
	n.pending[key] = mergeEntries(current, entry)
	n.pendingMu.Unlock()

	n.recorder.Record(entry)
	n.metrics.Increment("ingested")

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// dropPath logs a skipped path through the bounded limiter, then goes silent.
func (n *ChangeNotifier) dropPath(path string, err error) {
	n.metrics.Increment("dropped")
	ok, last := n.dropLimiter.Allow()
	if !ok {
		return
	}
	if last {
		slog.Warn("Skipping unwatchable path; suppressing further messages of this kind", "path", path, "error", err)
		return
	}
	slog.Warn("Skipping unwatchable path", "path", path, "error", err)
}

func (n *ChangeNotifier) reportError(err error) {
	n.metrics.Increment("watch_errors")
	slog.Error("Watch subscription fault", "error", err)
	if n.errSink != nil {
		n.errSink(err)
	}
}

// startLoop launches the background loop exactly once. An uncaught fault
// terminates the loop; this is fatal for the whole pipeline and is surfaced
// through the error sink so the host can build a fresh instance.
func (n *ChangeNotifier) startLoop() {
	n.loopOnce.Do(func() {
		go func() {
			if r := panics.Try(n.runLoop); r != nil {
				slog.Error("Change notifier loop terminated", "panic", r.String())
				n.reportError(fmt.Errorf("notifier loop terminated: %w", r.AsError()))
			}
		}()
	})
}

// waitWake blocks until new events arrive or the wake timeout elapses, so the
// loop makes periodic progress even with no activity.
func (n *ChangeNotifier) waitWake() {
	t := n.clk.Timer(n.cfg.WakeTimeout)
	defer t.Stop()
	select {
	case <-n.wake:
	case <-t.C:
	}
}

// drain atomically swaps the pending map for an empty one.
func (n *ChangeNotifier) drain() map[string]PathChangeEntry {
	n.pendingMu.Lock()
	defer n.pendingMu.Unlock()
	if len(n.pending) == 0 {
		return nil
	}
	drained := n.pending
	n.pending = make(map[string]PathChangeEntry)
	return drained
}

// runLoop is the single background worker driving all merge, flush and poll
// decisions.
func (n *ChangeNotifier) runLoop() {
	for {
		n.waitWake()
		n.pollIfDue()

		working := n.drain()
		for len(working) > 0 {
			if n.simple.Expired() {
				n.flush(working, true)
				n.simple.Restart()
			}
			if n.structural.Expired() {
				n.flush(working, false)
				n.structural.Restart()
			}
			if len(working) == 0 {
				break
			}

			n.waitWake()
			n.pollIfDue()
			if arrived := n.drain(); len(arrived) > 0 {
				for key, entry := range arrived {
					current, ok := working[key]
					if !ok {
						current = neutralEntry(entry.Root, entry.RelPath)
					}
					working[key] = mergeEntries(current, entry)
				}
				// New activity defers both flushes up to their max delays.
				n.simple.Checkpoint()
				n.structural.Checkpoint()
			}
		}

		// Idle periods must not cause an immediate flush on the next burst.
		n.simple.Restart()
		n.structural.Restart()
	}
}

// pollIfDue runs the root-existence poll when its policy has expired. The OS
// cannot notify about deletion of a watched root itself, so a vanished root
// is synthesized as a Deleted directory change and its watch entry torn down.
// A torn-down root is never re-reported: it no longer appears in Roots.
func (n *ChangeNotifier) pollIfDue() {
	if !n.poll.Expired() {
		return
	}
	for _, root := range n.registry.Roots() {
		if n.exists(root) {
			continue
		}
		slog.Info("Watched root no longer exists, reporting deletion", "root", root)
		n.registry.Remove(root)
		n.enqueue(PathChangeEntry{Root: root, RelPath: "", Change: ChangeDeleted, Kind: PathDirectory})
		n.metrics.Increment("root_deletions")
	}
	n.poll.Restart()
}

// flush delivers entries from the working set to the sink and removes them.
// None entries are net no-ops and are discarded without delivery. With
// simpleOnly set, only entries whose net change is Changed are delivered;
// structural changes stay behind for the structural policy.
func (n *ChangeNotifier) flush(working map[string]PathChangeEntry, simpleOnly bool) {
	batch := make([]PathChangeEntry, 0, len(working))
	for key, entry := range working {
		if entry.Change == ChangeNone {
			delete(working, key)
			n.metrics.Increment("cancelled")
			continue
		}
		if simpleOnly && entry.Change != ChangeChanged {
			continue
		}
		delete(working, key)
		batch = append(batch, entry)
	}
	if len(batch) == 0 {
		return
	}
	n.deliver(batch)
}

// deliver invokes the sink with a finalized batch. The invocation is panic
// isolated so a sink fault cannot corrupt the working state, but the fault is
// still surfaced through the error sink.
func (n *ChangeNotifier) deliver(batch []PathChangeEntry) {
	for _, entry := range batch {
		n.asserts.Assert(context.Background(), entry.Change != ChangeNone, "flushed batch must not contain none entries")
	}
	n.metrics.Add("flushed", int64(len(batch)))
	slog.Debug("Delivering change batch", "count", len(batch))
	if r := panics.Try(func() { n.sink(batch) }); r != nil {
		slog.Error("Notification sink panicked", "panic", r.String())
		n.reportError(fmt.Errorf("notification sink fault: %w", r.AsError()))
	}
}
