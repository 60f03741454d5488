package watcher

import (
	"os"
	"time"

	"github.com/ZanzyTHEbar/dirwatch/dirwatch/config"

	"github.com/benbjohnson/clock"
)

// Facet identifies one of the three independent notification subscriptions
// kept per watched root. The last-write facet cannot distinguish files from
// directories, which is why PathKind carries ambiguity.
type Facet int

const (
	// FacetDirectoryName observes entry-name changes for directories
	FacetDirectoryName Facet = iota
	// FacetFileName observes entry-name changes for files
	FacetFileName
	// FacetLastWrite observes last-write-time changes for both
	FacetLastWrite
)

func (f Facet) String() string {
	switch f {
	case FacetDirectoryName:
		return "directory_name"
	case FacetFileName:
		return "file_name"
	case FacetLastWrite:
		return "last_write"
	default:
		return "unknown"
	}
}

// facets lists all subscription facets stood up for each root.
var facets = [...]Facet{FacetDirectoryName, FacetFileName, FacetLastWrite}

// Callbacks receives raw notifications from a watch handle. Paths are
// absolute. Callbacks may be invoked from arbitrary goroutines, potentially
// before Start is called on the handle.
type Callbacks struct {
	OnChanged func(path string)
	OnCreated func(path string)
	OnDeleted func(path string)
	OnRenamed func(oldPath, newPath string)
	OnError   func(err error)
}

// WatchHandle is one live subscription for a single root and facet.
// Close disposes the underlying OS resources; it is safe to call once.
type WatchHandle interface {
	Start() error
	Stop() error
	Close() error
}

// WatchSource creates watch handles. Subdirectory inclusion is always on.
// The production implementation is backed by fsnotify; tests substitute
// fakes.
type WatchSource interface {
	NewWatcher(root string, facet Facet, cb Callbacks) (WatchHandle, error)
}

// DirectoryChecker reports whether a directory currently exists on disk.
// Used only by the root-existence poll.
type DirectoryChecker func(path string) bool

// BatchHandler is the notification sink: invoked synchronously on the
// background loop with a finalized batch of changes. It must return promptly;
// it may enqueue work elsewhere but must not block indefinitely.
type BatchHandler func(changes []PathChangeEntry)

// ErrorHandler receives unrecoverable watch faults (e.g. notification buffer
// overflow) and sink faults. The library does not auto-recover; the host
// decides recovery policy, typically a full rescan.
type ErrorHandler func(err error)

// Config holds the tunables of a ChangeNotifier. The delay magnitudes are
// not load-bearing for correctness, only for batching behavior.
type Config struct {
	// SimpleCheckpoint/SimpleMax drive flushing of pure content changes
	SimpleCheckpoint time.Duration
	SimpleMax        time.Duration

	// StructuralCheckpoint/StructuralMax drive flushing of create/delete
	// changes, which are more expensive for the consumer to apply
	StructuralCheckpoint time.Duration
	StructuralMax        time.Duration

	// PollCheckpoint/PollMax drive the root-existence poll
	PollCheckpoint time.Duration
	PollMax        time.Duration

	// WakeTimeout bounds the background loop's wait so it makes periodic
	// progress with no new events
	WakeTimeout time.Duration

	// HistoryCapacity is the size of the postmortem change ring buffer
	HistoryCapacity int

	// LimiterMax caps repeated skip-logging diagnostics
	LimiterMax int

	// IgnorePatterns are gitignore-style patterns applied to raw events
	IgnorePatterns []string

	// Clock is injected so delay policies are deterministically testable.
	// Nil means the system clock.
	Clock clock.Clock

	// DirectoryExists is the existence check used by the deletion poll.
	// Nil means an os.Stat based check.
	DirectoryExists DirectoryChecker
}

// DefaultConfig returns a default notifier configuration
func DefaultConfig() Config {
	return Config{
		SimpleCheckpoint:     2 * time.Second,
		SimpleMax:            10 * time.Second,
		StructuralCheckpoint: 2 * time.Second,
		StructuralMax:        60 * time.Second,
		PollCheckpoint:       15 * time.Second,
		PollMax:              60 * time.Second,
		WakeTimeout:          time.Second,
		HistoryCapacity:      128,
		LimiterMax:           10,
	}
}

// FromAppConfig maps the viper-loaded configuration onto a notifier Config.
func FromAppConfig(dc config.DirwatchConfig) Config {
	cfg := DefaultConfig()
	if dc.Delays.SimpleCheckpoint > 0 {
		cfg.SimpleCheckpoint = dc.Delays.SimpleCheckpoint
	}
	if dc.Delays.SimpleMax > 0 {
		cfg.SimpleMax = dc.Delays.SimpleMax
	}
	if dc.Delays.StructuralCheckpoint > 0 {
		cfg.StructuralCheckpoint = dc.Delays.StructuralCheckpoint
	}
	if dc.Delays.StructuralMax > 0 {
		cfg.StructuralMax = dc.Delays.StructuralMax
	}
	if dc.Delays.PollCheckpoint > 0 {
		cfg.PollCheckpoint = dc.Delays.PollCheckpoint
	}
	if dc.Delays.PollMax > 0 {
		cfg.PollMax = dc.Delays.PollMax
	}
	if dc.Delays.WakeTimeout > 0 {
		cfg.WakeTimeout = dc.Delays.WakeTimeout
	}
	if dc.History.Capacity > 0 {
		cfg.HistoryCapacity = dc.History.Capacity
	}
	if dc.Limiter.MaxOccurrences > 0 {
		cfg.LimiterMax = dc.Limiter.MaxOccurrences
	}
	cfg.IgnorePatterns = dc.Ignore.Patterns
	return cfg
}

func defaultDirectoryChecker(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
