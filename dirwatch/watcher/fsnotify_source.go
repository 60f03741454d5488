package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// FSNotifySource creates fsnotify-backed watch handles. fsnotify has no
// notify-filter facets, so each handle runs its own underlying watcher and
// filters events down to its facet's concern: name events for the two name
// facets (split by a stat where possible), write events for the last-write
// facet. Removes and renames cannot be stat'ed and are delivered on the
// file-name facet; the path-kind merge absorbs the ambiguity.
type FSNotifySource struct {
	bufferSize uint
}

// NewFSNotifySource creates a source. bufferSize is the per-subscription
// event buffer; it must be generous, small buffers overflow under heavy I/O
// and the overflow surfaces as an error, not a silent drop.
func NewFSNotifySource(bufferSize int) *FSNotifySource {
	if bufferSize <= 0 {
		bufferSize = 65536
	}
	return &FSNotifySource{bufferSize: uint(bufferSize)}
}

// NewWatcher creates a subscription for root on the given facet.
// Subdirectories are always included: the root is walked at creation and
// newly created directories are added as they appear.
func (s *FSNotifySource) NewWatcher(root string, facet Facet, cb Callbacks) (WatchHandle, error) {
	fsWatcher, err := fsnotify.NewBufferedWatcher(s.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	h := &fsnotifyHandle{
		watcher: fsWatcher,
		root:    root,
		facet:   facet,
		cb:      cb,
	}

	if err := h.addRecursive(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	// The read loop runs from creation: callback delivery is always possible
	// once a subscription object exists. Start and Stop only gate delivery.
	h.wg.Add(1)
	go h.watchLoop()

	return h, nil
}

// fsnotifyHandle is one facet subscription over a recursive fsnotify watch.
type fsnotifyHandle struct {
	watcher    *fsnotify.Watcher
	root       string
	facet      Facet
	cb         Callbacks
	delivering atomic.Bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Start enables callback delivery. Idempotent.
func (h *fsnotifyHandle) Start() error {
	h.delivering.Store(true)
	return nil
}

// Stop disables callback delivery without releasing the OS watch. Idempotent.
func (h *fsnotifyHandle) Stop() error {
	h.delivering.Store(false)
	return nil
}

// Close disposes the underlying watcher and waits for the read loop to exit.
func (h *fsnotifyHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.watcher.Close()
		h.wg.Wait()
	})
	return err
}

// addRecursive adds a path and all its subdirectories to the watcher.
func (h *fsnotifyHandle) addRecursive(rootPath string) error {
	if err := h.watcher.Add(rootPath); err != nil {
		return fmt.Errorf("failed to add root path %s: %w", rootPath, err)
	}
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// The tree can mutate under the walk; skip what disappeared.
			return nil
		}
		if info.IsDir() && path != rootPath {
			if err := h.watcher.Add(path); err != nil {
				slog.Warn("Failed to add subdirectory to watcher", "path", path, "error", err)
			}
		}
		return nil
	})
}

// watchLoop reads raw fsnotify events and forwards the ones matching this
// handle's facet.
func (h *fsnotifyHandle) watchLoop() {
	defer h.wg.Done()

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.dispatch(event)

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			if h.cb.OnError != nil {
				h.cb.OnError(err)
			}
		}
	}
}

// dispatch converts one fsnotify event into facet callbacks.
func (h *fsnotifyHandle) dispatch(event fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	// Keep recursion alive regardless of facet or delivery state.
	if event.Has(fsnotify.Create) && isDir {
		if err := h.watcher.Add(event.Name); err != nil {
			slog.Warn("Failed to watch new subdirectory", "path", event.Name, "error", err)
		}
	}

	if !h.delivering.Load() {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if h.matchesNameFacet(isDir) && h.cb.OnCreated != nil {
			h.cb.OnCreated(event.Name)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename surfaces as Rename(old) plus a separate Create(new), so
		// the old name is reported as deleted. The entry kind is unknowable
		// after the fact; the file-name facet owns these.
		if h.facet == FacetFileName && h.cb.OnDeleted != nil {
			h.cb.OnDeleted(event.Name)
		}
	case event.Has(fsnotify.Write):
		if h.facet == FacetLastWrite && h.cb.OnChanged != nil {
			h.cb.OnChanged(event.Name)
		}
	}
}

// matchesNameFacet reports whether a name event for an entry of the given
// kind belongs to this handle's facet.
func (h *fsnotifyHandle) matchesNameFacet(isDir bool) bool {
	if isDir {
		return h.facet == FacetDirectoryName
	}
	return h.facet == FacetFileName
}
