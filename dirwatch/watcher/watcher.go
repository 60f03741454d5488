package watcher

import (
	"fmt"
	"log/slog"

	"github.com/ZanzyTHEbar/dirwatch/dirwatch/config"
)

// New creates a production notifier backed by fsnotify subscriptions.
func New(cfg Config, sink BatchHandler, errSink ErrorHandler) (*ChangeNotifier, error) {
	return NewChangeNotifier(cfg, NewFSNotifySource(config.AppConfig.Dirwatch.Source.BufferSize), sink, errSink)
}

// WatchRoots is a convenience function for watching a fixed set of roots with
// the default configuration. Errors from the subscriptions are logged.
func WatchRoots(roots []string, handler func(changes []PathChangeEntry)) (*ChangeNotifier, error) {
	notifier, err := New(DefaultConfig(), handler, func(err error) {
		slog.Error("Watcher error", "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := notifier.SetWatchedRoots(roots); err != nil {
		return nil, fmt.Errorf("failed to watch roots: %w", err)
	}
	if err := notifier.Start(); err != nil {
		return nil, fmt.Errorf("failed to start watching: %w", err)
	}

	return notifier, nil
}
