package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchRoots_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("uses default flush delays")
	}

	tempDir := t.TempDir()

	var mu sync.Mutex
	var got []PathChangeEntry
	notifier, err := WatchRoots([]string{tempDir}, func(changes []PathChangeEntry) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, changes...)
	})
	require.NoError(t, err)
	defer notifier.Stop()

	target := filepath.Join(tempDir, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("indexed content"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, entry := range got {
			if entry.RelPath == "doc.txt" && entry.Change == ChangeCreated {
				return true
			}
		}
		return false
	}, 15*time.Second, 100*time.Millisecond, "created file must be delivered within the structural max delay")
}
