package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers raw callback invocations from a handle.
type collector struct {
	mu      sync.Mutex
	created []string
	changed []string
	deleted []string
}

func (c *collector) callbacks() Callbacks {
	return Callbacks{
		OnCreated: func(path string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.created = append(c.created, path)
		},
		OnChanged: func(path string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.changed = append(c.changed, path)
		},
		OnDeleted: func(path string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.deleted = append(c.deleted, path)
		},
	}
}

func (c *collector) sawCreated(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.created {
		if p == path {
			return true
		}
	}
	return false
}

func (c *collector) sawChanged(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.changed {
		if p == path {
			return true
		}
	}
	return false
}

func (c *collector) sawDeleted(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.deleted {
		if p == path {
			return true
		}
	}
	return false
}

func TestFSNotifySource_FileNameFacet(t *testing.T) {
	tempDir := t.TempDir()
	source := NewFSNotifySource(1024)
	c := &collector{}

	handle, err := source.NewWatcher(tempDir, FacetFileName, c.callbacks())
	require.NoError(t, err)
	defer handle.Close()
	require.NoError(t, handle.Start())

	target := filepath.Join(tempDir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	require.Eventually(t, func() bool { return c.sawCreated(target) },
		5*time.Second, 10*time.Millisecond, "file creation must reach the file-name facet")

	require.NoError(t, os.Remove(target))
	require.Eventually(t, func() bool { return c.sawDeleted(target) },
		5*time.Second, 10*time.Millisecond)
}

func TestFSNotifySource_LastWriteFacet(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	source := NewFSNotifySource(1024)
	c := &collector{}

	handle, err := source.NewWatcher(tempDir, FacetLastWrite, c.callbacks())
	require.NoError(t, err)
	defer handle.Close()
	require.NoError(t, handle.Start())

	require.NoError(t, os.WriteFile(target, []byte("v2 with more content"), 0o644))

	require.Eventually(t, func() bool { return c.sawChanged(target) },
		5*time.Second, 10*time.Millisecond, "writes must reach the last-write facet")

	assert.False(t, c.sawCreated(target), "the last-write facet never reports name events")
}

func TestFSNotifySource_DirectoryNameFacetAndRecursion(t *testing.T) {
	tempDir := t.TempDir()
	source := NewFSNotifySource(1024)
	c := &collector{}

	handle, err := source.NewWatcher(tempDir, FacetDirectoryName, c.callbacks())
	require.NoError(t, err)
	defer handle.Close()
	require.NoError(t, handle.Start())

	subDir := filepath.Join(tempDir, "sub")
	require.NoError(t, os.Mkdir(subDir, 0o755))

	require.Eventually(t, func() bool { return c.sawCreated(subDir) },
		5*time.Second, 10*time.Millisecond, "directory creation must reach the directory-name facet")

	// New directories join the watch: events below them keep flowing
	nested := filepath.Join(subDir, "nested")
	require.Eventually(t, func() bool {
		// Retried because the subdirectory add races the mkdir below it
		os.RemoveAll(nested)
		if err := os.Mkdir(nested, 0o755); err != nil {
			return false
		}
		time.Sleep(50 * time.Millisecond)
		return c.sawCreated(nested)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestFSNotifySource_StopGatesDelivery(t *testing.T) {
	tempDir := t.TempDir()
	source := NewFSNotifySource(1024)
	c := &collector{}

	handle, err := source.NewWatcher(tempDir, FacetFileName, c.callbacks())
	require.NoError(t, err)
	defer handle.Close()

	// Never started: events are read but not delivered
	target := filepath.Join(tempDir, "quiet.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.False(t, c.sawCreated(target))

	require.NoError(t, handle.Start())
	second := filepath.Join(tempDir, "loud.txt")
	require.NoError(t, os.WriteFile(second, []byte("x"), 0o644))
	require.Eventually(t, func() bool { return c.sawCreated(second) },
		5*time.Second, 10*time.Millisecond)
}
