package journal

import (
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/dirwatch/dirwatch/watcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	provider, err := NewProviderAt("file:" + dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func sampleBatch() []watcher.PathChangeEntry {
	return []watcher.PathChangeEntry{
		{Root: "/roots/a", RelPath: "x.txt", Change: watcher.ChangeChanged, Kind: watcher.PathFile},
		{Root: "/roots/a", RelPath: "sub", Change: watcher.ChangeCreated, Kind: watcher.PathDirectory},
	}
}

func TestProvider_RecordAndReadBack(t *testing.T) {
	provider := testProvider(t)

	batchID, err := provider.RecordBatch(sampleBatch())
	require.NoError(t, err)

	entries, err := provider.RecentEntries(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		assert.Equal(t, batchID, entry.BatchID)
		assert.Equal(t, "/roots/a", entry.Root)
		assert.False(t, entry.FlushedAt.IsZero())
	}
}

func TestProvider_BatchCount(t *testing.T) {
	provider := testProvider(t)

	_, err := provider.RecordBatch(sampleBatch())
	require.NoError(t, err)
	_, err = provider.RecordBatch(sampleBatch())
	require.NoError(t, err)

	count, err := provider.BatchCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWrapSink_JournalsThenForwards(t *testing.T) {
	provider := testProvider(t)

	var forwarded []watcher.PathChangeEntry
	sink := WrapSink(provider, func(changes []watcher.PathChangeEntry) {
		forwarded = append(forwarded, changes...)
	})

	sink(sampleBatch())

	require.Len(t, forwarded, 2)
	count, err := provider.BatchCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProvider_RecentEntriesLimit(t *testing.T) {
	provider := testProvider(t)

	_, err := provider.RecordBatch(sampleBatch())
	require.NoError(t, err)

	entries, err := provider.RecentEntries(1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
