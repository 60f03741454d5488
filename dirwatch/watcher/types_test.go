package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allChangeKinds = []ChangeKind{ChangeNone, ChangeCreated, ChangeDeleted, ChangeChanged}

var allPathKinds = []PathKind{PathFile, PathDirectory, PathFileOrDirectory, PathFileAndDirectory}

func TestCombineChangeKind_Table(t *testing.T) {
	// current -> incoming -> expected, spelled out cell by cell
	expected := map[ChangeKind]map[ChangeKind]ChangeKind{
		ChangeNone: {
			ChangeNone:    ChangeNone,
			ChangeCreated: ChangeCreated,
			ChangeDeleted: ChangeDeleted,
			ChangeChanged: ChangeChanged,
		},
		ChangeCreated: {
			ChangeNone:    ChangeCreated,
			ChangeCreated: ChangeCreated,
			ChangeDeleted: ChangeNone,
			ChangeChanged: ChangeCreated,
		},
		ChangeDeleted: {
			ChangeNone:    ChangeDeleted,
			ChangeCreated: ChangeChanged,
			ChangeDeleted: ChangeDeleted,
			ChangeChanged: ChangeDeleted,
		},
		ChangeChanged: {
			ChangeNone:    ChangeChanged,
			ChangeCreated: ChangeChanged,
			ChangeDeleted: ChangeDeleted,
			ChangeChanged: ChangeChanged,
		},
	}

	for _, current := range allChangeKinds {
		for _, incoming := range allChangeKinds {
			got := CombineChangeKind(current, incoming)
			assert.Equal(t, expected[current][incoming], got,
				"combine(%s, %s)", current, incoming)
		}
	}
}

func TestCombineChangeKind_NoneIsNeutral(t *testing.T) {
	for _, kind := range allChangeKinds {
		assert.Equal(t, kind, CombineChangeKind(ChangeNone, kind))
		assert.Equal(t, kind, CombineChangeKind(kind, ChangeNone))
	}
}

func TestCombineChangeKind_AsymmetricCells(t *testing.T) {
	// Created then Deleted cancels: the consumer never saw the path.
	assert.Equal(t, ChangeNone, CombineChangeKind(ChangeCreated, ChangeDeleted))
	// Deleted then Created is a net content difference, not a fresh creation.
	assert.Equal(t, ChangeChanged, CombineChangeKind(ChangeDeleted, ChangeCreated))
	// A write racing a deletion is dominated by the deletion.
	assert.Equal(t, ChangeDeleted, CombineChangeKind(ChangeDeleted, ChangeChanged))
}

func TestCombinePathKind_Table(t *testing.T) {
	expected := map[PathKind]map[PathKind]PathKind{
		PathFile: {
			PathFile:             PathFile,
			PathDirectory:        PathFileAndDirectory,
			PathFileOrDirectory:  PathFile,
			PathFileAndDirectory: PathFileAndDirectory,
		},
		PathDirectory: {
			PathFile:             PathFileAndDirectory,
			PathDirectory:        PathDirectory,
			PathFileOrDirectory:  PathDirectory,
			PathFileAndDirectory: PathFileAndDirectory,
		},
		PathFileOrDirectory: {
			PathFile:             PathFile,
			PathDirectory:        PathDirectory,
			PathFileOrDirectory:  PathFileOrDirectory,
			PathFileAndDirectory: PathFileAndDirectory,
		},
		PathFileAndDirectory: {
			PathFile:             PathFileAndDirectory,
			PathDirectory:        PathFileAndDirectory,
			PathFileOrDirectory:  PathFileAndDirectory,
			PathFileAndDirectory: PathFileAndDirectory,
		},
	}

	for _, current := range allPathKinds {
		for _, incoming := range allPathKinds {
			got := CombinePathKind(current, incoming)
			assert.Equal(t, expected[current][incoming], got,
				"combine(%s, %s)", current, incoming)
		}
	}
}

func TestCombinePathKind_CommutativeAndAssociative(t *testing.T) {
	for _, a := range allPathKinds {
		for _, b := range allPathKinds {
			assert.Equal(t, CombinePathKind(a, b), CombinePathKind(b, a),
				"commutativity for (%s, %s)", a, b)
			for _, c := range allPathKinds {
				left := CombinePathKind(CombinePathKind(a, b), c)
				right := CombinePathKind(a, CombinePathKind(b, c))
				assert.Equal(t, left, right, "associativity for (%s, %s, %s)", a, b, c)
			}
		}
	}
}

func TestMergeEntries_KeepsIncomingIdentity(t *testing.T) {
	current := neutralEntry("/roots/a", "x.txt")
	incoming := PathChangeEntry{Root: "/roots/a", RelPath: "x.txt", Change: ChangeCreated, Kind: PathFile}

	merged := mergeEntries(current, incoming)

	assert.Equal(t, "/roots/a", merged.Root)
	assert.Equal(t, "x.txt", merged.RelPath)
	assert.Equal(t, ChangeCreated, merged.Change)
	assert.Equal(t, PathFile, merged.Kind)
}

func TestMergeEntries_NeutralEntryIsIdentity(t *testing.T) {
	for _, change := range allChangeKinds {
		for _, kind := range allPathKinds {
			incoming := PathChangeEntry{Root: "/r", RelPath: "p", Change: change, Kind: kind}
			merged := mergeEntries(neutralEntry("/r", "p"), incoming)
			assert.Equal(t, incoming, merged)
		}
	}
}

func TestPathChangeEntry_FullPath(t *testing.T) {
	entry := PathChangeEntry{Root: "/roots/a", RelPath: "sub/x.txt"}
	assert.Equal(t, "/roots/a/sub/x.txt", entry.FullPath())

	// Empty relative path refers to the root itself
	rootEntry := PathChangeEntry{Root: "/roots/a", RelPath: ""}
	assert.Equal(t, "/roots/a", rootEntry.FullPath())
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, validatePath("/tmp/some/file.txt"))
	assert.Error(t, validatePath(""))
	assert.Error(t, validatePath("relative/path"))
	assert.Error(t, validatePath("/tmp/bad\x00name"))

	long := "/tmp/"
	for len(long) < 5000 {
		long += "aaaaaaaaaa/"
	}
	assert.Error(t, validatePath(long))
}
