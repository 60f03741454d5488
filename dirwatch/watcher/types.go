package watcher

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/dirwatch/dirwatch"
)

// ChangeKind represents the net effect of one or more raw events on a path
type ChangeKind int

const (
	// ChangeNone represents no net change (e.g. created then deleted)
	ChangeNone ChangeKind = iota
	// ChangeCreated represents a path that came into existence
	ChangeCreated
	// ChangeDeleted represents a path that was removed
	ChangeDeleted
	// ChangeChanged represents a path whose content differs from what the
	// consumer last saw
	ChangeChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeCreated:
		return "created"
	case ChangeDeleted:
		return "deleted"
	case ChangeChanged:
		return "changed"
	default:
		return fmt.Sprintf("changekind(%d)", int(k))
	}
}

// PathKind represents what kind of filesystem entry a change refers to.
// Raw events cannot always distinguish file from directory, so ambiguity is
// first-class: PathFileOrDirectory is the unknown element and
// PathFileAndDirectory records that both kinds were observed for one path.
type PathKind int

const (
	// PathFile is a known file
	PathFile PathKind = iota
	// PathDirectory is a known directory
	PathDirectory
	// PathFileOrDirectory is an entry whose kind could not be determined
	PathFileOrDirectory
	// PathFileAndDirectory records that both a file and a directory were
	// observed under the same path within one batch
	PathFileAndDirectory
)

func (k PathKind) String() string {
	switch k {
	case PathFile:
		return "file"
	case PathDirectory:
		return "directory"
	case PathFileOrDirectory:
		return "file_or_directory"
	case PathFileAndDirectory:
		return "file_and_directory"
	default:
		return fmt.Sprintf("pathkind(%d)", int(k))
	}
}

// PathChangeEntry is the unit exchanged between the engine and the sink: one
// watched root, a path relative to it, and the merged change/path kinds.
// RelPath is empty when the entry refers to the root itself.
type PathChangeEntry struct {
	Root    string
	RelPath string
	Change  ChangeKind
	Kind    PathKind
}

// FullPath returns the absolute path the entry refers to.
func (e PathChangeEntry) FullPath() string {
	if e.RelPath == "" {
		return e.Root
	}
	return filepath.Join(e.Root, e.RelPath)
}

// changeKindTable encodes the combine transition table, indexed
// [current][incoming]. The asymmetric cells are deliberate: Created then
// Deleted cancels to None (the consumer never saw the path), Deleted then
// Created becomes Changed (content differs from what the consumer last saw),
// and Deleted then Changed stays Deleted (a write racing a deletion is
// dominated by the deletion).
var changeKindTable = [4][4]ChangeKind{
	ChangeNone:    {ChangeNone: ChangeNone, ChangeCreated: ChangeCreated, ChangeDeleted: ChangeDeleted, ChangeChanged: ChangeChanged},
	ChangeCreated: {ChangeNone: ChangeCreated, ChangeCreated: ChangeCreated, ChangeDeleted: ChangeNone, ChangeChanged: ChangeCreated},
	ChangeDeleted: {ChangeNone: ChangeDeleted, ChangeCreated: ChangeChanged, ChangeDeleted: ChangeDeleted, ChangeChanged: ChangeDeleted},
	ChangeChanged: {ChangeNone: ChangeChanged, ChangeCreated: ChangeChanged, ChangeDeleted: ChangeDeleted, ChangeChanged: ChangeChanged},
}

// CombineChangeKind folds an incoming change kind into the current one.
func CombineChangeKind(current, incoming ChangeKind) ChangeKind {
	return changeKindTable[current][incoming]
}

// CombinePathKind folds an incoming path kind into the current one.
// PathFileOrDirectory is neutral, PathFileAndDirectory is absorbing, and
// File combined with Directory upgrades to PathFileAndDirectory.
func CombinePathKind(current, incoming PathKind) PathKind {
	if current == PathFileAndDirectory || incoming == PathFileAndDirectory {
		return PathFileAndDirectory
	}
	if current == PathFileOrDirectory {
		return incoming
	}
	if incoming == PathFileOrDirectory {
		return current
	}
	if current != incoming {
		return PathFileAndDirectory
	}
	return current
}

// neutralEntry is the merge identity for a path that has no pending entry yet.
func neutralEntry(root, relPath string) PathChangeEntry {
	return PathChangeEntry{Root: root, RelPath: relPath, Change: ChangeNone, Kind: PathFileOrDirectory}
}

// mergeEntries combines a pending entry with an incoming one for the same
// path. The result keeps the incoming identity and stores the combined kinds.
func mergeEntries(current, incoming PathChangeEntry) PathChangeEntry {
	return PathChangeEntry{
		Root:    incoming.Root,
		RelPath: incoming.RelPath,
		Change:  CombineChangeKind(current.Change, incoming.Change),
		Kind:    CombinePathKind(current.Kind, incoming.Kind),
	}
}

// normalizeKey produces the pending-map / registry key for a path, following
// the platform's path comparison convention.
func normalizeKey(path string) string {
	cleaned := filepath.Clean(path)
	if internal.CaseInsensitivePaths {
		cleaned = strings.ToLower(cleaned)
	}
	return cleaned
}

// validatePath rejects paths the engine refuses to track: empty, containing a
// NUL byte, relative, or longer than the platform ceiling.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path %q is not absolute", path)
	}
	if len(path) > internal.MaxPathLength {
		return fmt.Errorf("path length %d exceeds ceiling %d", len(path), internal.MaxPathLength)
	}
	return nil
}
