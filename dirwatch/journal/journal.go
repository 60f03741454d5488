package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	internal "github.com/ZanzyTHEbar/dirwatch/dirwatch"
	"github.com/ZanzyTHEbar/dirwatch/dirwatch/watcher"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// Provider records flushed change batches in a libsql database for
// postmortem and audit inspection. It is attached by wrapping the
// notification sink and is never on the engine's decision path.
type Provider struct {
	db *sql.DB
}

// NewProvider opens or initializes the journal database at the default
// location under the config directory.
func NewProvider() (*Provider, error) {
	// Ensure the config directory exists
	if err := os.MkdirAll(internal.DefaultConfigPath, 0o755); err != nil {
		return nil, fmt.Errorf("could not create config directory: %v", err)
	}

	slog.Info("Journal database path:", "path", internal.DefaultJournalPath)

	return NewProviderAt("file:" + internal.DefaultJournalPath)
}

// NewProviderAt opens or initializes the journal database at the given DSN.
func NewProviderAt(dsn string) (*Provider, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	provider := &Provider{db: db}
	if err := provider.init(); err != nil {
		db.Close()
		return nil, err
	}
	return provider, nil
}

// init sets up the journal tables.
func (p *Provider) init() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS flushes (
		batch_id TEXT NOT NULL,
		root TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		change_kind TEXT NOT NULL,
		path_kind TEXT NOT NULL,
		flushed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create flushes table: %w", err)
	}

	_, err = p.db.Exec(`CREATE INDEX IF NOT EXISTS idx_flushes_batch ON flushes (batch_id)`)
	if err != nil {
		return fmt.Errorf("failed to create flushes index: %w", err)
	}

	return nil
}

// RecordBatch writes one flushed batch under a fresh batch ID and returns it.
func (p *Provider) RecordBatch(changes []watcher.PathChangeEntry) (uuid.UUID, error) {
	batchID := uuid.New()

	tx, err := p.db.Begin()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be a no-op if transaction is committed

	stmt, err := tx.Prepare("INSERT INTO flushes (batch_id, root, rel_path, change_kind, path_kind) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, change := range changes {
		if _, err := stmt.Exec(batchID.String(), change.Root, change.RelPath, change.Change.String(), change.Kind.String()); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert flush entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("Journaled change batch", "batch_id", batchID, "count", len(changes))

	return batchID, nil
}

// JournaledEntry is one row read back from the journal.
type JournaledEntry struct {
	BatchID    uuid.UUID
	Root       string
	RelPath    string
	ChangeKind string
	PathKind   string
	FlushedAt  time.Time
}

// RecentEntries returns up to limit journaled entries, newest first.
func (p *Provider) RecentEntries(limit int) ([]JournaledEntry, error) {
	rows, err := p.db.Query(
		"SELECT batch_id, root, rel_path, change_kind, path_kind, flushed_at FROM flushes ORDER BY flushed_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournaledEntry
	for rows.Next() {
		var entry JournaledEntry
		var batchID string
		if err := rows.Scan(&batchID, &entry.Root, &entry.RelPath, &entry.ChangeKind, &entry.PathKind, &entry.FlushedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		id, err := uuid.Parse(batchID)
		if err != nil {
			return nil, fmt.Errorf("corrupt batch id %q: %w", batchID, err)
		}
		entry.BatchID = id
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// BatchCount returns the number of distinct flushed batches recorded.
func (p *Provider) BatchCount() (int, error) {
	var count int
	err := p.db.QueryRow("SELECT COUNT(DISTINCT batch_id) FROM flushes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return count, nil
}

// Close closes the journal database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// WrapSink returns a sink that journals each batch before forwarding it to
// next. Journal failures are logged, never propagated: the consumer's
// notification always wins over the audit trail.
func WrapSink(p *Provider, next watcher.BatchHandler) watcher.BatchHandler {
	return func(changes []watcher.PathChangeEntry) {
		if _, err := p.RecordBatch(changes); err != nil {
			slog.Warn("Failed to journal change batch", "error", err)
		}
		next(changes)
	}
}
