// Package snapstore persists one opaque CRDT snapshot per document name in
// SQLite, adapted from the teacher's internal/store package: same
// sql.Open("sqlite", ...)/migrate-on-open shape, generalized from chat
// messages and blob metadata rows down to a single upsert-by-name table.
package snapstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists document snapshots keyed by document name.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite snapshot database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("snapshot store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	document_name TEXT PRIMARY KEY,
	revision_id TEXT NOT NULL,
	data BLOB NOT NULL,
	updated_at_unix_ms INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run snapshot migrations: %w", err)
	}
	slog.Debug("snapshot migrations applied")
	return nil
}

// Save upserts the full encoded state for documentName, assigning a fresh
// revision id on every write so callers can tell in logs which save won a
// race between two rooms tearing down the same name in close succession.
func (s *Store) Save(ctx context.Context, documentName string, snapshot []byte) error {
	const q = `
INSERT INTO snapshots (document_name, revision_id, data, updated_at_unix_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(document_name) DO UPDATE SET
	revision_id = excluded.revision_id,
	data = excluded.data,
	updated_at_unix_ms = excluded.updated_at_unix_ms
`
	revisionID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, q, documentName, revisionID, snapshot, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot for %q: %w", documentName, err)
	}
	slog.Debug("snapshot saved", "document", documentName, "revision_id", revisionID, "size", humanize.Bytes(uint64(len(snapshot))))
	return nil
}

// Load returns the most recently saved snapshot for documentName, or
// ok=false if none exists yet.
func (s *Store) Load(ctx context.Context, documentName string) (data []byte, ok bool, err error) {
	const q = `SELECT data FROM snapshots WHERE document_name = ?`
	err = s.db.QueryRowContext(ctx, q, documentName).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot for %q: %w", documentName, err)
	}
	return data, true, nil
}

// OnRoomDestroyed adapts Save to the room.SnapshotFunc signature, logging
// rather than propagating a save failure since by this point the room
// actor that produced the snapshot has already exited.
func (s *Store) OnRoomDestroyed(documentName string, snapshot []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Save(ctx, documentName, snapshot); err != nil {
		slog.Error("snapshot save failed", "document", documentName, "err", err)
	}
}
