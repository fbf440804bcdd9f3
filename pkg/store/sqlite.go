// Package store persists gate snapshots. The gate itself runs fully in
// memory; this package gives it a durable checkpoint to restore from
// after a restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/vaultgate/pkg/gate"

	_ "modernc.org/sqlite"
)

// SQLiteSnapshotStore keeps whole-gate snapshots as JSON rows and
// mirrors the audit trail into its own table so it can be inspected
// with plain SQL without deserializing a snapshot.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

func NewSQLiteSnapshotStore(db *sql.DB) (*SQLiteSnapshotStore, error) {
	s := &SQLiteSnapshotStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens (or creates) the database file and returns a store bound
// to it.
func Open(path string) (*SQLiteSnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return NewSQLiteSnapshotStore(db)
}

func (s *SQLiteSnapshotStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS snapshots (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        created_at DATETIME NOT NULL,
        state JSON NOT NULL
    );
    CREATE TABLE IF NOT EXISTS audit_entries (
        id INTEGER PRIMARY KEY,
        timestamp DATETIME NOT NULL,
        action_type TEXT NOT NULL,
        requester TEXT NOT NULL,
        decision TEXT NOT NULL,
        entry_hash TEXT NOT NULL,
        previous_hash TEXT NOT NULL DEFAULT '',
        entry JSON NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Save writes a snapshot and refreshes the audit mirror in one
// transaction.
func (s *SQLiteSnapshotStore) Save(ctx context.Context, snap gate.Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (created_at, state) VALUES (?, ?)`,
		now, string(state),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, e := range snap.AuditEntries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode audit entry %d: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO audit_entries (id, timestamp, action_type, requester, decision, entry_hash, previous_hash, entry)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.ActionType,
			e.Requester,
			e.PolicyResult.Decision,
			e.EntryHash,
			e.PreviousHash,
			string(entryJSON),
		); err != nil {
			return fmt.Errorf("mirror audit entry %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// LoadLatest returns the most recent snapshot, or (nil, nil) when the
// store is empty.
func (s *SQLiteSnapshotStore) LoadLatest(ctx context.Context) (*gate.Snapshot, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap gate.Snapshot
	if err := json.Unmarshal([]byte(state), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Prune keeps the newest n snapshots and drops the rest. The audit
// mirror is append-only and never pruned.
func (s *SQLiteSnapshotStore) Prune(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
            SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
        )`, keep)
	return err
}

// Close closes the underlying database.
func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
