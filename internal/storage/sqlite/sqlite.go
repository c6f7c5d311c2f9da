// Package sqlite provides a SQLite-backed implementation of the
// storage.SnapshotStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/clweng/ledgerbot/internal/storage"
)

// keepSnapshots is how many historical snapshots Save retains.
const keepSnapshots = 20

// Ensure SQLiteStore implements storage.SnapshotStore
var _ storage.SnapshotStore = (*SQLiteStore)(nil)

// SQLiteStore implements storage.SnapshotStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path. It
// creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save appends a snapshot row and prunes history past the retention
// count, all in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snapshot []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (id, data, created_at) VALUES (?, ?, ?)",
		uuid.New().String(), string(snapshot), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`,
		keepSnapshots,
	)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Load returns the newest snapshot, or storage.ErrNoSnapshot when the
// table is empty.
func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(data), nil
}
