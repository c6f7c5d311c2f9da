// Package storage provides abstractions for durable snapshot storage.
package storage

import (
	"context"
	"errors"
)

// ErrNoSnapshot is returned by Load when no snapshot has ever been
// saved. Startup treats this as an empty ledger, not a failure.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore persists the full serialized ledger. The engine writes
// the whole document on every mutation; there are no incremental
// updates. This abstraction allows swapping storage backends without
// changing the engine.
type SnapshotStore interface {
	// Save durably stores one full snapshot.
	Save(ctx context.Context, snapshot []byte) error

	// Load returns the most recent snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}
