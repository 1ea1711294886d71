// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/ledgersync/internal/models"
)

// ErrNotFound is returned when a key, owner or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Store is the local durable key-value storage used by the ledger.
// Values are opaque bytes; the ledger writes JSON.
// This abstraction allows swapping storage backends without changing
// the ledger.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// PutAll writes every entry atomically: either all keys are written or none.
	PutAll(ctx context.Context, entries map[string][]byte) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close releases any resources held by the store.
	Close() error
}

// SnapshotStore holds the authoritative remote record of every owner.
type SnapshotStore interface {
	// GetSnapshot returns the record at users/{ownerID}, or ErrNotFound.
	GetSnapshot(ctx context.Context, ownerID string) (*models.Snapshot, error)

	// PutSnapshot overwrites the whole record of snap.OwnerID and returns the
	// stored LastSync, which never moves backwards for an owner.
	PutSnapshot(ctx context.Context, snap *models.Snapshot) (time.Time, error)
}

// OwnerStore persists owner identities for the remote auth service.
type OwnerStore interface {
	CreateOwner(ctx context.Context, owner *models.Owner) error
	GetOwner(ctx context.Context, id string) (*models.Owner, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
