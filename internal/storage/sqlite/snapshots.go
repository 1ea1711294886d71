package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

// GetSnapshot retrieves the remote record of an owner.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, ownerID string) (*models.Snapshot, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM snapshots WHERE path = ?",
		models.RemotePath(ownerID),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", models.RemotePath(ownerID), storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snap := &models.Snapshot{}
	if err := json.Unmarshal([]byte(body), snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// PutSnapshot overwrites the whole record of an owner. A LastSync older than
// the stored one is raised to the stored value.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *models.Snapshot) (time.Time, error) {
	if snap.OwnerID == "" {
		return time.Time{}, fmt.Errorf("snapshot owner is required")
	}
	path := models.RemotePath(snap.OwnerID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored := *snap
	stored.LastSync = snap.LastSync.UTC()

	var prev string
	err = tx.QueryRowContext(ctx, "SELECT last_sync FROM snapshots WHERE path = ?", path).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return time.Time{}, fmt.Errorf("failed to read previous snapshot: %w", err)
	default:
		prevSync, err := time.Parse(time.RFC3339Nano, prev)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse stored last_sync: %w", err)
		}
		if stored.LastSync.Before(prevSync) {
			stored.LastSync = prevSync
		}
	}

	body, err := json.Marshal(&stored)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (path, owner_id, body, last_sync, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET body = excluded.body, last_sync = excluded.last_sync, updated_at = excluded.updated_at`,
		path, stored.OwnerID, string(body), stored.LastSync.Format(time.RFC3339Nano), time.Now().Unix(),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stored.LastSync, nil
}
