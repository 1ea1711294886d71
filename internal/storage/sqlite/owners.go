package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

// CreateOwner inserts a new owner into the database.
func (s *SQLiteStore) CreateOwner(ctx context.Context, owner *models.Owner) error {
	query := `
		INSERT INTO owners (id, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, query,
		owner.ID,
		owner.PasswordHash,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	return nil
}

// GetOwner retrieves an owner by ID.
func (s *SQLiteStore) GetOwner(ctx context.Context, id string) (*models.Owner, error) {
	query := `
		SELECT id, password_hash
		FROM owners
		WHERE id = ?
	`

	owner := &models.Owner{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&owner.ID,
		&owner.PasswordHash,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("owner %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}

	return owner, nil
}

// UpdatePasswordHash replaces the stored password hash of an owner.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE owners SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("owner %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
