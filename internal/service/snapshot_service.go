package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/ledgersync/internal/auth"
	"github.com/mmynk/ledgersync/internal/middleware"
	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/remote"
	"github.com/mmynk/ledgersync/internal/storage"
)

// SnapshotService implements the SnapshotService RPC interface: one whole
// snapshot record per owner at users/{ownerId}.
type SnapshotService struct {
	snapshots storage.SnapshotStore
	owners    storage.OwnerStore
	logger    *slog.Logger
}

var _ remote.SnapshotServiceHandler = (*SnapshotService)(nil)

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(snapshots storage.SnapshotStore, owners storage.OwnerStore, logger *slog.Logger) *SnapshotService {
	return &SnapshotService{snapshots: snapshots, owners: owners, logger: logger}
}

// authorize checks that the caller owns ownerID.
func authorize(ctx context.Context, ownerID string) error {
	caller := middleware.GetOwnerID(ctx)
	if caller == "" {
		return connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	if ownerID == "" {
		return connect.NewError(connect.CodeInvalidArgument, auth.ErrMissingOwner)
	}
	if caller != ownerID {
		return connect.NewError(connect.CodePermissionDenied, fmt.Errorf("%s cannot access %s", caller, models.RemotePath(ownerID)))
	}
	return nil
}

// GetSnapshot returns the record of the calling owner.
func (s *SnapshotService) GetSnapshot(ctx context.Context, req *connect.Request[remote.GetSnapshotRequest]) (*connect.Response[remote.GetSnapshotResponse], error) {
	ownerID := req.Msg.OwnerID
	if err := authorize(ctx, ownerID); err != nil {
		return nil, err
	}

	snap, err := s.snapshots.GetSnapshot(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		s.logger.Error("Failed to load snapshot", "owner_id", ownerID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&remote.GetSnapshotResponse{
		Path:     models.RemotePath(ownerID),
		Snapshot: snap,
	}), nil
}

// PutSnapshot overwrites the record of the calling owner. A password hash
// carried by the snapshot also becomes the owner's login hash.
func (s *SnapshotService) PutSnapshot(ctx context.Context, req *connect.Request[remote.PutSnapshotRequest]) (*connect.Response[remote.PutSnapshotResponse], error) {
	snap := req.Msg.Snapshot
	if snap == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("snapshot is required"))
	}
	if err := authorize(ctx, snap.OwnerID); err != nil {
		return nil, err
	}
	for i := range snap.Debts {
		if err := snap.Debts[i].Validate(); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	stored, err := s.snapshots.PutSnapshot(ctx, snap)
	if err != nil {
		s.logger.Error("Failed to store snapshot", "owner_id", snap.OwnerID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	if auth.IsPasswordHash(snap.PasswordHash) {
		if err := s.syncLoginHash(ctx, snap.OwnerID, snap.PasswordHash); err != nil {
			s.logger.Warn("Login password not updated", "owner_id", snap.OwnerID, "error", err)
		}
	}

	s.logger.Info("Snapshot stored",
		"owner_id", snap.OwnerID,
		"debts", len(snap.Debts),
		"consumption", len(snap.Consumption),
		"last_sync", stored,
	)
	return connect.NewResponse(&remote.PutSnapshotResponse{
		Path:     models.RemotePath(snap.OwnerID),
		LastSync: stored,
	}), nil
}

func (s *SnapshotService) syncLoginHash(ctx context.Context, ownerID, hash string) error {
	owner, err := s.owners.GetOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if owner.PasswordHash == hash {
		return nil
	}
	return s.owners.UpdatePasswordHash(ctx, ownerID, hash)
}
