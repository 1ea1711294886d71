package ledger

import (
	"context"
	"time"

	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

// State is a consistent copy of the ledger taken for a sync cycle.
type State struct {
	Snapshot models.Snapshot
	Dirty    bool
	Version  uint64
}

// Snapshot copies the full state of the session. Snapshot.LastSync carries
// the local last-update time.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Snapshot: models.Snapshot{
			OwnerID:      s.owner.ID,
			Debts:        models.CloneDebts(s.debts),
			Consumption:  append([]models.ConsumptionRecord{}, s.consumption...),
			PasswordHash: s.owner.PasswordHash,
			LastSync:     s.lastUpdate,
		},
		Dirty:   s.dirty,
		Version: s.version,
	}
}

// AdoptIfNewer replaces the whole ledger with remote when remote.LastSync is
// strictly after the local last update. Local edits not yet pushed are
// discarded with the rest of the local state. It reports whether remote was
// adopted.
func (s *Session) AdoptIfNewer(ctx context.Context, remote models.Snapshot) (bool, error) {
	s.mu.Lock()
	if !remote.LastSync.After(s.lastUpdate) {
		s.mu.Unlock()
		return false, nil
	}

	s.debts = models.CloneDebts(remote.Debts)
	s.consumption = append([]models.ConsumptionRecord{}, remote.Consumption...)
	if remote.PasswordHash != "" {
		s.owner.PasswordHash = remote.PasswordHash
	}
	s.lastUpdate = remote.LastSync.UTC()
	s.dirty = false
	s.version++
	at := s.lastUpdate
	err := s.persistLocked(ctx, OpSync)
	s.mu.Unlock()

	s.logger.Info("Adopted remote snapshot", "last_sync", at, "debts", len(remote.Debts))
	s.afterCommit(OpSync, at, err, false)
	return true, err
}

// MarkSynced records that the state taken at version was stored remotely at
// stamp. When the ledger changed during the push it stays dirty and its last
// update is kept after stamp, so the next cycle pushes it instead of pulling
// the older remote copy.
func (s *Session) MarkSynced(ctx context.Context, version uint64, stamp time.Time) error {
	stamp = stamp.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == version {
		s.dirty = false
		if stamp.After(s.lastUpdate) {
			s.lastUpdate = stamp
		}
	} else if !s.lastUpdate.After(stamp) {
		s.lastUpdate = stamp.Add(time.Nanosecond)
	}

	batch := storage.Batch{}
	if err := batch.Set(storage.LastUpdateKey(s.owner.ID), s.lastUpdate); err != nil {
		return &PersistenceError{Op: OpSync, Err: err}
	}
	if err := s.store.PutAll(ctx, batch); err != nil {
		return &PersistenceError{Op: OpSync, Err: err}
	}
	return nil
}
