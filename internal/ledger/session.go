// Package ledger owns the canonical in-memory state of one owner's debts,
// payments and consumption log, enforces the ledger invariants and persists
// every committed mutation before a remote sync is scheduled.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmynk/ledgersync/internal/metrics"
	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

// Scheduler receives a request to reconcile with the remote store after a
// committed mutation. Schedule must not block.
type Scheduler interface {
	Schedule()
}

// Change is delivered to subscribers after every committed change.
type Change struct {
	Op      string
	OwnerID string
	At      time.Time
}

// Operation names used in Change and metrics.
const (
	OpDebt        = "debt"
	OpPayment     = "payment"
	OpConsumption = "consumption"
	OpDeleteAll   = "delete_all"
	OpRestore     = "restore"
	OpPassword    = "password"
	OpSync        = "sync"
)

// Option configures a Session.
type Option func(*Session)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithScheduler sets the sync scheduler.
func WithScheduler(sch Scheduler) Option {
	return func(s *Session) { s.scheduler = sch }
}

// WithMetrics records mutations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is the ledger of one owner. All reads and mutations go through it;
// there is no package-level state.
//
// Every mutation is applied to memory first, then written to the Store, then
// handed to the Scheduler, so a read right after a mutation observes it.
type Session struct {
	mu sync.Mutex

	store     storage.Store
	scheduler Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	owner       models.Owner
	debts       []models.DebtRecord
	consumption []models.ConsumptionRecord
	lastUpdate  time.Time
	dirty       bool
	version     uint64

	listeners    map[int]func(Change)
	nextListener int
}

// Open loads the persisted ledger of owner and makes it the current owner on
// this device. When no password hash is stored yet, owner.PasswordHash is
// persisted.
func Open(ctx context.Context, store storage.Store, owner models.Owner, opts ...Option) (*Session, error) {
	owner.ID = strings.TrimSpace(owner.ID)
	if owner.ID == "" {
		return nil, &ValidationError{Field: "owner", Reason: "must not be empty"}
	}

	s := &Session{
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		owner:     owner,
		listeners: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("owner_id", owner.ID)

	id := owner.ID
	var storedHash string
	hasHash, err := storage.GetJSON(ctx, store, storage.PasswordKey(id), &storedHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load password: %w", err)
	}
	if hasHash {
		s.owner.PasswordHash = storedHash
	}
	if _, err := storage.GetJSON(ctx, store, storage.DebtsKey(id), &s.debts); err != nil {
		return nil, fmt.Errorf("failed to load debts: %w", err)
	}
	if _, err := storage.GetJSON(ctx, store, storage.ConsumptionKey(id), &s.consumption); err != nil {
		return nil, fmt.Errorf("failed to load consumption: %w", err)
	}
	if _, err := storage.GetJSON(ctx, store, storage.LastUpdateKey(id), &s.lastUpdate); err != nil {
		return nil, fmt.Errorf("failed to load last update: %w", err)
	}

	for i := range s.debts {
		if err := s.debts[i].Validate(); err != nil {
			s.logger.Warn("Loaded debt breaks ledger invariants", "debt_id", s.debts[i].ID, "error", err)
		}
	}

	batch := storage.Batch{}
	if err := batch.Set(storage.CurrentOwnerKey, id); err != nil {
		return nil, err
	}
	if !hasHash && owner.PasswordHash != "" {
		if err := batch.Set(storage.PasswordKey(id), owner.PasswordHash); err != nil {
			return nil, err
		}
	}
	if err := store.PutAll(ctx, batch); err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	s.logger.Info("Ledger opened",
		"debts", len(s.debts),
		"consumption", len(s.consumption),
		"last_update", s.lastUpdate,
	)
	return s, nil
}

// SetScheduler replaces the sync scheduler. The engine is usually built
// after the session it reconciles.
func (s *Session) SetScheduler(sch Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = sch
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs after the change is committed, outside any lock.
func (s *Session) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// touchLocked records a local change. lastUpdate never moves backwards.
func (s *Session) touchLocked() time.Time {
	now := s.now().UTC()
	if now.After(s.lastUpdate) {
		s.lastUpdate = now
	}
	s.dirty = true
	s.version++
	return s.lastUpdate
}

// persistLocked writes the whole ledger of the owner in one batch.
func (s *Session) persistLocked(ctx context.Context, op string) error {
	id := s.owner.ID
	batch := storage.Batch{}
	debts := s.debts
	if debts == nil {
		debts = []models.DebtRecord{}
	}
	consumption := s.consumption
	if consumption == nil {
		consumption = []models.ConsumptionRecord{}
	}
	for key, v := range map[string]any{
		storage.DebtsKey(id):       debts,
		storage.ConsumptionKey(id): consumption,
		storage.LastUpdateKey(id):  s.lastUpdate,
		storage.PasswordKey(id):    s.owner.PasswordHash,
	} {
		if err := batch.Set(key, v); err != nil {
			return &PersistenceError{Op: op, Err: err}
		}
	}
	if err := s.store.PutAll(ctx, batch); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// afterCommit notifies subscribers and, when schedule is set, asks for a
// sync. It must be called without holding s.mu.
func (s *Session) afterCommit(op string, at time.Time, err error, schedule bool) {
	s.metrics.Mutation(op, err)
	if err != nil {
		s.logger.Error("Ledger change not persisted", "op", op, "error", err)
	}

	s.mu.Lock()
	listeners := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	sch := s.scheduler
	s.mu.Unlock()

	change := Change{Op: op, OwnerID: s.owner.ID, At: at}
	for _, fn := range listeners {
		fn(change)
	}
	if schedule && sch != nil {
		sch.Schedule()
	}
}
