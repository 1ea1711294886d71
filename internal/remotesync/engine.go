// Package remotesync reconciles a ledger session with the remote
// authoritative store.
//
// The remote record of an owner is one whole snapshot. Push overwrites it;
// Pull compares timestamps and the strictly newer side wins wholesale
// (last-writer-wins at snapshot granularity). The losing side's state,
// including concurrent edits, is discarded.
package remotesync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/ledgersync/internal/ledger"
	"github.com/mmynk/ledgersync/internal/metrics"
	"github.com/mmynk/ledgersync/internal/models"
)

// ErrNoRemoteSnapshot is returned by Remote.Fetch when the owner has never
// pushed.
var ErrNoRemoteSnapshot = errors.New("no remote snapshot")

// Remote is the authoritative snapshot store.
type Remote interface {
	// Fetch returns the record at users/{ownerID} or ErrNoRemoteSnapshot.
	Fetch(ctx context.Context, ownerID string) (*models.Snapshot, error)

	// Store overwrites the record of snap.OwnerID and returns the stored
	// LastSync.
	Store(ctx context.Context, snap *models.Snapshot) (time.Time, error)
}

// Ledger is the part of ledger.Session the engine needs.
type Ledger interface {
	Snapshot() ledger.State
	AdoptIfNewer(ctx context.Context, remote models.Snapshot) (bool, error)
	MarkSynced(ctx context.Context, version uint64, stamp time.Time) error
}

var _ Ledger = (*ledger.Session)(nil)

// State of the engine.
type State int

const (
	Idle State = iota
	Syncing
	Offline
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case Offline:
		return "offline"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SyncError reports a push or pull that failed after every attempt. It is
// never fatal: the local mutation already succeeded.
type SyncError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Config tunes the engine.
type Config struct {
	// MaxAttempts is the number of immediate attempts per push or pull.
	MaxAttempts int
	// Interval is the period of the background check in Run.
	Interval time.Duration
}

// DefaultConfig returns three attempts and a one minute check.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Interval: time.Minute}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records attempts and state on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// OnFailure registers the callback that surfaces a SyncError to the UI
// collaborator once the engine goes offline.
func OnFailure(fn func(error)) Option {
	return func(e *Engine) { e.onFailure = fn }
}

// OnStateChange registers a callback for state transitions.
func OnStateChange(fn func(State)) Option {
	return func(e *Engine) { e.onState = fn }
}

// Engine reconciles one ledger session with the remote store. At most one
// cycle runs at a time; a trigger that arrives during a cycle makes the
// engine run one more cycle afterwards, which reads a fresh snapshot.
type Engine struct {
	ledger  Ledger
	remote  Remote
	cfg     Config
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger

	onFailure func(error)
	onState   func(State)

	mu         sync.Mutex
	state      State
	inFlight   bool
	pending    bool
	lastPushed string    // fingerprint of the content last seen remotely
	lastRemote time.Time // newest remote LastSync seen

	wg sync.WaitGroup
}

// New creates an idle engine.
func New(l Ledger, remote Remote, cfg Config, opts ...Option) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	e := &Engine{
		ledger: l,
		remote: remote,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
		state:  Idle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.SetSyncState(Idle.String())
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Schedule starts a sync cycle in the background. It never blocks and
// implements ledger.Scheduler.
func (e *Engine) Schedule() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.Sync(context.Background()); err != nil {
			e.logger.Debug("Scheduled sync failed", "error", err)
		}
	}()
}

// NotifyOnline is called by the connectivity collaborator when the network
// comes back.
func (e *Engine) NotifyOnline() {
	e.logger.Info("Connectivity regained", "state", e.State().String())
	e.Schedule()
}

// WatchConnectivity calls probe every interval while the engine is offline
// and reports the first success through NotifyOnline. It returns when ctx is
// done.
func (e *Engine) WatchConnectivity(ctx context.Context, probe func(context.Context) error, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.State() != Offline {
				continue
			}
			if err := probe(ctx); err != nil {
				e.logger.Debug("Remote still unreachable", "error", err)
				continue
			}
			e.NotifyOnline()
		}
	}
}

// Wait blocks until every scheduled cycle has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Run performs a periodic sync until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Wait()
			return ctx.Err()
		case <-ticker.C:
			if err := e.Sync(ctx); err != nil {
				e.logger.Debug("Periodic sync failed", "error", err)
			}
		}
	}
}

// Sync pulls the remote snapshot and adopts it when it is strictly newer;
// otherwise it pushes the local state if it changed.
func (e *Engine) Sync(ctx context.Context) error {
	return e.guard(ctx, "sync", e.sync)
}

func (e *Engine) sync(ctx context.Context) error {
	adopted, err := e.pull(ctx)
	if err != nil {
		return err
	}
	if adopted {
		return nil
	}
	return e.push(ctx)
}

// Push overwrites the remote record with the current local state.
func (e *Engine) Push(ctx context.Context) error {
	return e.guard(ctx, "push", e.push)
}

// Pull adopts the remote record when it is strictly newer than the local
// last update. It never pushes.
func (e *Engine) Pull(ctx context.Context) error {
	return e.guard(ctx, "pull", func(ctx context.Context) error {
		_, err := e.pull(ctx)
		return err
	})
}

// guard runs cycle under the in-flight guard. Triggers that arrive during
// the run are answered by one full sync cycle afterwards, whatever cycle the
// caller started, so a mutation committed during a pull is still pushed.
// When a cycle fails the queued triggers are dropped with it; the change
// stays dirty in the ledger and goes out with the next trigger.
func (e *Engine) guard(ctx context.Context, name string, cycle func(context.Context) error) error {
	e.mu.Lock()
	if e.inFlight {
		e.pending = true
		e.mu.Unlock()
		e.logger.Debug("Sync already in flight, queued", "op", name)
		return nil
	}
	e.inFlight = true
	e.mu.Unlock()
	e.setState(Syncing)

	for {
		err := cycle(ctx)

		e.mu.Lock()
		again := e.pending && err == nil
		e.pending = false
		if !again {
			e.inFlight = false
		}
		e.mu.Unlock()

		if again {
			name, cycle = "sync", e.sync
			continue
		}
		if err != nil {
			e.setState(Offline)
			e.logger.Warn("Sync failed, working offline", "op", name, "error", err)
			if e.onFailure != nil {
				e.onFailure(err)
			}
			return err
		}
		e.setState(Idle)
		return nil
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	changed := e.state != s
	e.state = s
	e.mu.Unlock()
	if !changed {
		return
	}
	e.metrics.SetSyncState(s.String())
	if e.onState != nil {
		e.onState(s)
	}
}

// retry calls fn up to MaxAttempts times without delay.
func (e *Engine) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	attempt := 0
	for attempt < e.cfg.MaxAttempts {
		attempt++
		err = fn()
		e.metrics.SyncAttempt(op, err)
		if err == nil {
			return nil
		}
		e.logger.Warn("Sync attempt failed", "op", op, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return &SyncError{Op: op, Attempts: attempt, Err: err}
}

func (e *Engine) pull(ctx context.Context) (bool, error) {
	ownerID := e.ledger.Snapshot().Snapshot.OwnerID

	var remote *models.Snapshot
	err := e.retry(ctx, "pull", func() error {
		snap, err := e.remote.Fetch(ctx, ownerID)
		if errors.Is(err, ErrNoRemoteSnapshot) {
			remote = nil
			return nil
		}
		if err != nil {
			return err
		}
		remote = snap
		return nil
	})
	if err != nil {
		return false, err
	}
	if remote == nil {
		return false, nil
	}

	fp, err := fingerprint(remote)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	e.lastPushed = fp
	if remote.LastSync.After(e.lastRemote) {
		e.lastRemote = remote.LastSync
	}
	e.mu.Unlock()

	adopted, err := e.ledger.AdoptIfNewer(ctx, *remote)
	if err != nil {
		// local write failed; memory already holds the remote state
		e.logger.Error("Adopted remote snapshot not persisted", "error", err)
	}
	if adopted {
		e.logger.Info("Remote snapshot is newer, local state replaced", "owner_id", ownerID, "last_sync", remote.LastSync)
	}
	return adopted, nil
}

func (e *Engine) push(ctx context.Context) error {
	st := e.ledger.Snapshot()
	snap := st.Snapshot

	fp, err := fingerprint(&snap)
	if err != nil {
		return err
	}

	e.mu.Lock()
	unchanged := fp == e.lastPushed
	stamp := e.now().UTC()
	if stamp.Before(e.lastRemote) {
		stamp = e.lastRemote
	}
	e.mu.Unlock()

	if unchanged {
		e.logger.Debug("Snapshot unchanged, skipping push", "owner_id", snap.OwnerID)
		if st.Dirty {
			return e.ledger.MarkSynced(ctx, st.Version, stamp)
		}
		return nil
	}

	snap.LastSync = stamp
	var stored time.Time
	err = e.retry(ctx, "push", func() error {
		var err error
		stored, err = e.remote.Store(ctx, &snap)
		return err
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.lastPushed = fp
	if stored.After(e.lastRemote) {
		e.lastRemote = stored
	}
	e.mu.Unlock()

	if err := e.ledger.MarkSynced(ctx, st.Version, stored); err != nil {
		e.logger.Error("Failed to record sync time", "error", err)
	}
	e.logger.Info("Snapshot pushed",
		"owner_id", snap.OwnerID,
		"debts", len(snap.Debts),
		"consumption", len(snap.Consumption),
		"last_sync", stored,
	)
	return nil
}

// fingerprint hashes the content of a snapshot, ignoring its timestamp.
func fingerprint(snap *models.Snapshot) (string, error) {
	content := struct {
		Debts        []models.DebtRecord        `json:"debts"`
		Consumption  []models.ConsumptionRecord `json:"consumption"`
		PasswordHash string                     `json:"password"`
	}{snap.Debts, snap.Consumption, snap.PasswordHash}
	if content.Debts == nil {
		content.Debts = []models.DebtRecord{}
	}
	if content.Consumption == nil {
		content.Consumption = []models.ConsumptionRecord{}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint snapshot: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
