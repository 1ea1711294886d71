package remotesync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/ledger"
	"github.com/mmynk/ledgersync/internal/metrics"
	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage/sqlite"
)

// fakeRemote keeps snapshots in memory and clamps LastSync like the server.
type fakeRemote struct {
	mu        sync.Mutex
	snaps     map[string]models.Snapshot
	failFetch int // remaining failures, -1 for always
	failStore int
	fetches   int
	stores    int
	onFetch   func()
	onStore   func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{snaps: make(map[string]models.Snapshot)}
}

func (r *fakeRemote) Fetch(ctx context.Context, ownerID string) (*models.Snapshot, error) {
	r.mu.Lock()
	hook := r.onFetch
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.failFetch != 0 {
		if r.failFetch > 0 {
			r.failFetch--
		}
		return nil, errors.New("network unreachable")
	}
	snap, ok := r.snaps[ownerID]
	if !ok {
		return nil, ErrNoRemoteSnapshot
	}
	snap.Debts = models.CloneDebts(snap.Debts)
	snap.Consumption = append([]models.ConsumptionRecord{}, snap.Consumption...)
	return &snap, nil
}

func (r *fakeRemote) Store(ctx context.Context, snap *models.Snapshot) (time.Time, error) {
	r.mu.Lock()
	hook := r.onStore
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores++
	if r.failStore != 0 {
		if r.failStore > 0 {
			r.failStore--
		}
		return time.Time{}, errors.New("network unreachable")
	}
	stored := *snap
	stored.Debts = models.CloneDebts(snap.Debts)
	if prev, ok := r.snaps[snap.OwnerID]; ok && prev.LastSync.After(stored.LastSync) {
		stored.LastSync = prev.LastSync
	}
	r.snaps[snap.OwnerID] = stored
	return stored.LastSync, nil
}

func (r *fakeRemote) put(snap models.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps[snap.OwnerID] = snap
}

func (r *fakeRemote) get(t *testing.T, ownerID string) models.Snapshot {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[ownerID]
	if !ok {
		t.Fatalf("no remote snapshot for %s", ownerID)
	}
	return snap
}

func (r *fakeRemote) counts() (fetches, stores int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches, r.stores
}

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newSession(t *testing.T) *ledger.Session {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s, err := ledger.Open(context.Background(), store,
		models.Owner{ID: "owner-1", PasswordHash: "hash"},
		ledger.WithClock(func() time.Time { return start }),
	)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func addDebt(t *testing.T, s *ledger.Session, name, amount string) {
	t.Helper()
	_, err := s.CreateOrIncrementDebt(context.Background(), name, decimal.RequireFromString(amount), "2024-03-01", models.Morning)
	if err != nil {
		t.Fatalf("CreateOrIncrementDebt failed: %v", err)
	}
}

func sameContent(t *testing.T, a, b models.Snapshot) bool {
	t.Helper()
	fa, err := fingerprint(&a)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := fingerprint(&b)
	if err != nil {
		t.Fatal(err)
	}
	return fa == fb
}

func TestPushRetriesThenGoesOffline(t *testing.T) {
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	remote.failStore = -1
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var failures []error
	engine := New(s, remote, DefaultConfig(),
		WithClock(func() time.Time { return start }),
		WithMetrics(m),
		OnFailure(func(err error) { failures = append(failures, err) }),
	)

	err := engine.Push(context.Background())
	var se *SyncError
	if !errors.As(err, &se) {
		t.Fatalf("expected SyncError, got %v", err)
	}
	if se.Attempts != 3 || se.Op != "push" {
		t.Errorf("expected 3 push attempts, got %d %s", se.Attempts, se.Op)
	}
	if _, stores := remote.counts(); stores != 3 {
		t.Errorf("expected 3 store calls, got %d", stores)
	}
	if engine.State() != Offline {
		t.Errorf("expected offline, got %s", engine.State())
	}
	if len(failures) != 1 {
		t.Errorf("expected one failure callback, got %d", len(failures))
	}
	if got := testutil.ToFloat64(m.SyncAttempts.WithLabelValues("push", "error")); got != 3 {
		t.Errorf("expected 3 failed attempts recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.SyncState.WithLabelValues("offline")); got != 1 {
		t.Errorf("expected offline gauge 1, got %v", got)
	}

	// the local mutation is untouched
	if len(s.ListDebts()) != 1 || !s.Snapshot().Dirty {
		t.Error("local state must survive a failed push")
	}
}

func TestPushSucceedsWithinAttempts(t *testing.T) {
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	remote.failStore = 2
	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))

	if err := engine.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if engine.State() != Idle {
		t.Errorf("expected idle, got %s", engine.State())
	}
	if s.Snapshot().Dirty {
		t.Error("expected session to be clean after push")
	}
}

func TestPushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))

	if err := engine.Push(ctx); err != nil {
		t.Fatalf("first Push failed: %v", err)
	}
	first := remote.get(t, "owner-1")

	if err := engine.Push(ctx); err != nil {
		t.Fatalf("second Push failed: %v", err)
	}
	if _, stores := remote.counts(); stores != 1 {
		t.Errorf("expected unchanged state to be pushed once, got %d stores", stores)
	}
	second := remote.get(t, "owner-1")
	if !sameContent(t, first, second) || !first.LastSync.Equal(second.LastSync) {
		t.Error("remote changed on idempotent push")
	}
	if !sameContent(t, second, s.Snapshot().Snapshot) {
		t.Error("remote does not match local")
	}
}

func TestPullAdoptsNewerRemote(t *testing.T) {
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	remote.put(models.Snapshot{
		OwnerID: "owner-1",
		Debts: []models.DebtRecord{{
			ID:              "remote-1",
			OwnerID:         "owner-1",
			DebtorName:      "Salem",
			TotalAmount:     decimal.NewFromInt(70),
			PaidAmount:      decimal.Zero,
			RemainingAmount: decimal.NewFromInt(70),
			Date:            "2024-03-01",
			TimeOfDay:       models.Evening,
			Payments:        []models.Payment{},
		}},
		PasswordHash: "hash",
		LastSync:     start.Add(time.Hour),
	})

	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))
	if err := engine.Pull(context.Background()); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	debts := s.ListDebts()
	if len(debts) != 1 || debts[0].DebtorName != "Salem" {
		t.Fatalf("expected remote state to replace local, got %+v", debts)
	}
	if !s.LastUpdate().Equal(start.Add(time.Hour)) {
		t.Errorf("expected last update from remote, got %v", s.LastUpdate())
	}
	if _, stores := remote.counts(); stores != 0 {
		t.Errorf("Pull must not push, got %d stores", stores)
	}
}

func TestLocalNewerThanRemote(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	remote.put(models.Snapshot{
		OwnerID:      "owner-1",
		Debts:        []models.DebtRecord{},
		PasswordHash: "hash",
		LastSync:     start.Add(-time.Hour),
	})

	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))

	before := s.Snapshot().Snapshot
	if err := engine.Pull(ctx); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if !sameContent(t, before, s.Snapshot().Snapshot) {
		t.Fatal("Pull changed a newer local state")
	}

	if err := engine.Push(ctx); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	got := remote.get(t, "owner-1")
	if !sameContent(t, got, s.Snapshot().Snapshot) {
		t.Error("expected remote to equal local after push")
	}
	if got.LastSync.Before(start.Add(-time.Hour)) {
		t.Error("remote last sync moved backwards")
	}
}

func TestSyncWithoutRemoteSnapshotPushes(t *testing.T) {
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))

	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	got := remote.get(t, "owner-1")
	if len(got.Debts) != 1 || got.Debts[0].DebtorName != "Ali" {
		t.Errorf("unexpected remote debts %+v", got.Debts)
	}
	if fetches, stores := remote.counts(); fetches != 1 || stores != 1 {
		t.Errorf("expected 1 fetch and 1 store, got %d and %d", fetches, stores)
	}
}

func TestRemoteLastSyncNeverDecreases(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	now := start.Add(time.Hour)
	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return now }))

	if err := engine.Push(ctx); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	first := remote.get(t, "owner-1").LastSync

	// clock skew on this device
	now = start.Add(-time.Hour)
	addDebt(t, s, "Ali", "10")
	if err := engine.Push(ctx); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if second := remote.get(t, "owner-1").LastSync; second.Before(first) {
		t.Errorf("remote last sync went from %v to %v", first, second)
	}
}

func TestScheduleAfterMutation(t *testing.T) {
	s := newSession(t)
	remote := newFakeRemote()
	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))
	s.SetScheduler(engine)

	addDebt(t, s, "Ali", "50")
	engine.Wait()

	got := remote.get(t, "owner-1")
	if len(got.Debts) != 1 || !got.Debts[0].RemainingAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected scheduled sync to push the debt, got %+v", got.Debts)
	}
}

func TestNotifyOnlineRecovers(t *testing.T) {
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	remote.failFetch = 3

	var states []State
	var mu sync.Mutex
	engine := New(s, remote, DefaultConfig(),
		WithClock(func() time.Time { return start }),
		OnStateChange(func(st State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		}),
	)

	if err := engine.Sync(context.Background()); err == nil {
		t.Fatal("expected sync to fail while offline")
	}
	if engine.State() != Offline {
		t.Fatalf("expected offline, got %s", engine.State())
	}

	engine.NotifyOnline()
	engine.Wait()

	if engine.State() != Idle {
		t.Errorf("expected idle after reconnect, got %s", engine.State())
	}
	if !sameContent(t, remote.get(t, "owner-1"), s.Snapshot().Snapshot) {
		t.Error("expected local state pushed after reconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{Syncing, Offline, Syncing, Idle}
	if len(states) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], states[i])
		}
	}
}

func TestTriggerDuringCycleRunsAgain(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	remote.onStore = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))

	done := make(chan error, 1)
	go func() { done <- engine.Push(ctx) }()
	<-entered

	// edit while the first push is in flight, then trigger again
	addDebt(t, s, "Salem", "20")
	if err := engine.Push(ctx); err != nil {
		t.Fatalf("queued Push returned %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, stores := remote.counts(); stores != 2 {
		t.Errorf("expected the queued trigger to push again, got %d stores", stores)
	}
	got := remote.get(t, "owner-1")
	if len(got.Debts) != 2 {
		t.Errorf("expected both debts remote, got %d", len(got.Debts))
	}
	st := s.Snapshot()
	if st.Dirty {
		t.Error("expected clean session after the second push")
	}
	if st.Snapshot.LastSync.Before(got.LastSync) {
		t.Error("local last update must not be older than the stored copy")
	}
}

// blockFirst makes the first call of a remote hook wait until release is
// closed. entered is closed once that call started.
func blockFirst() (hook func(), entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	hook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	return hook, entered, release
}

// waitQueued waits until a trigger is queued behind the running cycle.
func waitQueued(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		queued := e.pending
		e.mu.Unlock()
		if queued {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no trigger was queued")
}

func TestMutationDuringPullIsPushed(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	remote := newFakeRemote()
	hook, entered, release := blockFirst()
	remote.onFetch = hook

	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))
	s.SetScheduler(engine)

	done := make(chan error, 1)
	go func() { done <- engine.Pull(ctx) }()
	<-entered

	addDebt(t, s, "Ali", "50")
	waitQueued(t, engine)
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	engine.Wait()

	if _, stores := remote.counts(); stores != 1 {
		t.Fatalf("expected the queued mutation to be pushed once, got %d stores", stores)
	}
	if got := remote.get(t, "owner-1"); len(got.Debts) != 1 || got.Debts[0].DebtorName != "Ali" {
		t.Errorf("unexpected remote debts %+v", got.Debts)
	}
	if s.Snapshot().Dirty {
		t.Error("expected clean session after the queued sync")
	}
	if engine.State() != Idle {
		t.Errorf("expected idle, got %s", engine.State())
	}
}

func TestTriggerDuringFailedCycleIsDropped(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	remote := newFakeRemote()
	remote.failFetch = -1
	hook, entered, release := blockFirst()
	remote.onFetch = hook

	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))

	done := make(chan error, 1)
	go func() { done <- engine.Sync(ctx) }()
	<-entered

	addDebt(t, s, "Ali", "50")
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("queued Sync returned %v", err)
	}
	close(release)

	if err := <-done; err == nil {
		t.Fatal("expected the running cycle to fail")
	}
	if fetches, stores := remote.counts(); fetches != 3 || stores != 0 {
		t.Errorf("expected the failed cycle alone, got %d fetches and %d stores", fetches, stores)
	}
	if engine.State() != Offline {
		t.Errorf("expected offline, got %s", engine.State())
	}
	if !s.Snapshot().Dirty {
		t.Fatal("the unsent mutation must stay dirty")
	}

	remote.mu.Lock()
	remote.failFetch = 0
	remote.mu.Unlock()
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync after recovery failed: %v", err)
	}
	if got := remote.get(t, "owner-1"); len(got.Debts) != 1 {
		t.Errorf("expected the dirty mutation pushed by the next trigger, got %+v", got.Debts)
	}
}

func TestWatchConnectivityNotifiesOnline(t *testing.T) {
	s := newSession(t)
	addDebt(t, s, "Ali", "50")

	remote := newFakeRemote()
	remote.failFetch = 3
	engine := New(s, remote, DefaultConfig(), WithClock(func() time.Time { return start }))
	if err := engine.Sync(context.Background()); err == nil {
		t.Fatal("expected sync to fail while offline")
	}

	var mu sync.Mutex
	probes := 0
	probe := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		probes++
		if probes < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.WatchConnectivity(ctx, probe, 5*time.Millisecond) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, stores := remote.counts(); stores > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine never pushed after connectivity came back")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	engine.Wait()

	if engine.State() != Idle {
		t.Errorf("expected idle after reconnect, got %s", engine.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if probes < 3 {
		t.Errorf("expected probing until success, got %d probes", probes)
	}
}
