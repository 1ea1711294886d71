package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestKeyValue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("Get returns ErrNotFound for missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutAll writes every entry", func(t *testing.T) {
		err := store.PutAll(ctx, map[string][]byte{
			storage.DebtsKey("ali"):       []byte(`[]`),
			storage.LastUpdateKey("ali"):  []byte(`"2024-01-01T00:00:00Z"`),
			storage.ConsumptionKey("ali"): []byte(`[]`),
		})
		if err != nil {
			t.Fatalf("PutAll failed: %v", err)
		}
		got, err := store.Get(ctx, storage.LastUpdateKey("ali"))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != `"2024-01-01T00:00:00Z"` {
			t.Errorf("Get = %s", got)
		}
	})

	t.Run("PutAll overwrites existing keys", func(t *testing.T) {
		if err := store.PutAll(ctx, map[string][]byte{"k": []byte("1")}); err != nil {
			t.Fatalf("PutAll failed: %v", err)
		}
		if err := store.PutAll(ctx, map[string][]byte{"k": []byte("2")}); err != nil {
			t.Fatalf("PutAll failed: %v", err)
		}
		got, _ := store.Get(ctx, "k")
		if string(got) != "2" {
			t.Errorf("Get = %s, want 2", got)
		}
	})

	t.Run("Delete removes keys and ignores missing ones", func(t *testing.T) {
		if err := store.Delete(ctx, "k", "never-existed"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected key to be gone, got %v", err)
		}
	})

	t.Run("GetJSON decodes and reports presence", func(t *testing.T) {
		b := storage.Batch{}
		if err := b.Set("list", []string{"a", "b"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.PutAll(ctx, b); err != nil {
			t.Fatalf("PutAll failed: %v", err)
		}
		var got []string
		ok, err := storage.GetJSON(ctx, store, "list", &got)
		if err != nil || !ok || len(got) != 2 {
			t.Errorf("GetJSON = %v, %v, %v", got, ok, err)
		}
		ok, err = storage.GetJSON(ctx, store, "absent", &got)
		if err != nil || ok {
			t.Errorf("GetJSON(absent) = %v, %v", ok, err)
		}
	})
}

func TestOwners(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateOwner(ctx, &models.Owner{ID: "ali", PasswordHash: "h1"}); err != nil {
		t.Fatalf("CreateOwner failed: %v", err)
	}
	if err := store.CreateOwner(ctx, &models.Owner{ID: "ali", PasswordHash: "h2"}); err == nil {
		t.Error("expected duplicate owner to fail")
	}

	owner, err := store.GetOwner(ctx, "ali")
	if err != nil {
		t.Fatalf("GetOwner failed: %v", err)
	}
	if owner.PasswordHash != "h1" {
		t.Errorf("PasswordHash = %s, want h1", owner.PasswordHash)
	}

	if err := store.UpdatePasswordHash(ctx, "ali", "h3"); err != nil {
		t.Fatalf("UpdatePasswordHash failed: %v", err)
	}
	owner, _ = store.GetOwner(ctx, "ali")
	if owner.PasswordHash != "h3" {
		t.Errorf("PasswordHash = %s, want h3", owner.PasswordHash)
	}

	if _, err := store.GetOwner(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdatePasswordHash(ctx, "nobody", "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	snap := &models.Snapshot{
		OwnerID: "ali",
		Debts: []models.DebtRecord{{
			ID: "d1", DebtorName: "Omar", Date: "2024-01-01", TimeOfDay: models.Morning,
			TotalAmount: decimal.NewFromInt(50), PaidAmount: decimal.Zero, RemainingAmount: decimal.NewFromInt(50),
		}},
		PasswordHash: "hash",
		LastSync:     base,
	}

	t.Run("GetSnapshot returns ErrNotFound before first push", func(t *testing.T) {
		if _, err := store.GetSnapshot(ctx, "ali"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutSnapshot round trip", func(t *testing.T) {
		stamp, err := store.PutSnapshot(ctx, snap)
		if err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}
		if !stamp.Equal(base) {
			t.Errorf("stamp = %v, want %v", stamp, base)
		}
		got, err := store.GetSnapshot(ctx, "ali")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if len(got.Debts) != 1 || !got.Debts[0].TotalAmount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("unexpected debts: %+v", got.Debts)
		}
		if got.PasswordHash != "hash" || !got.LastSync.Equal(base) {
			t.Errorf("unexpected snapshot: %+v", got)
		}
	})

	t.Run("LastSync never moves backwards", func(t *testing.T) {
		older := *snap
		older.LastSync = base.Add(-time.Hour)
		older.Debts = nil
		stamp, err := store.PutSnapshot(ctx, &older)
		if err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}
		if !stamp.Equal(base) {
			t.Errorf("stamp = %v, want clamp to %v", stamp, base)
		}
		got, _ := store.GetSnapshot(ctx, "ali")
		if len(got.Debts) != 0 {
			t.Errorf("expected whole-snapshot overwrite, got %d debts", len(got.Debts))
		}
	})

	t.Run("PutSnapshot requires owner", func(t *testing.T) {
		if _, err := store.PutSnapshot(ctx, &models.Snapshot{}); err == nil {
			t.Error("expected error for empty owner")
		}
	})
}
