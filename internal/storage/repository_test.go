package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
	"smartfin/internal/ledger/ledgertest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return newTestRepo(t) })
}

func TestSQLiteRepository_NullableColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := core.Transaction{ID: "x", Type: core.Expense, Amount: core.NaN(), Category: "Food"}
	if err := repo.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.GetTransaction(ctx, "x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Valid() {
		t.Errorf("expected NaN amount to round trip, got %v", got.Amount)
	}
	if !got.Date.IsZero() || !got.CreatedAt.IsZero() {
		t.Errorf("expected zero date and createdAt, got %v / %v", got.Date, got.CreatedAt)
	}

	// Undated records never match a month filter.
	march, _ := repo.ListTransactions(ctx, ledger.Filter{Year: 2025, Month: time.March})
	if len(march) != 0 {
		t.Errorf("undated record matched month filter")
	}
}

func TestSQLiteRepository_SyncTracking(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		tx := ledgertest.Tx(id, core.Expense, 10, "Food", core.NewDate(2025, 5, 1), base.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	pending, err := repo.PendingSyncTransactions(ctx, 2)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].ID != "b" {
		t.Fatalf("unexpected pending batch: %+v", pending)
	}
	if pending[0].Version != 1 {
		t.Errorf("new rows start at version 1, got %d", pending[0].Version)
	}

	if err := repo.MarkSynced(ctx, "a", 1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, "b", 1); err != nil {
		t.Fatalf("mark error: %v", err)
	}

	counts, err := repo.SyncCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[SyncSynced] != 1 || counts[SyncError] != 1 || counts[SyncPending] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	// Editing a synced row bumps its version and queues it again.
	tx, _ := repo.GetTransaction(ctx, "a")
	tx.Amount = 12
	if err := repo.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, version, err := repo.GetTransactionVersion(ctx, "a")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}

	// A stale acknowledgement leaves the newer version pending.
	if err := repo.MarkSynced(ctx, "a", 1); err != nil {
		t.Fatalf("stale mark: %v", err)
	}
	pending, _ = repo.PendingSyncTransactions(ctx, 10)
	found := false
	for _, p := range pending {
		if p.ID == "a" && p.Version == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("edited row should be pending at version 2, got %+v", pending)
	}
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.Close()

	v, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 || dirty {
		t.Errorf("got version %d dirty=%v", v, dirty)
	}

	// Migrations are idempotent.
	if err := RunMigrations(path); err != nil {
		t.Errorf("second run: %v", err)
	}
}
