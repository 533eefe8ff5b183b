package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
	"smartfin/internal/ledger/ledgertest"
)

// Set POSTGRES_TEST_URL to a throwaway database to run these.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_URL")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ledger.Reset(ctx, s); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM profile`); err != nil {
		t.Fatalf("clear profile: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return openTestStore(t) })
}

func TestNullableConversions(t *testing.T) {
	if toAmount(core.NaN()) != nil {
		t.Error("NaN amount should map to NULL")
	}
	if v := toAmount(12.5); v == nil || *v != 12.5 {
		t.Errorf("toAmount(12.5) = %v", v)
	}
	if toDate(core.Date{}) != nil || toTime(time.Time{}) != nil {
		t.Error("zero values should map to NULL")
	}

	local := time.Date(2025, 3, 9, 0, 0, 0, 0, time.FixedZone("X", 5*3600))
	if got := fromDate(&local); got.String() != "2025-03-09" {
		t.Errorf("fromDate = %s", got)
	}
	if !fromDate(nil).IsZero() || !fromTime(nil).IsZero() {
		t.Error("NULL should map to zero values")
	}
	if got := fromTime(&local); got.Location() != time.UTC || !got.Equal(local) {
		t.Errorf("fromTime = %v", got)
	}
}
