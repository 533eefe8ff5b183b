// Package ledgertest holds the behaviour every ledger.Store must show,
// shared by the store implementations' tests.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

// Tx builds a transaction fixture.
func Tx(id string, typ core.TransactionType, amount float64, cat string, date core.Date, created time.Time) core.Transaction {
	return core.Transaction{
		ID:        id,
		Type:      typ,
		Amount:    core.Amount(amount),
		Category:  cat,
		Date:      date,
		CreatedAt: created,
	}
}

// Run exercises s through every ledger.Store method. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Helper()
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("profile", func(t *testing.T) { testProfile(t, newStore(t)) })
	t.Run("invoices", func(t *testing.T) { testInvoices(t, newStore(t)) })
	t.Run("replace", func(t *testing.T) { testReplace(t, newStore(t)) })
}

func testTransactions(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	fixtures := []core.Transaction{
		Tx("b", core.Expense, 20, "Food", core.NewDate(2025, 3, 5), base.Add(2*time.Hour)),
		Tx("a", core.Income, 1000, "Salary", core.NewDate(2025, 3, 5), base.Add(time.Hour)),
		Tx("c", core.Expense, 45.67, "Housing", core.NewDate(2025, 2, 28), base),
		Tx("d", core.Expense, 9.99, "Shopping", core.NewDate(2024, 3, 5), base),
	}
	fixtures[0].Notes = "lunch"
	for _, tx := range fixtures {
		if err := s.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("save %s: %v", tx.ID, err)
		}
	}

	all, err := s.ListTransactions(ctx, ledger.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(all); got != "dcab" {
		t.Fatalf("order = %s, want dcab (date, then createdAt)", got)
	}

	march, _ := s.ListTransactions(ctx, ledger.Filter{Year: 2025, Month: time.March})
	if got := ids(march); got != "ab" {
		t.Fatalf("March 2025 = %s", got)
	}
	expenses, _ := s.ListTransactions(ctx, ledger.Filter{Type: core.Expense, Year: 2025})
	if got := ids(expenses); got != "cb" {
		t.Fatalf("2025 expenses = %s", got)
	}

	got, err := s.GetTransaction(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount != 20 || got.Notes != "lunch" || !got.Date.Equal(core.NewDate(2025, 3, 5).Time) || !got.CreatedAt.Equal(fixtures[0].CreatedAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	updated := got
	updated.Amount = 25.5
	updated.UpdatedAt = base.Add(24 * time.Hour)
	if err := s.SaveTransaction(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetTransaction(ctx, "b")
	if got.Amount != 25.5 {
		t.Fatalf("update not applied: %+v", got)
	}
	if all, _ := s.ListTransactions(ctx, ledger.Filter{}); len(all) != 4 {
		t.Fatalf("update must replace, got %d records", len(all))
	}

	if err := s.DeleteTransaction(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, "b"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "b"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
}

func testProfile(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	p, err := s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if p != core.DefaultProfile() {
		t.Fatalf("expected default profile, got %+v", p)
	}

	p.Name = "Ada"
	p.Currency = "EUR"
	p.MonthlyIncomeGoal = 5000
	p.MonthlyExpenseLimit = 3200.5
	p.AISuggestions = false
	p.UpdatedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ada" || got.Currency != "EUR" || got.MonthlyExpenseLimit != 3200.5 || got.AISuggestions || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("profile mismatch: %+v", got)
	}
}

func testInvoices(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	older := core.Invoice{
		ID: "inv-1", ClientName: "ACME",
		Items:  []core.InvoiceItem{{Description: "Design", Amount: 100}, {Description: "Dev", Amount: 250.25}},
		Status: core.InvoicePending, Date: core.NewDate(2025, 4, 1), DueDate: core.NewDate(2025, 4, 30),
		CreatedAt: base,
	}
	older = older.Normalize()
	newer := core.Invoice{
		ID: "inv-2", ClientName: "Globex",
		Items:  []core.InvoiceItem{{Description: "Audit", Amount: 80}},
		Status: core.InvoicePaid, DueDate: core.NewDate(2025, 5, 1),
		CreatedAt: base.Add(time.Hour),
	}.Normalize()

	for _, inv := range []core.Invoice{older, newer} {
		if err := s.SaveInvoice(ctx, inv); err != nil {
			t.Fatalf("save %s: %v", inv.ID, err)
		}
	}
	list, err := s.ListInvoices(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "inv-2" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	got, err := s.GetInvoice(ctx, "inv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Total != 350.25 || len(got.Items) != 2 || got.Items[1].Description != "Dev" || got.Status != core.InvoicePending {
		t.Fatalf("invoice mismatch: %+v", got)
	}

	got.Status = core.InvoicePaid
	if err := s.SaveInvoice(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := s.GetInvoice(ctx, "inv-1"); got.Status != core.InvoicePaid {
		t.Fatalf("status not updated")
	}

	if err := s.DeleteInvoice(ctx, "inv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetInvoice(ctx, "inv-1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
	if err := s.DeleteInvoice(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func testReplace(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SaveTransaction(ctx, Tx("old", core.Expense, 1, "Food", core.NewDate(2025, 1, 1), created)); err != nil {
		t.Fatal(err)
	}
	inv := core.Invoice{ID: "keep", ClientName: "ACME", Items: []core.InvoiceItem{{Description: "x", Amount: 1}}, DueDate: core.NewDate(2025, 2, 1), CreatedAt: created}.Normalize()
	if err := s.SaveInvoice(ctx, inv); err != nil {
		t.Fatal(err)
	}

	err := s.Replace(ctx, ledger.Snapshot{
		Transactions: []core.Transaction{
			Tx("n1", core.Income, 10, "Salary", core.NewDate(2025, 1, 2), created),
			Tx("n2", core.Expense, 5, "Food", core.NewDate(2025, 1, 3), created),
		},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	txs, _ := s.ListTransactions(ctx, ledger.Filter{})
	if ids(txs) != "n1n2" {
		t.Fatalf("transactions not replaced: %s", ids(txs))
	}
	if invs, _ := s.ListInvoices(ctx); len(invs) != 1 {
		t.Fatalf("nil invoices section must be left alone, got %d", len(invs))
	}

	if err := ledger.Reset(ctx, s); err != nil {
		t.Fatalf("reset: %v", err)
	}
	txs, _ = s.ListTransactions(ctx, ledger.Filter{})
	invs, _ := s.ListInvoices(ctx)
	p, _ := s.GetProfile(ctx)
	if len(txs) != 0 || len(invs) != 0 || p != core.DefaultProfile() {
		t.Fatalf("reset left data: %d txs, %d invoices, profile %+v", len(txs), len(invs), p)
	}
}

func ids(txs []core.Transaction) string {
	out := ""
	for _, tx := range txs {
		out += tx.ID
	}
	return out
}
