// Package ledger declares the record stores the application reads
// snapshots from and writes edits to.
package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"smartfin/internal/core"
)

var ErrNotFound = errors.New("record not found")

type (
	// Filter narrows a transaction listing. Zero fields match everything.
	Filter struct {
		Type  core.TransactionType
		Year  int
		Month time.Month
	}

	// Snapshot carries whole sections for Replace. A nil section is left
	// untouched; a non-nil empty slice clears it.
	Snapshot struct {
		Profile      *core.UserProfile
		Transactions []core.Transaction
		Invoices     []core.Invoice
	}

	// TransactionStore lists records oldest first: by date, then
	// createdAt, then id.
	TransactionStore interface {
		ListTransactions(ctx context.Context, f Filter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// SaveTransaction inserts tx or replaces the record with the same id.
		SaveTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	ProfileStore interface {
		// GetProfile returns core.DefaultProfile until one is saved.
		GetProfile(ctx context.Context) (core.UserProfile, error)
		SaveProfile(ctx context.Context, p core.UserProfile) error
	}

	// InvoiceStore lists invoices newest first by createdAt.
	InvoiceStore interface {
		ListInvoices(ctx context.Context) ([]core.Invoice, error)
		GetInvoice(ctx context.Context, id string) (core.Invoice, error)
		SaveInvoice(ctx context.Context, inv core.Invoice) error
		DeleteInvoice(ctx context.Context, id string) error
	}

	// Replacer swaps whole sections at once (import, reset).
	Replacer interface {
		Replace(ctx context.Context, s Snapshot) error
	}

	Store interface {
		TransactionStore
		ProfileStore
		InvoiceStore
		Replacer
		Close() error
	}

	// Mirror is a one-way copy of the transaction ledger kept outside the
	// store, keyed by transaction id.
	Mirror interface {
		Upsert(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// Remove deletes the copy of id. A missing copy is not an error.
		Remove(ctx context.Context, id string) error
		List(ctx context.Context) ([]core.Transaction, error)
	}
)

// Match reports whether tx passes f.
func (f Filter) Match(tx core.Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Year != 0 && f.Month != 0 {
		return tx.Date.InMonth(f.Year, f.Month)
	}
	if f.Year != 0 {
		return !tx.Date.IsZero() && tx.Date.Year() == f.Year
	}
	return true
}

// SortTransactions orders txs oldest first in place.
func SortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SortInvoices orders invoices newest first in place.
func SortInvoices(invs []core.Invoice) {
	sort.SliceStable(invs, func(i, j int) bool {
		if !invs[i].CreatedAt.Equal(invs[j].CreatedAt) {
			return invs[i].CreatedAt.After(invs[j].CreatedAt)
		}
		return invs[i].ID < invs[j].ID
	})
}

// Reset clears every section and restores the default profile.
func Reset(ctx context.Context, r Replacer) error {
	p := core.DefaultProfile()
	return r.Replace(ctx, Snapshot{
		Profile:      &p,
		Transactions: []core.Transaction{},
		Invoices:     []core.Invoice{},
	})
}
