// Package memory is an in-process ledger.Store. State lives as long as the
// process does.
package memory

import (
	"context"
	"sync"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

type Store struct {
	mu       sync.RWMutex
	profile  *core.UserProfile
	txs      map[string]core.Transaction
	invoices map[string]core.Invoice
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:      make(map[string]core.Transaction),
		invoices: make(map[string]core.Invoice),
	}
}

func (s *Store) ListTransactions(_ context.Context, f ledger.Filter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	ledger.SortTransactions(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return tx, nil
}

func (s *Store) SaveTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) GetProfile(_ context.Context) (core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return core.DefaultProfile(), nil
	}
	return *s.profile, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &p
	return nil
}

func (s *Store) ListInvoices(_ context.Context) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	ledger.SortInvoices(out)
	return out, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return core.Invoice{}, ledger.ErrNotFound
	}
	return inv, nil
}

func (s *Store) SaveInvoice(_ context.Context, inv core.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv
	return nil
}

func (s *Store) DeleteInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.invoices, id)
	return nil
}

func (s *Store) Replace(_ context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Profile != nil {
		p := *snap.Profile
		s.profile = &p
	}
	if snap.Transactions != nil {
		s.txs = make(map[string]core.Transaction, len(snap.Transactions))
		for _, tx := range snap.Transactions {
			s.txs[tx.ID] = tx
		}
	}
	if snap.Invoices != nil {
		s.invoices = make(map[string]core.Invoice, len(snap.Invoices))
		for _, inv := range snap.Invoices {
			s.invoices[inv.ID] = inv
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
