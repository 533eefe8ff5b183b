package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartfin/internal/cache"
	"smartfin/internal/core"
	"smartfin/internal/ledger"
	"smartfin/internal/log"
)

const transactionsKey = "transactions"

// Publisher announces ledger changes to the sync pipeline.
type Publisher interface {
	PublishSync(ctx context.Context, id string, version int64) error
	PublishDelete(ctx context.Context, id string) error
}

// versioned is implemented by stores that count edits per row.
type versioned interface {
	GetTransactionVersion(ctx context.Context, id string) (core.Transaction, int64, error)
}

// LedgerService validates and stamps edits, writes them to the store and
// then tells the sync pipeline. Publishing is best effort: a record saved
// locally is never rolled back because the broker is down.
type LedgerService struct {
	store     ledger.Store
	publisher Publisher
	cache     cache.Cache[[]core.Transaction]
	now       func() time.Time
	newID     func() string
	logger    *log.Logger

	// cacheMu orders cache fills against invalidation; generation counts
	// invalidations so a fill started before a write is dropped.
	cacheMu    sync.Mutex
	generation uint64
}

type Option func(*LedgerService)

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithCache caches the full transaction snapshot until the next write.
func WithCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *LedgerService) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *LedgerService) { s.newID = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(store ledger.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) Store() ledger.Store { return s.store }

// Transactions returns every transaction, oldest first.
func (s *LedgerService) Transactions(ctx context.Context) ([]core.Transaction, error) {
	if s.cache != nil {
		if txs, ok := s.cache.Get(transactionsKey); ok {
			return slices.Clone(txs), nil
		}
	}
	gen := s.currentGeneration()
	txs, err := s.store.ListTransactions(ctx, ledger.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	s.fill(gen, txs)
	return txs, nil
}

func (s *LedgerService) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// fill caches txs unless a write invalidated the cache after gen was read.
func (s *LedgerService) fill(gen uint64, txs []core.Transaction) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen != s.generation {
		return
	}
	s.cache.Set(transactionsKey, slices.Clone(txs))
}

func (s *LedgerService) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	if f == (ledger.Filter{}) {
		return s.Transactions(ctx)
	}
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = s.newID()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now().UTC()
	}
	tx.UpdatedAt = time.Time{}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).
			WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.Float64()).ToSlice()...)
	s.publishSync(ctx, tx.ID)
	return tx, nil
}

// UpdateTransaction replaces the record id with tx, keeping its creation
// time.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = s.now().UTC()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithOperation(log.OpUpdate).
			WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.Float64()).ToSlice()...)
	s.publishSync(ctx, tx.ID)
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldOperation, log.OpDelete, log.FieldTransactionID, id)
	s.publishDelete(ctx, id)
	return nil
}

func (s *LedgerService) Profile(ctx context.Context) (core.UserProfile, error) {
	return s.store.GetProfile(ctx)
}

func (s *LedgerService) UpdateProfile(ctx context.Context, p core.UserProfile) (core.UserProfile, error) {
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return core.UserProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

func (s *LedgerService) Invoices(ctx context.Context) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx)
}

func (s *LedgerService) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	inv = inv.Normalize()
	if inv.ID == "" {
		inv.ID = s.newID()
	}
	inv.CreatedAt = s.now().UTC()
	inv.UpdatedAt = time.Time{}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	if err := s.store.SaveInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	s.logger.InfoContext(ctx, "Invoice created", log.FieldInvoiceID, inv.ID, log.FieldAmount, inv.Total)
	return inv, nil
}

func (s *LedgerService) UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error) {
	existing, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	inv = inv.Normalize()
	inv.ID = id
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = s.now().UTC()
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	if err := s.store.SaveInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	return inv, nil
}

func (s *LedgerService) SetInvoiceStatus(ctx context.Context, id string, status core.InvoiceStatus) (core.Invoice, error) {
	if !status.Valid() {
		return core.Invoice{}, core.ErrInvalidStatus
	}
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Status = status
	inv.UpdatedAt = s.now().UTC()
	if err := s.store.SaveInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	return inv, nil
}

func (s *LedgerService) DeleteInvoice(ctx context.Context, id string) error {
	return s.store.DeleteInvoice(ctx, id)
}

// Snapshot reads every section for export.
func (s *LedgerService) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	p, err := s.store.GetProfile(ctx)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("get profile: %w", err)
	}
	txs, err := s.Transactions(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	invs, err := s.store.ListInvoices(ctx)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("list invoices: %w", err)
	}
	return ledger.Snapshot{Profile: &p, Transactions: txs, Invoices: invs}, nil
}

// Import replaces the sections present in snap. Records without an id get
// one; replaced transactions are announced as deleted.
func (s *LedgerService) Import(ctx context.Context, snap ledger.Snapshot) error {
	var previous []core.Transaction
	if snap.Transactions != nil {
		var err error
		if previous, err = s.store.ListTransactions(ctx, ledger.Filter{}); err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		snap.Transactions = slices.Clone(snap.Transactions)
		for i := range snap.Transactions {
			if snap.Transactions[i].ID == "" {
				snap.Transactions[i].ID = s.newID()
			}
		}
	}
	if snap.Invoices != nil {
		snap.Invoices = slices.Clone(snap.Invoices)
		for i := range snap.Invoices {
			if snap.Invoices[i].ID == "" {
				snap.Invoices[i].ID = s.newID()
			}
		}
	}

	if err := s.store.Replace(ctx, snap); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	s.invalidate()

	if snap.Transactions != nil {
		kept := make(map[string]struct{}, len(snap.Transactions))
		for _, tx := range snap.Transactions {
			kept[tx.ID] = struct{}{}
			s.publishSync(ctx, tx.ID)
		}
		for _, tx := range previous {
			if _, ok := kept[tx.ID]; !ok {
				s.publishDelete(ctx, tx.ID)
			}
		}
	}
	s.logger.InfoContext(ctx, "Ledger imported",
		log.FieldOperation, log.OpImport,
		log.FieldCount, len(snap.Transactions),
		"invoices", len(snap.Invoices),
		"profile", snap.Profile != nil)
	return nil
}

// Reset clears all data and restores the default profile.
func (s *LedgerService) Reset(ctx context.Context) error {
	previous, err := s.store.ListTransactions(ctx, ledger.Filter{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := ledger.Reset(ctx, s.store); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	s.invalidate()
	for _, tx := range previous {
		s.publishDelete(ctx, tx.ID)
	}
	s.logger.WarnContext(ctx, "Ledger cleared", log.FieldCount, len(previous))
	return nil
}

func (s *LedgerService) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	if s.cache != nil {
		s.cache.Delete(transactionsKey)
	}
}

func (s *LedgerService) publishSync(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	version := int64(1)
	if v, ok := s.store.(versioned); ok {
		_, current, err := v.GetTransactionVersion(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to read transaction version", log.FieldTransactionID, id, log.FieldError, err)
		} else {
			version = current
		}
	}
	if err := s.publisher.PublishSync(ctx, id, version); err != nil {
		// The pending-sync sweep picks the row up later.
		s.logger.ErrorContext(ctx, "Failed to publish sync message", log.FieldTransactionID, id, log.FieldError, err)
	}
}

func (s *LedgerService) publishDelete(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDelete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish delete message", log.FieldTransactionID, id, log.FieldError, err)
	}
}

// Close releases the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
