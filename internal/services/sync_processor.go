package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"smartfin/internal/amqp"
	"smartfin/internal/core"
	"smartfin/internal/ledger"
	"smartfin/internal/log"
	"smartfin/internal/storage"
)

// SyncSource is the part of the SQLite repository the processor needs.
type SyncSource interface {
	GetTransactionVersion(ctx context.Context, id string) (core.Transaction, int64, error)
	PendingSyncTransactions(ctx context.Context, limit int) ([]storage.PendingSync, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string, version int64) error
}

var _ SyncSource = (*storage.SQLiteRepository)(nil)

// errGaveUp marks a row flagged as errored after too many failed attempts.
var errGaveUp = errors.New("sync abandoned after max retries")

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// BatchSize is the max number of rows picked per sweep (default: 10)
	BatchSize int

	// MaxRetries is how many failed attempts mark a row as errored (default: 3)
	MaxRetries int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		BatchSize:  10,
		MaxRetries: 3,
	}
}

// SyncProcessor copies transactions from the database to the mirror. It
// handles broker messages and also sweeps rows still pending, which covers
// messages lost while the broker was unreachable.
type SyncProcessor struct {
	source SyncSource
	mirror ledger.Mirror
	config SyncProcessorConfig

	mu       sync.Mutex
	attempts map[string]int
}

var _ amqp.Handler = (*SyncProcessor)(nil)

func NewSyncProcessor(source SyncSource, mirror ledger.Mirror, config SyncProcessorConfig) *SyncProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultSyncProcessorConfig().MaxRetries
	}
	return &SyncProcessor{
		source:   source,
		mirror:   mirror,
		config:   config,
		attempts: make(map[string]int),
	}
}

// HandleSync mirrors the current state of the row. The message version is
// informational: an older message still publishes the newest data.
func (p *SyncProcessor) HandleSync(ctx context.Context, msg *amqp.SyncMessage) error {
	err := p.syncOne(ctx, msg.ID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		slog.InfoContext(ctx, "Transaction gone before sync, skipping", "id", msg.ID, "version", msg.Version)
		return nil
	case errors.Is(err, errGaveUp):
		// Stop redelivery; the row stays flagged in the database.
		return nil
	}
	return err
}

func (p *SyncProcessor) HandleDelete(ctx context.Context, msg *amqp.DeleteMessage) error {
	if err := p.mirror.Remove(ctx, msg.ID); err != nil {
		return fmt.Errorf("remove from mirror: %w", err)
	}
	p.clearAttempts(msg.ID)
	slog.InfoContext(ctx, "Removed transaction from mirror", "id", msg.ID)
	return nil
}

// ProcessPending mirrors up to BatchSize pending rows and returns how many
// succeeded.
func (p *SyncProcessor) ProcessPending(ctx context.Context) (int, error) {
	items, err := p.source.PendingSyncTransactions(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	slog.DebugContext(ctx, "Processing pending sync batch", "count", len(items))

	synced := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := p.syncOne(ctx, item.ID); err != nil {
			if !errors.Is(err, ledger.ErrNotFound) {
				slog.WarnContext(ctx, "Pending sync failed", "id", item.ID, "version", item.Version, "error", err)
			}
			continue
		}
		synced++
	}
	return synced, nil
}

func (p *SyncProcessor) syncOne(ctx context.Context, id string) error {
	tx, version, err := p.source.GetTransactionVersion(ctx, id)
	if err != nil {
		return err
	}

	ref, err := p.mirror.Upsert(ctx, tx)
	if err != nil {
		return p.handleFailure(ctx, id, version, err)
	}

	if err := p.source.MarkSynced(ctx, id, version); err != nil {
		// The row is mirrored; a later sweep rewrites the same row.
		slog.WarnContext(ctx, "Failed to mark transaction as synced", "id", id, "error", err)
	}
	p.clearAttempts(id)
	slog.InfoContext(ctx, "Synced transaction to mirror",
		log.FieldOperation, log.OpSync, log.FieldTransactionID, id, "version", version, "ref", ref)
	return nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, id string, version int64, cause error) error {
	p.mu.Lock()
	p.attempts[id]++
	n := p.attempts[id]
	p.mu.Unlock()

	if n < p.config.MaxRetries {
		return fmt.Errorf("upsert into mirror (attempt %d): %w", n, cause)
	}

	p.clearAttempts(id)
	if err := p.source.MarkSyncError(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark transaction sync error", "id", id, "error", err)
	}
	slog.ErrorContext(ctx, "Transaction sync failed permanently after max retries",
		"id", id,
		"attempts", n,
		"error", cause)
	return errGaveUp
}

func (p *SyncProcessor) clearAttempts(id string) {
	p.mu.Lock()
	delete(p.attempts, id)
	p.mu.Unlock()
}
