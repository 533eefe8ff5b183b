package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"smartfin/internal/amqp"
)

// OverdueSchedule runs the invoice sweep shortly after midnight.
const OverdueSchedule = "5 0 * * *"

// startupRounds bounds how many pending batches are drained at startup.
const startupRounds = 5

// Processor mirrors transactions; *services.SyncProcessor implements it.
type Processor interface {
	amqp.Handler
	ProcessPending(ctx context.Context) (int, error)
}

// Consumer delivers broker messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, h amqp.Handler) error
}

type OverdueSweeper interface {
	ProcessOverdue(ctx context.Context, now time.Time) (int, error)
}

type HeaderWriter interface {
	EnsureHeader(ctx context.Context) error
}

type Options struct {
	Schedule string
	Location *time.Location
	Overdue  OverdueSweeper
	Header   HeaderWriter
}

// SyncWorker keeps the mirror in step with the database: it consumes sync
// messages and periodically sweeps rows still pending.
type SyncWorker struct {
	processor Processor
	consumer  Consumer
	overdue   OverdueSweeper
	header    HeaderWriter
	schedule  string
	loc       *time.Location
}

func NewSyncWorker(processor Processor, consumer Consumer, opts Options) *SyncWorker {
	if opts.Schedule == "" {
		opts.Schedule = "@every 30s"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &SyncWorker{
		processor: processor,
		consumer:  consumer,
		overdue:   opts.Overdue,
		header:    opts.Header,
		schedule:  opts.Schedule,
		loc:       opts.Location,
	}
}

// StartupSyncCheck drains pending rows left behind by missed messages or
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.header != nil {
		if err := w.header.EnsureHeader(ctx); err != nil {
			return fmt.Errorf("ensure sheet header: %w", err)
		}
	}

	total := 0
	for round := 0; round < startupRounds; round++ {
		n, err := w.processor.ProcessPending(ctx)
		if err != nil {
			return fmt.Errorf("process pending transactions: %w", err)
		}
		if n == 0 {
			break
		}
		total += n
	}

	if total == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync check completed", "synced", total)
	return nil
}

// Run consumes messages and runs the scheduled sweeps until ctx is done.
func (w *SyncWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(w.loc))

	g, ctx := errgroup.WithContext(ctx)

	if _, err := c.AddFunc(w.schedule, func() { w.sweepPending(ctx) }); err != nil {
		return fmt.Errorf("schedule pending sweep %q: %w", w.schedule, err)
	}
	if w.overdue != nil {
		if _, err := c.AddFunc(OverdueSchedule, func() { w.sweepOverdue(ctx) }); err != nil {
			return fmt.Errorf("schedule overdue sweep: %w", err)
		}
	}

	c.Start()
	slog.InfoContext(ctx, "Sync worker started", "schedule", w.schedule, "timezone", w.loc.String())

	g.Go(func() error {
		err := w.consumer.Consume(ctx, w.processor)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		// Wait for a running job to return.
		<-c.Stop().Done()
		return nil
	})

	return g.Wait()
}

func (w *SyncWorker) sweepPending(ctx context.Context) {
	n, err := w.processor.ProcessPending(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
		}
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Periodic sync mirrored pending transactions", "synced", n)
	}
}

func (w *SyncWorker) sweepOverdue(ctx context.Context) {
	if _, err := w.overdue.ProcessOverdue(ctx, time.Now().In(w.loc)); err != nil {
		slog.ErrorContext(ctx, "Overdue invoice sweep failed", "error", err)
	}
}
