package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"smartfin/internal/amqp"
	"smartfin/internal/archive"
	"smartfin/internal/cache"
	"smartfin/internal/core"
	"smartfin/internal/ledger"
	"smartfin/internal/ledger/memory"
	"smartfin/internal/log"
	"smartfin/internal/pgstore"
	"smartfin/internal/services"
	"smartfin/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured store and builds the ledger service
// on top of it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store     ledger.Store
		publisher services.Publisher
		err       error
	)
	switch config.Type {
	case MemoryBackend:
		store, err = f.createMemoryStore(ctx, config)
	case SQLiteBackend:
		store, publisher, err = f.createSQLiteStore(config)
	case PostgresBackend:
		store, err = f.createPostgresStore(ctx, config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res := &resources{store: store, publisher: publisher}
	if p, ok := store.(Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			res.release()
			return nil, fmt.Errorf("%s backend not reachable: %w", config.Type, err)
		}
	}

	opts := []services.Option{services.WithLogger(f.logger.WithComponent(log.ComponentLedger))}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}

	if config.CacheTTL > 0 {
		c, err := cache.New[[]core.Transaction](cache.Options{Backend: config.CacheBackend, TTL: config.CacheTTL})
		if err != nil {
			res.release()
			return nil, fmt.Errorf("create cache: %w", err)
		}
		opts = append(opts, services.WithCache(c))
		res.cache = c

		res.manager = cache.NewManager(f.logger)
		res.manager.Register(c)
		res.manager.StartCleanup(config.CacheTTL)
		f.logger.Info("Transaction cache enabled", "cache_backend", config.CacheBackend, "ttl", config.CacheTTL)
	}

	svc := services.NewLedgerService(store, opts...)
	cleanup := func() error {
		res.stopCache()
		return svc.Close()
	}

	f.logger.Info("Backend ready", log.FieldBackend, config.Type.String(), "sync_enabled", publisher != nil)
	return &Result{Service: svc, Store: store, Cleanup: cleanup}, nil
}

// resources is what CreateBackend has opened so far.
type resources struct {
	store     ledger.Store
	publisher services.Publisher
	cache     any
	manager   *cache.Manager
}

// stopCache ends the expiry sweep and any background work of the cache.
func (r *resources) stopCache() {
	if r.manager != nil {
		r.manager.Stop()
		r.manager = nil
	}
	if c, ok := r.cache.(interface{ Close() }); ok {
		c.Close()
	}
	r.cache = nil
}

// release undoes a partially built backend.
func (r *resources) release() error {
	r.stopCache()
	var errs []error
	if c, ok := r.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (f *DefaultFactory) createMemoryStore(ctx context.Context, config Config) (ledger.Store, error) {
	store := memory.New()
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory backend")
		return store, nil
	}

	snap, err := archive.ReadFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	if err := store.Replace(ctx, snap); err != nil {
		return nil, fmt.Errorf("load seed file: %w", err)
	}
	f.logger.Info("Initialized memory backend from seed file",
		"seed_file", config.SeedFile,
		log.FieldCount, len(snap.Transactions),
		"invoices", len(snap.Invoices))
	return store, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (ledger.Store, services.Publisher, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional: without it rows stay pending until a worker sweep.
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = client
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, publisher, nil
}

func (f *DefaultFactory) createPostgresStore(ctx context.Context, config Config) (ledger.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := pgstore.Open(ctx, config.PostgresURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("postgres not reachable within 15s: %w", err)
		}
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}
	f.logger.Info("Initialized Postgres backend")
	return store, nil
}
