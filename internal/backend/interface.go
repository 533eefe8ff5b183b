package backend

import (
	"context"

	"smartfin/internal/ledger"
	"smartfin/internal/services"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// Result is a ready ledger service and the store underneath it.
type Result struct {
	Service *services.LedgerService
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
