// Package cli holds the start-up steps shared by cmd/smartfin,
// cmd/smartfin-worker and cmd/forecast.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"smartfin/internal/config"
	"smartfin/internal/log"
	"smartfin/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger for LOG_LEVEL and makes it the
// default. An unknown level falls back to info; config validation reports it.
func SetupLogger(level, component string, out io.Writer) *log.Logger {
	lvl, _ := log.ParseLevel(level)
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{Level: lvl, Component: component, Output: out})
	log.SetDefault(logger)
	return logger
}

// MustValidate runs validate and exits the process when it fails.
func MustValidate(logger *log.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
}

// Bootstrap loads .env and the configuration, then sets up logging.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	return cfg, SetupLogger(cfg.LogLevel, component, nil)
}

// Exit logs err and terminates the process.
func Exit(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}

// InitSQLite opens the SQLite repository or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		Exit(logger, "Failed to initialize SQLite repository", err, "path", dbPath)
	}
	return repo
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
