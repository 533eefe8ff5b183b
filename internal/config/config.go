package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"smartfin/internal/llm"
	"smartfin/internal/log"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	CacheLRU       = "lru"
	CacheRistretto = "ristretto"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Storage
	DataBackend  string
	SeedFile     string
	SQLiteDBPath string
	PostgresURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	SyncBatchSize int
	SyncSchedule  string
	Timezone      string

	// AI gateway
	AIProvider    string
	AIEndpoint    string
	AIAPIKey      string
	AIModel       string
	AIMaxTokens   int
	AITemperature float64
	AITimeout     time.Duration

	WatchThresholdsFile string

	// Snapshot cache
	CacheBackend string
	CacheTTL     time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		SeedFile:     getEnv("SEED_FILE", ""),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/smartfin.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "smartfin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_transactions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncSchedule:  getEnv("SYNC_SCHEDULE", "@every 30s"),
		Timezone:      getEnv("TIMEZONE", "UTC"),

		AIProvider:    getEnv("AI_PROVIDER", string(llm.ProviderNone)),
		AIEndpoint:    getEnv("AI_ENDPOINT", ""),
		AIAPIKey:      getEnv("AI_API_KEY", ""),
		AIModel:       getEnv("AI_MODEL", ""),
		AIMaxTokens:   getEnvInt("AI_MAX_TOKENS", llm.DefaultMaxTokens),
		AITemperature: getEnvFloat("AI_TEMPERATURE", llm.DefaultTemperature),
		AITimeout:     getEnvDuration("AI_TIMEOUT", llm.DefaultTimeout),

		WatchThresholdsFile: getEnv("WATCH_THRESHOLDS_FILE", ""),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", CacheLRU)),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
	}
}

// Validate checks the settings used by the API server and returns every
// problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			errs = append(errs, "POSTGRES_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, fmt.Sprintf("invalid POSTGRES_URL '%s': must be a postgres:// URL", c.PostgresURL))
		}
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errs = append(errs, fmt.Sprintf("seed file not readable: %s", c.SeedFile))
		}
	}

	errs = append(errs, c.validateAMQP()...)

	provider, err := llm.ParseProvider(c.AIProvider)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid AI provider '%s': must be none, chat, anthropic or gemini", c.AIProvider))
	}
	if provider != llm.ProviderNone && provider != "" && c.AIAPIKey == "" {
		errs = append(errs, fmt.Sprintf("AI_API_KEY is required when AI_PROVIDER is '%s'", provider))
	}
	if c.AIEndpoint != "" {
		if u, err := url.Parse(c.AIEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("invalid AI endpoint '%s': must be an http(s) URL", c.AIEndpoint))
		}
	}
	if c.AIMaxTokens < 1 || c.AIMaxTokens > 8192 {
		errs = append(errs, fmt.Sprintf("invalid AI max tokens %d: must be between 1 and 8192", c.AIMaxTokens))
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		errs = append(errs, fmt.Sprintf("invalid AI temperature %v: must be between 0 and 2", c.AITemperature))
	}
	if c.AITimeout < time.Second || c.AITimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid AI timeout %v: must be between 1s and 5m", c.AITimeout))
	}

	if c.WatchThresholdsFile != "" {
		if _, err := os.Stat(c.WatchThresholdsFile); err != nil {
			errs = append(errs, fmt.Sprintf("watch thresholds file not readable: %s", c.WatchThresholdsFile))
		}
	}

	if c.CacheBackend != CacheLRU && c.CacheBackend != CacheRistretto {
		errs = append(errs, fmt.Sprintf("invalid cache backend '%s': must be lru or ristretto", c.CacheBackend))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	return joinErrors(errs)
}

// ValidateWorker checks the settings the sync worker needs on top of the
// storage and AMQP ones.
func (c *Config) ValidateWorker() error {
	var errs []string

	if c.DataBackend != BackendSQLite {
		errs = append(errs, fmt.Sprintf("sync worker requires the sqlite backend, got '%s'", c.DataBackend))
	}
	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required by the sync worker")
	}
	errs = append(errs, c.validateAMQP()...)

	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required by the sync worker")
	}
	if c.GoogleSheetName == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME cannot be empty")
	}
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if _, err := cron.ParseStandard(c.SyncSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("invalid sync schedule '%s': %v", c.SyncSchedule, err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	return joinErrors(errs)
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errs []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LLM returns the gateway settings.
func (c *Config) LLM() llm.Config {
	provider, _ := llm.ParseProvider(c.AIProvider)
	return llm.Config{
		Provider:    provider,
		Endpoint:    c.AIEndpoint,
		APIKey:      c.AIAPIKey,
		Model:       c.AIModel,
		MaxTokens:   c.AIMaxTokens,
		Temperature: c.AITemperature,
		Timeout:     c.AITimeout,
	}
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
