// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/finfolio/internal/utils"
	"github.com/joho/godotenv"
)

// Store backends for holding and watchlist records
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Quote provider
	AlphaVantageAPIKey     string
	AlphaVantageBaseURL    string
	AlphaVantageDailyLimit int

	// Market data synchronization
	QuoteCacheTTL         time.Duration // freshness window of a cached quote
	QuoteFetchTimeout     time.Duration // upper bound for a single upstream call
	QuoteRetention        time.Duration // entries older than this are pruned and no longer served stale
	WatchlistPollInterval time.Duration
	SuggestionQuietWindow time.Duration
	ValuationConcurrency  int

	StoreBackend string

	// Browser origins allowed by CORS and the websocket stream
	CORSAllowedOrigins []string

	Backup *BackupConfig
}

// BackupConfig holds snapshot backup settings. Backups are disabled unless a bucket is set.
type BackupConfig struct {
	Schedule        string
	Bucket          string
	Endpoint        string // S3-compatible endpoint (e.g. Cloudflare R2); empty uses AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether snapshot backups should be scheduled
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINFOLIO_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 5000),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AlphaVantageAPIKey:     getEnv("ALPHAVANTAGE_API_KEY", ""),
		AlphaVantageBaseURL:    getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co"),
		AlphaVantageDailyLimit: getEnvAsInt("ALPHAVANTAGE_DAILY_LIMIT", 25),

		QuoteCacheTTL:         getEnvAsDuration("QUOTE_CACHE_TTL", 60*time.Second),
		QuoteFetchTimeout:     getEnvAsDuration("QUOTE_FETCH_TIMEOUT", 10*time.Second),
		QuoteRetention:        getEnvAsDuration("QUOTE_RETENTION", 24*time.Hour),
		WatchlistPollInterval: getEnvAsDuration("WATCHLIST_POLL_INTERVAL", 30*time.Second),
		SuggestionQuietWindow: getEnvAsDuration("SUGGESTION_QUIET_WINDOW", 300*time.Millisecond),
		ValuationConcurrency:  getEnvAsInt("VALUATION_CONCURRENCY", 4),

		StoreBackend: getEnv("STORE_BACKEND", StoreBackendSQLite),

		CORSAllowedOrigins: utils.ParseCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QuoteCacheTTL <= 0 {
		return fmt.Errorf("QUOTE_CACHE_TTL must be positive, got %s", c.QuoteCacheTTL)
	}
	if c.QuoteFetchTimeout <= 0 {
		return fmt.Errorf("QUOTE_FETCH_TIMEOUT must be positive, got %s", c.QuoteFetchTimeout)
	}
	if c.QuoteRetention < c.QuoteCacheTTL {
		return fmt.Errorf("QUOTE_RETENTION (%s) must not be shorter than QUOTE_CACHE_TTL (%s)", c.QuoteRetention, c.QuoteCacheTTL)
	}
	if c.WatchlistPollInterval <= 0 {
		return fmt.Errorf("WATCHLIST_POLL_INTERVAL must be positive, got %s", c.WatchlistPollInterval)
	}
	if c.SuggestionQuietWindow < 0 {
		return fmt.Errorf("SUGGESTION_QUIET_WINDOW must not be negative, got %s", c.SuggestionQuietWindow)
	}
	if c.ValuationConcurrency < 1 {
		return fmt.Errorf("VALUATION_CONCURRENCY must be at least 1, got %d", c.ValuationConcurrency)
	}
	switch c.StoreBackend {
	case StoreBackendSQLite, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	// Note: the API key is optional so the server can run against a mock upstream
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 30 3 * * *"), // 03:30 daily (seconds field enabled)
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
	}
}
