package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Writes allowed per client per minute; 0 disables the limit.
	RateLimitPerMinute int

	// Local store
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// Remote document store
	RemoteBackend         string
	GoogleSpreadsheetID   string
	GoogleBackupSheetName string
	GoogleServiceAccount  string // inline JSON
	GoogleServiceFile     string
	PostgresDSN           string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Identity tokens
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Ledger
	SearchDebounce  time.Duration
	ReportCacheSize int
	ReportCacheTTL  time.Duration
	Timezone        string

	// Worker
	SyncInterval time.Duration

	// Reported in backups
	AppVersion string
	Platform   string

	LogLevel  string
	LogFormat string
}

var (
	validDataBackends   = []string{"memory", "sqlite"}
	validRemoteBackends = []string{"none", "memory", "sheets", "postgres"}
)

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetbuddy.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		RemoteBackend:         getEnv("REMOTE_BACKEND", "none"),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleBackupSheetName: getEnv("GOOGLE_BACKUP_SHEET_NAME", "Backups"),
		GoogleServiceAccount:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		PostgresDSN:           getEnv("POSTGRES_DSN", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetbuddy"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_keys"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "budgetbuddy"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		SearchDebounce:  getEnvDuration("SEARCH_DEBOUNCE", 500*time.Millisecond),
		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 24),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),
		Timezone:        getEnv("TIMEZONE", "Local"),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 10*time.Minute),

		AppVersion: getEnv("APP_VERSION", "1.0.1"),
		Platform:   getEnv("PLATFORM", "server"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Location resolves Timezone; callers run Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !oneOf(c.DataBackend, validDataBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.DataBackend == "memory" && c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil && !os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("cannot read seed file '%s': %v", c.SeedFile, err))
		}
	}

	if !oneOf(c.RemoteBackend, validRemoteBackends) {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemoteBackends))
	}
	switch c.RemoteBackend {
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets remote backend")
		}
		if c.GoogleServiceAccount == "" && c.GoogleServiceFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets remote backend")
		}
		if c.GoogleServiceFile != "" && c.GoogleServiceAccount == "" {
			if _, err := os.Stat(c.GoogleServiceFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceFile))
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres remote backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if c.SearchDebounce < 0 || c.SearchDebounce > 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid search debounce %v: must be between 0 and 10s", c.SearchDebounce))
	}
	if c.ReportCacheSize < 1 || c.ReportCacheSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be between 1 and 1000", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if !oneOf(strings.ToLower(c.LogFormat), []string{"text", "json"}) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
