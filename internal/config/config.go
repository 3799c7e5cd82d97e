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

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	validBackends      = []string{"memory", "sqlite"}
	validSheetBackends = []string{"google", "memory"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
)

type Config struct {
	// HTTP Server
	Port string `env:"PORT" envDefault:"8081"`

	// Backend selection
	DataBackend string `env:"DATA_BACKEND" envDefault:"sqlite"`

	// Database
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/subtrack.db"`
	SeedDir      string `env:"SEED_DIR" envDefault:"./data"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"subtrack"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"subscription_changes"`

	// Redis fan-out between server instances
	RedisURL string `env:"REDIS_URL"`

	// Identity tokens
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// Calendar
	Timezone      string        `env:"APP_TIMEZONE" envDefault:"Asia/Tokyo"`
	HorizonMonths int           `env:"HORIZON_MONTHS" envDefault:"12"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Rate limiting of write requests per client IP
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Google Sheets export
	SheetsBackend       string `env:"SHEETS_BACKEND" envDefault:"memory"`
	GoogleSpreadsheetID string `env:"GOOGLE_SPREADSHEET_ID"`
	SheetTabPrefix      string `env:"GOOGLE_SHEET_TAB_PREFIX" envDefault:"Schedule "`

	// Worker
	ResyncInterval time.Duration `env:"RESYNC_INTERVAL" envDefault:"1h"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.SheetsBackend = strings.ToLower(strings.TrimSpace(cfg.SheetsBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return cfg, nil
}

// Location returns the time zone that decides which day is today.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
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

	// Validate Redis URL if provided
	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.HorizonMonths < 1 || c.HorizonMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid horizon %d: must be between 1 and 24 months", c.HorizonMonths))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	// Validate Google Sheets configuration if the export goes to Google
	if !slices.Contains(validSheetBackends, c.SheetsBackend) {
		errors = append(errors, fmt.Sprintf("invalid sheets backend '%s': must be one of %v", c.SheetsBackend, validSheetBackends))
	}
	if c.SheetsBackend == "google" && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using google sheets backend")
	}

	// Validate worker configuration
	if c.ResyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid resync interval %v: must be at least 1 minute", c.ResyncInterval))
	} else if c.ResyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid resync interval %v: must be at most 24 hours", c.ResyncInterval))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
