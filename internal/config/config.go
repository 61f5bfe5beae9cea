// Package config loads finboard settings from the environment.
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

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Backends lists the accepted DATA_BACKEND values.
var Backends = []string{"memory", "sqlite", "bolt", "postgres"}

type Config struct {
	// HTTP Server
	Port           string `koanf:"PORT"`
	RateLimitPerIP int    `koanf:"RATE_LIMIT_PER_MINUTE"`

	// Backend selection
	DataBackend string `koanf:"DATA_BACKEND"`
	DataDir     string `koanf:"DATA_DIR"`
	SeedDemo    bool   `koanf:"SEED_DEMO"`

	// Storage
	SQLiteDBPath string `koanf:"SQLITE_DB_PATH"`
	BoltDBPath   string `koanf:"BOLT_DB_PATH"`

	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDB       string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`

	// AMQP
	AMQPURL      string `koanf:"AMQP_URL"`
	AMQPExchange string `koanf:"AMQP_EXCHANGE"`
	AMQPQueue    string `koanf:"AMQP_QUEUE"`

	// Google Sheets export
	GoogleSpreadsheetID       string `koanf:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName           string `koanf:"GOOGLE_SHEET_NAME"`
	GoogleServiceAccountJSON  string `koanf:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile  string `koanf:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleApplicationCredFile string `koanf:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Worker
	ExportBatchSize int           `koanf:"EXPORT_BATCH_SIZE"`
	ExportInterval  time.Duration `koanf:"EXPORT_INTERVAL"`

	// Views
	SnapshotRefresh time.Duration `koanf:"SNAPSHOT_REFRESH"`
	DueSoonDays     int           `koanf:"DUE_SOON_DAYS"`
	CacheTTL        time.Duration `koanf:"CACHE_TTL"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		Port:           "8081",
		RateLimitPerIP: 60,

		DataBackend: "memory",
		DataDir:     "data",

		SQLiteDBPath: "./data/finboard.db",
		BoltDBPath:   "./data/finboard.bolt",

		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresDB:      "finboard",
		PostgresUser:    "finboard",
		PostgresSSLMode: "disable",

		AMQPExchange: "finboard",
		AMQPQueue:    "export_transactions",

		GoogleSheetName: "Transactions",

		ExportBatchSize: 20,
		ExportInterval:  time.Minute,

		SnapshotRefresh: 30 * time.Second,
		DueSoonDays:     5,
		CacheTTL:        5 * time.Minute,

		LogLevel:  "INFO",
		LogFormat: "text",
	}
}

// Load reads the environment on top of Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ExportEnabled reports whether a Sheets export target is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerIP < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerIP))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "sqlite":
		errors = append(errors, checkFilePath("SQLite database", c.SQLiteDBPath, c.DataBackend)...)
	case "bolt":
		errors = append(errors, checkFilePath("Bolt database", c.BoltDBPath, c.DataBackend)...)
	case "postgres":
		if c.PostgresHost == "" {
			errors = append(errors, "POSTGRES_HOST is required when using postgres backend")
		}
		if c.PostgresDB == "" {
			errors = append(errors, "POSTGRES_DB is required when using postgres backend")
		}
		if c.PostgresUser == "" {
			errors = append(errors, "POSTGRES_USER is required when using postgres backend")
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid postgres port %d: must be between 1 and 65535", c.PostgresPort))
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

	if c.ExportEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.CredentialsFile() == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for export")
		}
		if f := c.CredentialsFile(); f != "" && c.GoogleServiceAccountJSON == "" {
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", f))
			}
		}
	}

	if c.ExportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	} else if c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at most 1000", c.ExportBatchSize))
	}

	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if c.SnapshotRefresh < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot refresh %v: must be at least 1 second", c.SnapshotRefresh))
	}

	if c.DueSoonDays < 1 || c.DueSoonDays > 28 {
		errors = append(errors, fmt.Sprintf("invalid due soon window %d: must be between 1 and 28 days", c.DueSoonDays))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// CredentialsFile returns the service account file, preferring
// GOOGLE_SERVICE_ACCOUNT_FILE over GOOGLE_APPLICATION_CREDENTIALS.
func (c *Config) CredentialsFile() string {
	if c.GoogleServiceAccountFile != "" {
		return c.GoogleServiceAccountFile
	}
	return c.GoogleApplicationCredFile
}

func checkFilePath(what, path, backend string) []string {
	if path == "" {
		return []string{fmt.Sprintf("%s path cannot be empty when using %s backend", what, backend)}
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return []string{fmt.Sprintf("cannot create %s directory '%s': %v", what, dir, err)}
		}
	}
	return nil
}
