package backend

import (
	"fmt"

	"finboard/internal/config"
	"finboard/internal/storage/postgres"
)

// Type names a storage backend.
type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	BoltBackend     Type = "bolt"
	PostgresBackend Type = "postgres"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, BoltBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// Memory backend: directory holding data.json
	DataDirectory string

	SQLiteDBPath string
	BoltDBPath   string
	Postgres     postgres.Config

	// SeedDemo loads the demo dataset into an empty persistent store.
	SeedDemo bool
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          t,
		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		BoltDBPath:    appConfig.BoltDBPath,
		Postgres: postgres.Config{
			Host:     appConfig.PostgresHost,
			Port:     appConfig.PostgresPort,
			Database: appConfig.PostgresDB,
			User:     appConfig.PostgresUser,
			Password: appConfig.PostgresPassword,
			SSLMode:  appConfig.PostgresSSLMode,
		},
		SeedDemo: appConfig.SeedDemo,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case BoltBackend:
		if c.BoltDBPath == "" {
			return fmt.Errorf("bolt database path is required for bolt backend")
		}
	case PostgresBackend:
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			return fmt.Errorf("postgres host and database are required for postgres backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	return nil
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, BoltBackend, PostgresBackend}
}
