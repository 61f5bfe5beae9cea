// Package backend builds the configured storage backend.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finboard/internal/ports"
	"finboard/internal/storage/bolt"
	"finboard/internal/storage/memory"
	"finboard/internal/storage/postgres"
	"finboard/internal/storage/sqlite"
)

// Store is what every backend provides to the rest of the application.
type Store interface {
	ports.Store
	ports.PendingExports
	ports.Seeder
}

// Pinger is implemented by backends with a remote or file connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open creates the backend selected by cfg.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case MemoryBackend:
		dataDir := cfg.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store, err = memory.NewFromDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory store: %w", err)
		}
		logger.Info("Initialized memory backend", "data_directory", dataDir)
		return store, nil

	case SQLiteBackend:
		store, err = sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)

	case BoltBackend:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltDBPath), 0755); err != nil {
			return nil, fmt.Errorf("create bolt directory: %w", err)
		}
		store, err = bolt.Open(cfg.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bolt store: %w", err)
		}
		logger.Info("Initialized bolt backend", "db_path", cfg.BoltDBPath)

	case PostgresBackend:
		store, err = postgres.New(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}

	if cfg.SeedDemo {
		if err := SeedIfEmpty(ctx, store, memory.DemoDataset()); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}
	return store, nil
}

// SeedIfEmpty writes ds into store when it holds no transactions yet. Seeded
// transactions are marked exported so the worker does not mirror demo data.
func SeedIfEmpty(ctx context.Context, store Store, ds memory.Dataset) error {
	existing, err := store.ListTransactions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, tx := range ds.CoreTransactions() {
		if err := store.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		if err := store.MarkExported(ctx, tx.ID); err != nil {
			return err
		}
	}
	for _, p := range ds.CorePots() {
		if err := store.SavePot(ctx, p); err != nil {
			return err
		}
	}
	for _, b := range ds.CoreBudgets() {
		if err := store.SaveBudget(ctx, b); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "Seeded demo data", "transactions", len(ds.Transactions))
	return nil
}
