package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/config"
	"finboard/internal/storage/memory"
)

func TestTypeIsValid(t *testing.T) {
	for _, typ := range Types() {
		assert.True(t, typ.IsValid(), "%s should be valid", typ)
	}
	assert.False(t, Type("sheets").IsValid(), "sheets is not a storage backend")
}

func TestFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.DataBackend = "postgres"
	app.PostgresHost = "db"

	cfg, err := FromAppConfig(&app)
	require.NoError(t, err)
	assert.Equal(t, PostgresBackend, cfg.Type)
	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)

	app.DataBackend = "nope"
	_, err = FromAppConfig(&app)
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()}, nil)
	require.NoError(t, err)
	defer store.Close()

	txs, err := store.ListTransactions(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, txs, "memory backend should fall back to demo data")
}

func TestOpenPersistentBackendsWithSeed(t *testing.T) {
	dir := t.TempDir()
	tests := []Config{
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "a", "finboard.db"), SeedDemo: true},
		{Type: BoltBackend, BoltDBPath: filepath.Join(dir, "b", "finboard.bolt"), SeedDemo: true},
	}
	want := len(memory.DemoDataset().Transactions)

	for _, cfg := range tests {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			ctx := context.Background()
			store, err := Open(ctx, cfg, nil)
			require.NoError(t, err)
			defer store.Close()

			txs, err := store.ListTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txs, want)

			pending, err := store.ListPendingExport(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, pending, "seeded rows must not be pending export")

			require.NoError(t, SeedIfEmpty(ctx, store, memory.DemoDataset()))
			txs, err = store.ListTransactions(ctx)
			require.NoError(t, err)
			assert.Len(t, txs, want, "seeding twice must be a no-op")
		})
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: SQLiteBackend}, nil)
	assert.Error(t, err, "sqlite needs a path")
}
