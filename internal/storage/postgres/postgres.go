// Package postgres stores dashboard data in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finboard/internal/core"
	"finboard/internal/ports"
)

//go:embed 001_create_tables.sql
var migrationSQL string

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// DSN returns the keyword/value connection string for cfg.
func (cfg Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

func (cfg Config) withDefaults() Config {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}
	return cfg
}

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ ports.Store          = (*Store)(nil)
	_ ports.PendingExports = (*Store)(nil)
	_ ports.Seeder         = (*Store)(nil)
)

// New connects, pings and migrates.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}

// Ping checks the pool for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const txColumns = `id, name, amount_cents, occurred_at, category, recurring, avatar`

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

func (s *Store) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, name, amount_cents, occurred_at, category, recurring, avatar)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			amount_cents = EXCLUDED.amount_cents,
			occurred_at = EXCLUDED.occurred_at,
			category = EXCLUDED.category,
			recurring = EXCLUDED.recurring,
			avatar = EXCLUDED.avatar,
			updated_at = NOW()`,
		tx.ID, tx.Name, tx.Amount.Cents, tx.Date, tx.Category, tx.RecurringBill, tx.Avatar)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *Store) ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE exported_at IS NULL ORDER BY seq`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	return txs, nil
}

func (s *Store) MarkExported(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE transactions SET exported_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListPots(ctx context.Context) ([]core.Pot, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, target_cents, total_cents, theme FROM pots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list pots: %w", err)
	}
	pots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Pot, error) {
		var p core.Pot
		err := row.Scan(&p.ID, &p.Name, &p.Target.Cents, &p.Total.Cents, &p.Theme)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list pots: %w", err)
	}
	return pots, nil
}

func (s *Store) SavePot(ctx context.Context, p core.Pot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pots (id, name, target_cents, total_cents, theme) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			target_cents = EXCLUDED.target_cents,
			total_cents = EXCLUDED.total_cents,
			theme = EXCLUDED.theme`,
		p.ID, p.Name, p.Target.Cents, p.Total.Cents, p.Theme)
	if err != nil {
		return fmt.Errorf("save pot: %w", err)
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, maximum_cents, theme FROM budgets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	budgets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Budget, error) {
		var b core.Budget
		err := row.Scan(&b.Category, &b.Maximum.Cents, &b.Theme)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *Store) SaveBudget(ctx context.Context, b core.Budget) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO budgets (category, maximum_cents, theme) VALUES ($1, $2, $3)
		ON CONFLICT (category) DO UPDATE SET
			maximum_cents = EXCLUDED.maximum_cents,
			theme = EXCLUDED.theme`,
		b.Category, b.Maximum.Cents, b.Theme)
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var tx core.Transaction
	err := row.Scan(&tx.ID, &tx.Name, &tx.Amount.Cents, &tx.Date, &tx.Category, &tx.RecurringBill, &tx.Avatar)
	tx.Date = tx.Date.UTC()
	return tx, err
}
