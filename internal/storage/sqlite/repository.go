// Package sqlite stores transactions, pots and budgets in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finboard/internal/core"
	"finboard/internal/ports"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var (
	_ ports.Store          = (*Repository)(nil)
	_ ports.PendingExports = (*Repository)(nil)
	_ ports.Seeder         = (*Repository)(nil)
)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const txColumns = `id, name, amount_cents, occurred_at, category, recurring, avatar`

func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

// SaveTransaction inserts tx or updates the row with the same id. Updating a
// row keeps its export state.
func (r *Repository) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, name, amount_cents, occurred_at, category, recurring, avatar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount_cents = excluded.amount_cents,
			occurred_at = excluded.occurred_at,
			category = excluded.category,
			recurring = excluded.recurring,
			avatar = excluded.avatar`,
		tx.ID, tx.Name, tx.Amount.Cents, tx.Date.UnixNano(), tx.Category, tx.RecurringBill, tx.Avatar, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"name", tx.Name,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *Repository) ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE exported_at IS NULL ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	return scanTransactions(rows)
}

func (r *Repository) MarkExported(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET exported_at = ? WHERE id = ?`, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) ListPots(ctx context.Context) ([]core.Pot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, target_cents, total_cents, theme FROM pots ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list pots: %w", err)
	}
	defer rows.Close()

	var pots []core.Pot
	for rows.Next() {
		var p core.Pot
		if err := rows.Scan(&p.ID, &p.Name, &p.Target.Cents, &p.Total.Cents, &p.Theme); err != nil {
			return nil, fmt.Errorf("scan pot: %w", err)
		}
		pots = append(pots, p)
	}
	return pots, rows.Err()
}

func (r *Repository) SavePot(ctx context.Context, p core.Pot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pots (id, name, target_cents, total_cents, theme) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target_cents = excluded.target_cents,
			total_cents = excluded.total_cents,
			theme = excluded.theme`,
		p.ID, p.Name, p.Target.Cents, p.Total.Cents, p.Theme)
	if err != nil {
		return fmt.Errorf("save pot: %w", err)
	}
	return nil
}

func (r *Repository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, maximum_cents, theme FROM budgets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.Category, &b.Maximum.Cents, &b.Theme); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *Repository) SaveBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (category, maximum_cents, theme) VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			maximum_cents = excluded.maximum_cents,
			theme = excluded.theme`,
		b.Category, b.Maximum.Cents, b.Theme)
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx         core.Transaction
		occurredAt int64
	)
	if err := s.Scan(&tx.ID, &tx.Name, &tx.Amount.Cents, &occurredAt, &tx.Category, &tx.RecurringBill, &tx.Avatar); err != nil {
		return core.Transaction{}, err
	}
	tx.Date = time.Unix(0, occurredAt).UTC()
	return tx, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}
