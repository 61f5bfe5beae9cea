// Package memory is an in-process store seeded from a JSON dataset. It backs
// local development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"finboard/internal/core"
	"finboard/internal/ports"
)

type Store struct {
	mu       sync.Mutex
	txs      []core.Transaction
	pots     []core.Pot
	budgets  []core.Budget
	exported map[string]bool
}

var (
	_ ports.Store          = (*Store)(nil)
	_ ports.PendingExports = (*Store)(nil)
	_ ports.Seeder         = (*Store)(nil)
)

func New(txs []core.Transaction, pots []core.Pot, budgets []core.Budget) *Store {
	return &Store{
		txs:      slices.Clone(txs),
		pots:     slices.Clone(pots),
		budgets:  slices.Clone(budgets),
		exported: make(map[string]bool),
	}
}

// NewFromDir loads base/data.json, falling back to the demo dataset when the
// file does not exist.
func NewFromDir(base string) (*Store, error) {
	path := filepath.Join(base, "data.json")
	ds, err := ReadDatasetFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("No dataset found, using demo data", "path", path)
		ds = DemoDataset()
	} else if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s := New(ds.CoreTransactions(), ds.CorePots(), ds.CoreBudgets())
	// Seeded rows are not mirrored to the export sink.
	for _, tx := range s.txs {
		s.exported[tx.ID] = true
	}
	return s, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.txs), nil
}

// SaveTransaction inserts tx, or replaces the row with the same id.
func (s *Store) SaveTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(tx.ID); i >= 0 {
		s.txs[i] = tx
		return nil
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) ListPots(_ context.Context) ([]core.Pot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pots), nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.budgets), nil
}

func (s *Store) ListPendingExport(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !s.exported[tx.ID] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return core.ErrNotFound
	}
	s.exported[id] = true
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.txs, func(tx core.Transaction) bool { return tx.ID == id })
}

func (s *Store) SavePot(_ context.Context, p core.Pot) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.pots, func(x core.Pot) bool { return x.ID == p.ID }); i >= 0 {
		s.pots[i] = p
		return nil
	}
	s.pots = append(s.pots, p)
	return nil
}

func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.budgets, func(x core.Budget) bool { return x.Category == b.Category }); i >= 0 {
		s.budgets[i] = b
		return nil
	}
	s.budgets = append(s.budgets, b)
	return nil
}
