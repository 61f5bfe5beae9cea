package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
)

type fakeExportStore struct {
	mu       sync.Mutex
	txs      map[string]core.Transaction
	exported map[string]bool
}

func newFakeExportStore(txs ...core.Transaction) *fakeExportStore {
	s := &fakeExportStore{txs: map[string]core.Transaction{}, exported: map[string]bool{}}
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
	return s
}

func (s *fakeExportStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (s *fakeExportStore) ListPendingExport(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for id, tx := range s.txs {
		if !s.exported[id] && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *fakeExportStore) MarkExported(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported[id] = true
	return nil
}

type fakeExporter struct {
	mu   sync.Mutex
	rows []string
	fail map[string]bool
}

func (e *fakeExporter) Export(_ context.Context, tx core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail[tx.ID] {
		return errors.New("quota exceeded")
	}
	e.rows = append(e.rows, tx.ID)
	return nil
}

func (e *fakeExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

func withID(id string) core.Transaction {
	tx := validTx()
	tx.ID = id
	return tx
}

func TestDefaultExportProcessorConfig(t *testing.T) {
	config := DefaultExportProcessorConfig()
	assert.Equal(t, time.Minute, config.PollInterval)
	assert.Equal(t, 20, config.BatchSize)
}

func TestExportProcessor_ExportOne(t *testing.T) {
	store := newFakeExportStore(withID("a"))
	exp := &fakeExporter{}
	p := NewExportProcessor(store, exp, ExportProcessorConfig{})

	require.NoError(t, p.ExportOne(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, exp.rows)
	assert.True(t, store.exported["a"])

	require.NoError(t, p.ExportOne(context.Background(), "missing"), "unknown ids are skipped")
}

func TestExportProcessor_ExportOneFailure(t *testing.T) {
	store := newFakeExportStore(withID("a"))
	p := NewExportProcessor(store, &fakeExporter{fail: map[string]bool{"a": true}}, ExportProcessorConfig{})

	assert.Error(t, p.ExportOne(context.Background(), "a"))
	assert.False(t, store.exported["a"])
}

func TestExportProcessor_Sweep(t *testing.T) {
	store := newFakeExportStore(withID("a"), withID("b"), withID("c"))
	exp := &fakeExporter{fail: map[string]bool{"b": true}}
	p := NewExportProcessor(store, exp, ExportProcessorConfig{BatchSize: 10})

	n, err := p.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"a", "c"}, exp.rows)
	assert.False(t, store.exported["b"], "failed rows stay pending")
}

func TestExportProcessor_StartStop(t *testing.T) {
	store := newFakeExportStore(withID("a"))
	exp := &fakeExporter{}
	p := NewExportProcessor(store, exp, ExportProcessorConfig{PollInterval: 10 * time.Millisecond})

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool { return exp.count() == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Stop(stopCtx), "stopping twice is a no-op")
}
