package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/services"
	"finboard/internal/storage/memory"
)

type recordingExporter struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (e *recordingExporter) Export(_ context.Context, tx core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.ids = append(e.ids, tx.ID)
	return nil
}

func (e *recordingExporter) exported() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}

// fakeConsumer hands each queued message to the handler, then waits for ctx.
type fakeConsumer struct {
	msgs    []*amqp.TransactionRecordedMessage
	results chan error
}

func (c *fakeConsumer) ConsumeTransactionRecorded(ctx context.Context, handler amqp.Handler) error {
	for _, msg := range c.msgs {
		c.results <- handler(ctx, msg)
	}
	<-ctx.Done()
	return ctx.Err()
}

func newStore(t *testing.T, txs ...core.Transaction) *memory.Store {
	t.Helper()
	store := memory.New(nil, nil, nil)
	for _, tx := range txs {
		require.NoError(t, store.SaveTransaction(context.Background(), tx))
	}
	return store
}

func sampleTx(id string) core.Transaction {
	return core.Transaction{
		ID:       id,
		Name:     "Savory Bites Bistro",
		Amount:   core.Money{Cents: -5550},
		Date:     time.Date(2024, 8, 19, 20, 23, 0, 0, time.UTC),
		Category: "Dining Out",
	}
}

func TestHandleTransactionRecorded(t *testing.T) {
	store := newStore(t, sampleTx("tx-1"))
	exporter := &recordingExporter{}
	w := NewExportWorker(services.NewExportProcessor(store, exporter, services.DefaultExportProcessorConfig()), nil)

	err := w.HandleTransactionRecorded(context.Background(), amqp.NewTransactionRecordedMessage("tx-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-1"}, exporter.exported())

	pending, err := store.ListPendingExport(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleTransactionRecordedUnknownID(t *testing.T) {
	exporter := &recordingExporter{}
	w := NewExportWorker(services.NewExportProcessor(newStore(t), exporter, services.DefaultExportProcessorConfig()), nil)

	require.NoError(t, w.HandleTransactionRecorded(context.Background(), amqp.NewTransactionRecordedMessage("missing")))
	assert.Empty(t, exporter.exported())
}

func TestHandleTransactionRecordedExportError(t *testing.T) {
	exporter := &recordingExporter{err: errors.New("sheets unavailable")}
	w := NewExportWorker(services.NewExportProcessor(newStore(t, sampleTx("tx-1")), exporter, services.DefaultExportProcessorConfig()), nil)

	err := w.HandleTransactionRecorded(context.Background(), amqp.NewTransactionRecordedMessage("tx-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets unavailable")
}

func TestRunConsumesMessages(t *testing.T) {
	store := newStore(t, sampleTx("tx-1"), sampleTx("tx-2"))
	exporter := &recordingExporter{}
	processor := services.NewExportProcessor(store, exporter, services.ExportProcessorConfig{PollInterval: time.Hour, BatchSize: 1})
	consumer := &fakeConsumer{
		msgs:    []*amqp.TransactionRecordedMessage{amqp.NewTransactionRecordedMessage("tx-2")},
		results: make(chan error, 1),
	}
	w := NewExportWorker(processor, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-consumer.results:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Contains(t, exporter.exported(), "tx-2")
	assert.False(t, processor.IsRunning())
}

func TestRunSweepsWithoutConsumer(t *testing.T) {
	store := newStore(t, sampleTx("tx-1"))
	exporter := &recordingExporter{}
	processor := services.NewExportProcessor(store, exporter, services.ExportProcessorConfig{PollInterval: 10 * time.Millisecond})
	w := NewExportWorker(processor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(exporter.exported()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
