package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/ports"
)

// ExportStore is what the export processor needs from a storage backend.
type ExportStore interface {
	ports.TransactionGetter
	ports.PendingExports
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to sweep for unexported rows (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of rows exported per sweep (default: 20)
	BatchSize int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    20,
	}
}

// ExportProcessor mirrors stored transactions to an export sink. It exports
// single rows on demand and periodically sweeps rows whose event was lost.
type ExportProcessor struct {
	store    ExportStore
	exporter ports.TransactionExporter
	config   ExportProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(store ExportStore, exporter ports.TransactionExporter, config ExportProcessorConfig) *ExportProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultExportProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExportProcessorConfig().BatchSize
	}
	return &ExportProcessor{
		store:    store,
		exporter: exporter,
		config:   config,
	}
}

// ExportOne exports the transaction with id and marks it exported. Unknown
// ids are skipped without error so the caller can ack the message.
func (p *ExportProcessor) ExportOne(ctx context.Context, id string) error {
	tx, err := p.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction not found, skipping export", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	return p.export(ctx, tx)
}

func (p *ExportProcessor) export(ctx context.Context, tx core.Transaction) error {
	if err := p.exporter.Export(ctx, tx); err != nil {
		return fmt.Errorf("export transaction %s: %w", tx.ID, err)
	}
	if err := p.store.MarkExported(ctx, tx.ID); err != nil {
		// The row is in the sink already; a later sweep would duplicate it.
		slog.WarnContext(ctx, "Failed to mark transaction as exported",
			"id", tx.ID, "error", err)
	}
	slog.InfoContext(ctx, "Exported transaction", "id", tx.ID, "name", tx.Name)
	return nil
}

// Sweep exports one batch of pending rows and returns how many succeeded.
func (p *ExportProcessor) Sweep(ctx context.Context) (int, error) {
	pending, err := p.store.ListPendingExport(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}

	exported := 0
	for _, tx := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := p.export(ctx, tx); err != nil {
			slog.WarnContext(ctx, "Export failed, will retry on next sweep",
				"id", tx.ID, "error", err)
			continue
		}
		exported++
	}
	return exported, nil
}

// Start begins the sweep loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.sweepAndLog(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepAndLog(ctx)
		}
	}
}

func (p *ExportProcessor) sweepAndLog(ctx context.Context) {
	n, err := p.Sweep(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Export sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Export sweep completed", "exported", n)
	}
}
