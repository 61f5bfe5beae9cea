// Package worker runs the background export of recorded transactions.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/services"
)

// Consumer delivers TransactionRecorded messages until ctx is done.
type Consumer interface {
	ConsumeTransactionRecorded(ctx context.Context, handler amqp.Handler) error
}

// ExportWorker exports transactions as their events arrive and sweeps the
// store periodically for rows whose event was lost.
type ExportWorker struct {
	processor *services.ExportProcessor
	consumer  Consumer
}

// NewExportWorker wires a processor to an optional consumer. Without a
// consumer only the periodic sweep runs.
func NewExportWorker(processor *services.ExportProcessor, consumer Consumer) *ExportWorker {
	return &ExportWorker{
		processor: processor,
		consumer:  consumer,
	}
}

// HandleTransactionRecorded processes a single TransactionRecorded message.
func (w *ExportWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction recorded message",
		"id", msg.ID,
		"published_at", msg.Timestamp)

	if err := w.processor.ExportOne(ctx, msg.ID); err != nil {
		return fmt.Errorf("export %s: %w", msg.ID, err)
	}
	return nil
}

// Run blocks until ctx is cancelled or the consumer fails for good.
func (w *ExportWorker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start export processor: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.processor.Stop(stopCtx); err != nil {
			slog.Error("Failed to stop export processor", "error", err)
		}
	}()

	if w.consumer == nil {
		slog.InfoContext(ctx, "No message consumer configured, running periodic sweeps only")
		<-ctx.Done()
		return nil
	}

	err := w.consumer.ConsumeTransactionRecorded(ctx, w.HandleTransactionRecorded)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("consume messages: %w", err)
	}
	return nil
}
