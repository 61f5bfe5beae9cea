package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"finboard/internal/core"
	"finboard/internal/ports"
)

// TransactionService orchestrates recording transactions across the store and
// the event publisher.
type TransactionService struct {
	store     ports.TransactionWriter
	publisher ports.EventPublisher
	onRecord  []func(core.Transaction)
}

// NewTransactionService wires a writer and an optional publisher. A nil
// publisher disables events.
func NewTransactionService(store ports.TransactionWriter, publisher ports.EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// OnRecord registers fn to run after every successful Record, e.g. to drop
// cached views.
func (s *TransactionService) OnRecord(fn func(core.Transaction)) {
	s.onRecord = append(s.onRecord, fn)
}

// Record validates and saves tx, then publishes a TransactionRecorded event.
// Publishing is best effort: the transaction is already stored locally.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	for _, fn := range s.onRecord {
		fn(tx)
	}

	if err := s.publish(ctx, tx.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction recorded event",
			"id", tx.ID, "error", err)
	}

	return tx, nil
}

func (s *TransactionService) publish(ctx context.Context, id string) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "id", id)
		return nil
	}
	return s.publisher.PublishTransactionRecorded(ctx, id)
}

// Close closes the store and publisher when they support it.
func (s *TransactionService) Close() error {
	var errs []error

	if c, ok := s.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}

	return nil
}
