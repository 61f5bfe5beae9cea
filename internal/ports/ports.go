// Package ports declares the interfaces between the dashboard and its adapters.
package ports

import (
	"context"

	"finboard/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		SaveTransaction(ctx context.Context, tx core.Transaction) error
	}

	// TransactionGetter returns core.ErrNotFound when id is unknown.
	TransactionGetter interface {
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	}

	PotLister interface {
		ListPots(ctx context.Context) ([]core.Pot, error)
	}

	BudgetLister interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
	}

	// SnapshotSource is the `{transactions, loading}` contract the views consume.
	SnapshotSource interface {
		Snapshot(ctx context.Context) core.Snapshot
	}

	EventPublisher interface {
		PublishTransactionRecorded(ctx context.Context, id string) error
	}

	TransactionExporter interface {
		Export(ctx context.Context, tx core.Transaction) error
	}

	// Seeder creates or replaces pots and budgets. Used by the demo seed and
	// by the add-new forms.
	Seeder interface {
		SavePot(ctx context.Context, p core.Pot) error
		SaveBudget(ctx context.Context, b core.Budget) error
	}

	// PendingExports is implemented by stores that track which rows still
	// need to be mirrored to the export sink.
	PendingExports interface {
		ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkExported(ctx context.Context, id string) error
	}
)

// Store is the full surface every storage backend provides.
type Store interface {
	TransactionLister
	TransactionWriter
	TransactionGetter
	PotLister
	BudgetLister
	Close() error
}
