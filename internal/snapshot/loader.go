// Package snapshot keeps an in-memory copy of the transaction list that the
// views read from. It reports Loading until the first fetch completes.
package snapshot

import (
	"context"
	"slices"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/ports"
)

// DefaultRefreshInterval is how often the loader refetches in the background.
const DefaultRefreshInterval = 30 * time.Second

// Loader fetches transactions from a lister and serves copies of the latest
// result. It implements ports.SnapshotSource.
type Loader struct {
	source   ports.TransactionLister
	interval time.Duration
	logger   *log.Logger

	mu        sync.RWMutex
	txs       []core.Transaction
	loaded    bool
	fetchedAt time.Time

	refresh chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
}

var _ ports.SnapshotSource = (*Loader)(nil)

func New(source ports.TransactionLister, interval time.Duration, logger *log.Logger) *Loader {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Loader{
		source:   source,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentSnapshot),
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the background fetch loop. The first fetch runs
// immediately; until it lands Snapshot reports Loading.
func (l *Loader) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
}

// Stop ends the loop and waits for it.
func (l *Loader) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// Invalidate asks the loop to refetch as soon as possible.
func (l *Loader) Invalidate() {
	select {
	case l.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest transactions. The slice is a copy, so callers
// may sort or filter it freely.
func (l *Loader) Snapshot(context.Context) core.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.loaded {
		return core.Snapshot{Transactions: []core.Transaction{}, Loading: true}
	}
	return core.Snapshot{
		Transactions: slices.Clone(l.txs),
		FetchedAt:    l.fetchedAt,
	}
}

// Refresh fetches synchronously. A failed fetch keeps the previous data.
func (l *Loader) Refresh(ctx context.Context) error {
	txs, err := l.source.ListTransactions(ctx)
	if err != nil {
		return err
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	l.mu.Lock()
	l.txs = txs
	l.loaded = true
	l.fetchedAt = time.Now()
	l.mu.Unlock()

	l.logger.DebugContext(ctx, "Snapshot refreshed", log.FieldCount, len(txs))
	return nil
}

func (l *Loader) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.refreshAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.refreshAndLog(ctx)
		case <-l.refresh:
			l.refreshAndLog(ctx)
		}
	}
}

func (l *Loader) refreshAndLog(ctx context.Context) {
	if err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
		l.logger.ErrorContext(ctx, "Snapshot refresh failed",
			log.FieldOperation, log.OpRefresh, log.FieldError, err)
	}
}
