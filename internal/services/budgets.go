package services

import (
	"context"
	"fmt"
	"time"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/ports"
)

const latestPerBudget = 3

// BudgetService computes what was spent against each budget in a month.
type BudgetService struct {
	source  ports.SnapshotSource
	budgets ports.BudgetLister
}

func NewBudgetService(source ports.SnapshotSource, budgets ports.BudgetLister) *BudgetService {
	return &BudgetService{source: source, budgets: budgets}
}

// Spend returns one entry per budget, in the order the store lists them.
// Spent sums outgoing amounts of the budget's category dated in the given
// month. Latest holds the most recent transactions of the category.
func (s *BudgetService) Spend(ctx context.Context, year int, month time.Month) ([]core.BudgetSpend, error) {
	budgets, err := s.budgets.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	txs := s.source.Snapshot(ctx).Transactions

	out := make([]core.BudgetSpend, 0, len(budgets))
	for _, b := range budgets {
		inCategory := filters.FilterByCategory(txs, b.Category)
		spend := core.BudgetSpend{Budget: b}
		for _, tx := range inCategory {
			if tx.Amount.Cents < 0 && tx.Date.Year() == year && tx.Date.Month() == month {
				spend.Spent = spend.Spent.Add(tx.Amount.Abs())
			}
		}
		latest := filters.SortBy(inCategory, filters.Latest)
		if len(latest) > latestPerBudget {
			latest = latest[:latestPerBudget]
		}
		spend.Latest = latest
		out = append(out, spend)
	}
	return out, nil
}

// ReferenceMonth is the month of the most recent transaction, or now's month
// when there are none. Dashboards over imported history read "this month"
// relative to the data rather than the wall clock.
func ReferenceMonth(txs []core.Transaction, now time.Time) (int, time.Month) {
	var latest time.Time
	for _, tx := range txs {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	if latest.IsZero() {
		latest = now
	}
	return latest.Year(), latest.Month()
}
