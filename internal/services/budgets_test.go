package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
)

type fakeBudgets struct {
	budgets []core.Budget
	err     error
}

func (f fakeBudgets) ListBudgets(context.Context) ([]core.Budget, error) {
	return f.budgets, f.err
}

func spendTx(id, category string, cents int64, date time.Time) core.Transaction {
	return core.Transaction{ID: id, Name: id, Amount: core.Money{Cents: cents}, Date: date, Category: category}
}

func TestBudgetService_Spend(t *testing.T) {
	aug := func(d int) time.Time { return time.Date(2024, 8, d, 10, 0, 0, 0, time.UTC) }
	txs := []core.Transaction{
		spendTx("a", "Dining Out", -5550, aug(19)),
		spendTx("b", "Dining Out", -1200, aug(2)),
		spendTx("c", "Dining Out", 3000, aug(3)), // refund, not spending
		spendTx("d", "Dining Out", -900, time.Date(2024, 7, 30, 0, 0, 0, 0, time.UTC)),
		spendTx("e", "Dining Out", -100, aug(1)),
		spendTx("f", "Bills", -10000, aug(1)),
	}
	svc := NewBudgetService(staticSource{txs: txs}, fakeBudgets{budgets: []core.Budget{
		{Category: "Dining Out", Maximum: core.Money{Cents: 7500}},
		{Category: "Entertainment", Maximum: core.Money{Cents: 5000}},
	}})

	got, err := svc.Spend(context.Background(), 2024, time.August)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(6850), got[0].Spent.Cents)
	assert.Equal(t, int64(650), got[0].Remaining().Cents)
	require.Len(t, got[0].Latest, 3)
	assert.Equal(t, "a", got[0].Latest[0].ID)

	assert.Equal(t, int64(0), got[1].Spent.Cents)
	assert.Empty(t, got[1].Latest)
}

func TestBudgetService_SpendError(t *testing.T) {
	svc := NewBudgetService(staticSource{}, fakeBudgets{err: errors.New("db down")})
	_, err := svc.Spend(context.Background(), 2024, time.August)
	assert.ErrorContains(t, err, "list budgets")
}

func TestReferenceMonth(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	y, m := ReferenceMonth(nil, now)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.March, m)

	y, m = ReferenceMonth([]core.Transaction{
		spendTx("a", "x", -1, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)),
		spendTx("b", "x", -1, time.Date(2024, 8, 19, 0, 0, 0, 0, time.UTC)),
	}, now)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.August, m)
}
