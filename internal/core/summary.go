package core

// BillsSummary aggregates recurring bills for the current month.
// Upcoming totals include the bills that are also due soon.
type BillsSummary struct {
	PaidCount     int
	PaidTotal     Money
	UpcomingCount int
	UpcomingTotal Money
	DueSoonCount  int
	DueSoonTotal  Money
}

// BudgetSpend is a budget together with what was spent against it in a month.
type BudgetSpend struct {
	Budget Budget
	Spent  Money
	Latest []Transaction
}

// Remaining returns the unspent part of the budget, never below zero.
func (b BudgetSpend) Remaining() Money {
	left := b.Budget.Maximum.Cents - b.Spent.Cents
	if left < 0 {
		left = 0
	}
	return Money{Cents: left}
}
