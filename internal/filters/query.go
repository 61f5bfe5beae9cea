package filters

import "finboard/internal/core"

// Query describes one pass over a snapshot. The zero value means "all
// transactions, no search, input order".
type Query struct {
	Sort     SortKey
	Category string
	Search   string
}

// Apply runs the transactions-page pipeline: category, then name, then sort.
func Apply(txs []core.Transaction, q Query) []core.Transaction {
	out := txs
	if q.Category != "" {
		out = FilterByCategory(out, q.Category)
	}
	if q.Search != "" {
		out = FilterByName(out, q.Search)
	}
	return SortBy(nonNil(out), q.Sort)
}

// Bills runs the bills-page pipeline: recurring bills, then name, then sort.
// The category of q is ignored.
func Bills(txs []core.Transaction, q Query) []core.Transaction {
	out := FilterByRecurringBill(txs)
	if q.Search != "" {
		out = FilterByName(out, q.Search)
	}
	return SortBy(out, q.Sort)
}

func nonNil(txs []core.Transaction) []core.Transaction {
	if txs == nil {
		return []core.Transaction{}
	}
	return txs
}
