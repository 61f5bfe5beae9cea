// Package filters derives sorted and filtered views from transaction snapshots.
//
// Every function is pure: inputs are treated as read-only and results are
// freshly allocated slices, so callers may share a snapshot across goroutines.
package filters

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"finboard/internal/core"
	"finboard/internal/log"
)

// SortKey selects the ordering applied by SortBy.
type SortKey string

const (
	Latest  SortKey = "latest"
	Oldest  SortKey = "oldest"
	AToZ    SortKey = "aToZ"
	ZToA    SortKey = "zToA"
	Lowest  SortKey = "lowest"
	Highest SortKey = "highest"
)

// SortKeys lists the supported keys in menu order.
var SortKeys = []SortKey{Latest, Oldest, AToZ, ZToA, Lowest, Highest}

var sortLabels = map[SortKey]string{
	Latest:  "Latest",
	Oldest:  "Oldest",
	AToZ:    "A to Z",
	ZToA:    "Z to A",
	Lowest:  "Lowest",
	Highest: "Highest",
}

// Label returns the menu label for k, or the raw key if it is unknown.
func (k SortKey) Label() string {
	if l, ok := sortLabels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is one of the supported keys.
func (k SortKey) Valid() bool {
	_, ok := sortLabels[k]
	return ok
}

// ParseSortKey parses s strictly. Callers decide the fallback for unknown keys.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.TrimSpace(s))
	if !k.Valid() {
		return "", fmt.Errorf("unknown sort key %q", s)
	}
	return k, nil
}

// SortBy returns a stably sorted copy of txs.
//
// A nil txs is treated as invalid input: a diagnostic is logged and an empty
// slice is returned. An unknown key yields a copy in input order.
func SortBy(txs []core.Transaction, key SortKey) []core.Transaction {
	if txs == nil {
		log.Default(log.ComponentFilters).Warn("Expected a slice of transactions, got nil",
			log.FieldOperation, log.OpSort, log.FieldSortKey, string(key))
		return []core.Transaction{}
	}

	out := slices.Clone(txs)
	switch key {
	case Latest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int { return b.Date.Compare(a.Date) })
	case Oldest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int { return a.Date.Compare(b.Date) })
	case AToZ:
		c := newCollator()
		slices.SortStableFunc(out, func(a, b core.Transaction) int { return c.CompareString(a.Name, b.Name) })
	case ZToA:
		c := newCollator()
		slices.SortStableFunc(out, func(a, b core.Transaction) int { return c.CompareString(b.Name, a.Name) })
	case Lowest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int { return cmp.Compare(a.Amount.Cents, b.Amount.Cents) })
	case Highest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int { return cmp.Compare(b.Amount.Cents, a.Amount.Cents) })
	}
	return out
}

// collate.Collator keeps internal buffers and is not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.English)
}

// FilterByCategory keeps transactions whose category equals category exactly.
// The AllTransactions sentinel disables the filter.
func FilterByCategory(txs []core.Transaction, category string) []core.Transaction {
	if category == core.AllTransactions {
		return slices.Clone(txs)
	}
	return keep(txs, func(t core.Transaction) bool { return t.Category == category })
}

// FilterByRecurringBill keeps transactions flagged as recurring bills.
func FilterByRecurringBill(txs []core.Transaction) []core.Transaction {
	return keep(txs, func(t core.Transaction) bool { return t.RecurringBill })
}

// FilterByName keeps transactions whose lower-cased name starts with the
// lower-cased query. The empty query matches everything.
func FilterByName(txs []core.Transaction, query string) []core.Transaction {
	lower := cases.Lower(language.Und)
	prefix := lower.String(query)
	return keep(txs, func(t core.Transaction) bool {
		return strings.HasPrefix(lower.String(t.Name), prefix)
	})
}

// RecurringBillTotal sums the magnitude of every recurring bill amount.
func RecurringBillTotal(txs []core.Transaction) core.Money {
	var total core.Money
	for _, t := range txs {
		if t.RecurringBill {
			total = total.Add(t.Amount.Abs())
		}
	}
	return total
}

// Categories returns the distinct categories of txs in first-seen order.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	var out []string
	for _, t := range txs {
		if _, ok := seen[t.Category]; ok || t.Category == "" {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	return out
}

func keep(txs []core.Transaction, pred func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}
