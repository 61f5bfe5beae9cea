package http

import (
	"encoding/json"
	"net/http"
	"time"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/services"
)

type transactionJSON struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Category      string  `json:"category"`
	RecurringBill bool    `json:"recurringBill"`
	Avatar        string  `json:"avatar,omitempty"`
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:            tx.ID,
		Name:          tx.Name,
		Amount:        tx.Amount.Dollars(),
		Date:          tx.Date.UTC().Format(time.RFC3339),
		Category:      tx.Category,
		RecurringBill: tx.RecurringBill,
		Avatar:        tx.Avatar,
	}
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionJSON(tx)
	}
	return out
}

type potJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Target   float64 `json:"target"`
	Total    float64 `json:"total"`
	Theme    string  `json:"theme"`
	Progress float64 `json:"progress"`
}

func toPotJSON(p core.Pot) potJSON {
	return potJSON{
		ID:       p.ID,
		Name:     p.Name,
		Target:   p.Target.Dollars(),
		Total:    p.Total.Dollars(),
		Theme:    p.Theme,
		Progress: p.Progress(),
	}
}

type budgetJSON struct {
	Category string  `json:"category"`
	Maximum  float64 `json:"maximum"`
	Theme    string  `json:"theme"`
}

func toBudgetJSON(b core.Budget) budgetJSON {
	return budgetJSON{Category: b.Category, Maximum: b.Maximum.Dollars(), Theme: b.Theme}
}

type summaryJSON struct {
	PaidCount     int     `json:"paidCount"`
	PaidTotal     float64 `json:"paidTotal"`
	UpcomingCount int     `json:"upcomingCount"`
	UpcomingTotal float64 `json:"upcomingTotal"`
	DueSoonCount  int     `json:"dueSoonCount"`
	DueSoonTotal  float64 `json:"dueSoonTotal"`
}

type billJSON struct {
	transactionJSON
	Due    string              `json:"due"`
	Status services.BillStatus `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleAPITransactions returns the transactions page view as JSON.
func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot.Snapshot(r.Context())
	q := parseQuery(r)

	rows := []core.Transaction{}
	if !snap.Loading {
		rows = filters.Apply(snap.Transactions, q)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loading":      snap.Loading,
		"sort":         q.Sort,
		"category":     q.Category,
		"q":            q.Search,
		"transactions": toTransactionsJSON(rows),
	})
}

// handleAPIBills returns the recurring bills view with totals and summary.
func (s *Server) handleAPIBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := s.snapshot.Snapshot(ctx)
	if snap.Loading {
		writeJSON(w, http.StatusOK, map[string]any{"loading": true, "bills": []billJSON{}})
		return
	}

	q := parseQuery(r)
	bills := filters.Bills(snap.Transactions, q)
	statuses := s.bills.Statuses(bills, s.now())
	out := make([]billJSON, len(bills))
	for i, b := range bills {
		out[i] = billJSON{
			transactionJSON: toTransactionJSON(b),
			Due:             services.DueLabel(b),
			Status:          statuses[i],
		}
	}

	sum := s.billsSummary(ctx)
	writeJSON(w, http.StatusOK, map[string]any{
		"loading": false,
		"sort":    q.Sort,
		"q":       q.Search,
		"total":   filters.RecurringBillTotal(snap.Transactions).Dollars(),
		"summary": summaryJSON{
			PaidCount:     sum.PaidCount,
			PaidTotal:     sum.PaidTotal.Dollars(),
			UpcomingCount: sum.UpcomingCount,
			UpcomingTotal: sum.UpcomingTotal.Dollars(),
			DueSoonCount:  sum.DueSoonCount,
			DueSoonTotal:  sum.DueSoonTotal.Dollars(),
		},
		"bills": out,
	})
}
