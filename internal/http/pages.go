package http

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/log"
	"finboard/internal/services"
)

const (
	overviewRecent = 5
	overviewPots   = 4
)

type overviewData struct {
	Balance   core.Money
	Income    core.Money
	Expenses  core.Money
	PotsTotal core.Money
	Pots      []core.Pot
	Recent    []core.Transaction
	Budgets   []core.BudgetSpend
	Bills     core.BillsSummary
}

type transactionsData struct {
	Query      filters.Query
	Sorts      []sortOption
	Categories []categoryOption
	Rows       []core.Transaction
}

type billRow struct {
	Tx     core.Transaction
	Status services.BillStatus
}

type billsData struct {
	Total   core.Money
	Summary core.BillsSummary
	Query   filters.Query
	Sorts   []sortOption
	Rows    []billRow
}

type potsData struct {
	Pots []core.Pot
}

type budgetsData struct {
	Year    int
	Month   string
	Budgets []core.BudgetSpend
	Total   core.Money
	Spent   core.Money
}

// renderLoading serves the spinner page, which polls the same URL until the
// snapshot is ready.
func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request, heading string) {
	p := newPage(r, heading, nil)
	p.Loading = true
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, r, "page_loading.html", p)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := s.snapshot.Snapshot(ctx)
	if snap.Loading {
		s.renderLoading(w, r, "Overview")
		return
	}

	data := overviewData{}
	for _, tx := range snap.Transactions {
		data.Balance = data.Balance.Add(tx.Amount)
		if tx.IsExpense() {
			data.Expenses = data.Expenses.Add(tx.Amount.Abs())
		} else {
			data.Income = data.Income.Add(tx.Amount)
		}
	}
	recent := filters.SortBy(snap.Transactions, filters.Latest)
	if len(recent) > overviewRecent {
		recent = recent[:overviewRecent]
	}
	data.Recent = recent

	year, month := services.ReferenceMonth(snap.Transactions, s.now())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pots, err := s.pots.ListPots(gctx)
		if err != nil {
			return err
		}
		for _, p := range pots {
			data.PotsTotal = data.PotsTotal.Add(p.Total)
		}
		if len(pots) > overviewPots {
			pots = pots[:overviewPots]
		}
		data.Pots = pots
		return nil
	})
	g.Go(func() error {
		spend, err := s.budgetSpend(gctx, year, month)
		data.Budgets = spend
		return err
	})
	g.Go(func() error {
		data.Bills = s.billsSummary(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Overview load failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRead)
		http.Error(w, "failed to load overview", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "overview.html", newPage(r, "Overview", data))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot.Snapshot(r.Context())
	if snap.Loading {
		s.renderLoading(w, r, "Transactions")
		return
	}

	q := parseQuery(r)
	data := transactionsData{
		Query:      q,
		Sorts:      sortOptions(q.Sort),
		Categories: categoryOptions(snap.Transactions, q.Category),
		Rows:       filters.Apply(snap.Transactions, q),
	}
	s.render(w, r, "transactions.html", newPage(r, "Transactions", data))
}

func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := s.snapshot.Snapshot(ctx)
	if snap.Loading {
		s.renderLoading(w, r, "Recurring Bills")
		return
	}

	q := parseQuery(r)
	bills := filters.Bills(snap.Transactions, q)
	statuses := s.bills.Statuses(bills, s.now())
	rows := make([]billRow, len(bills))
	for i, b := range bills {
		rows[i] = billRow{Tx: b, Status: statuses[i]}
	}

	data := billsData{
		Total:   filters.RecurringBillTotal(snap.Transactions),
		Summary: s.billsSummary(ctx),
		Query:   q,
		Sorts:   sortOptions(q.Sort),
		Rows:    rows,
	}
	s.render(w, r, "bills.html", newPage(r, "Recurring Bills", data))
}

func (s *Server) handlePots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pots, err := s.pots.ListPots(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "List pots failed", log.FieldError, err, log.FieldOperation, log.OpList)
		http.Error(w, "failed to load pots", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "pots.html", newPage(r, "Pots", potsData{Pots: pots}))
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := s.snapshot.Snapshot(ctx)
	if snap.Loading {
		s.renderLoading(w, r, "Budgets")
		return
	}

	year, month := services.ReferenceMonth(snap.Transactions, s.now())
	params := ParseMonthParams(r.URL.Query(), year, int(month))

	spend, err := s.budgetSpend(ctx, params.Year, params.Month)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Budget spend failed", log.FieldError, err, log.FieldOperation, log.OpRead)
		http.Error(w, "failed to load budgets", http.StatusInternalServerError)
		return
	}

	data := budgetsData{
		Year:    params.Year,
		Month:   params.Month.String(),
		Budgets: spend,
	}
	for _, b := range spend {
		data.Total = data.Total.Add(b.Budget.Maximum)
		data.Spent = data.Spent.Add(b.Spent)
	}
	s.render(w, r, "budgets.html", newPage(r, "Budgets", data))
}

// wantsJSON reports whether the client asked for JSON rather than HTML.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
