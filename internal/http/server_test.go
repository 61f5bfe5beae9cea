package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/log"
)

type fakeSnapshot struct {
	mu        sync.Mutex
	snap      core.Snapshot
	refreshed int
}

func (f *fakeSnapshot) Snapshot(context.Context) core.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSnapshot) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return nil
}

type fakeRecorder struct {
	recorded []core.Transaction
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = "tx-new"
	f.recorded = append(f.recorded, tx)
	return tx, nil
}

type fakeStore struct {
	pots    []core.Pot
	budgets []core.Budget
}

func (f *fakeStore) ListPots(context.Context) ([]core.Pot, error)       { return f.pots, nil }
func (f *fakeStore) ListBudgets(context.Context) ([]core.Budget, error) { return f.budgets, nil }

func (f *fakeStore) SavePot(_ context.Context, p core.Pot) error {
	f.pots = append(f.pots, p)
	return nil
}

func (f *fakeStore) SaveBudget(_ context.Context, b core.Budget) error {
	f.budgets = append(f.budgets, b)
	return nil
}

func testDate(day int) time.Time {
	return time.Date(2024, time.August, day, 10, 0, 0, 0, time.UTC)
}

func testTransactions() []core.Transaction {
	return []core.Transaction{
		{ID: "1", Name: "Emma Richardson", Amount: core.Money{Cents: 7550}, Date: testDate(19), Category: "General"},
		{ID: "2", Name: "Savory Bites Bistro", Amount: core.Money{Cents: -5550}, Date: testDate(19), Category: "Dining Out"},
		{ID: "3", Name: "Spark Electric Solutions", Amount: core.Money{Cents: -10000}, Date: testDate(2), Category: "Bills", RecurringBill: true},
		{ID: "4", Name: "Serenity Spa", Amount: core.Money{Cents: -3000}, Date: testDate(23), Category: "Personal Care", RecurringBill: true},
	}
}

type testEnv struct {
	server   *Server
	snapshot *fakeSnapshot
	recorder *fakeRecorder
	store    *fakeStore
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		snapshot: &fakeSnapshot{snap: core.Snapshot{Transactions: testTransactions()}},
		recorder: &fakeRecorder{},
		store: &fakeStore{
			pots:    []core.Pot{{ID: "p1", Name: "Savings", Target: core.Money{Cents: 200000}, Total: core.Money{Cents: 15900}, Theme: "#277C78"}},
			budgets: []core.Budget{{Category: "Dining Out", Maximum: core.Money{Cents: 7500}, Theme: "#F2CDAC"}},
		},
	}
	cfg.Logger = log.New(log.Config{Output: io.Discard})
	s, err := NewServer(cfg, Deps{
		Snapshot: env.snapshot,
		Recorder: env.recorder,
		Pots:     env.store,
		Budgets:  env.store,
		Editor:   env.store,
	})
	require.NoError(t, err)
	s.now = func() time.Time { return testDate(20) }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	env.server = s
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestPagesRender(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"Overview", "Current Balance", "Savings", "Emma Richardson"}},
		{"/transactions", []string{"Transactions", "+ Add New Transaction", "Savory Bites Bistro", "Dining Out"}},
		{"/bills", []string{"Recurring Bills", "Spark Electric Solutions", "Monthly - 2nd", "$130.00"}},
		{"/pots", []string{"Pots", "+ Add New Pot", "Savings", "$2000.00"}},
		{"/budgets", []string{"Budgets", "+ Add New Budget", "Dining Out", "$55.50", "August 2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
			assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html"))

			body := rr.Body.String()
			for _, w := range tt.want {
				assert.Contains(t, body, w)
			}
		})
	}
}

func TestUnknownPathIs404(t *testing.T) {
	env := newTestEnv(t, Config{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoadingSnapshotShowsSpinner(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.snapshot.snap = core.Snapshot{Loading: true}

	for _, path := range []string{"/", "/transactions?sort=oldest", "/bills", "/budgets"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)

		body := rr.Body.String()
		assert.Contains(t, body, `class="spinner"`, path)
		assert.NotContains(t, body, `id="rows"`, "%s: rows must not render while loading", path)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"), "%s: loading page must not be cached", path)
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/transactions?sort=oldest", nil))
	assert.Contains(t, rr.Body.String(), `hx-get="/transactions?sort=oldest"`, "spinner should poll the requested URL")
}

func TestReadiness(t *testing.T) {
	env := newTestEnv(t, Config{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	env.snapshot.snap.Loading = true
	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "readyz while loading")

	env.snapshot.snap.Loading = false
	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	env.server.ready = func(context.Context) error { return errors.New("db down") }
	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "readyz with failing store")
}

func TestTransactionsQuery(t *testing.T) {
	env := newTestEnv(t, Config{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/transactions?category=Bills&q=spa", nil))
	assert.NotContains(t, rr.Body.String(), "Serenity Spa</td>", "category filter should exclude Personal Care rows")

	rr = env.do(httptest.NewRequest(http.MethodGet, "/transactions?q=ser", nil))
	body := rr.Body.String()
	assert.Contains(t, body, "Serenity Spa")
	assert.NotContains(t, body, "Emma Richardson</td>")
}

func TestParseQueryKeepsWhitespace(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/transactions?q=Coffee+&category=Dining+Out", nil)
	q := parseQuery(r)
	assert.Equal(t, "Coffee ", q.Search)
	assert.Equal(t, "Dining Out", q.Category)

	txs := []core.Transaction{
		{ID: "a", Name: "Coffee Shop", Date: testDate(1)},
		{ID: "b", Name: "Coffeehouse", Date: testDate(2)},
	}
	got := filters.FilterByName(txs, q.Search)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestAPITransactions(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name     string
		query    string
		wantSort string
		wantIDs  []string
	}{
		{"default sort is latest", "", "latest", []string{"4", "1", "2", "3"}},
		{"unknown sort falls back to latest", "sort=bogus", "latest", []string{"4", "1", "2", "3"}},
		{"highest", "sort=highest", "highest", []string{"1", "4", "2", "3"}},
		{"category", "category=" + url.QueryEscape("Dining Out"), "latest", []string{"2"}},
		{"search", "q=S&sort=aToZ", "aToZ", []string{"2", "4", "3"}},
		{"search prefix", "q=Spa", "latest", []string{"3"}},
		{"trailing space is part of the prefix", "q=Spa+", "latest", []string{}},
		{"search with inner space", "q=Savory+B", "latest", []string{"2"}},
		{"category is matched untrimmed", "category=Bills+", "latest", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/api/transactions?"+tt.query, nil))
			require.Equal(t, http.StatusOK, rr.Code)

			var got struct {
				Sort         string            `json:"sort"`
				Transactions []transactionJSON `json:"transactions"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tt.wantSort, got.Sort)

			ids := make([]string, len(got.Transactions))
			for i, tx := range got.Transactions {
				ids[i] = tx.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestAPIBills(t *testing.T) {
	env := newTestEnv(t, Config{DueSoonDays: 5})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/bills?sort=highest", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got struct {
		Total   float64     `json:"total"`
		Summary summaryJSON `json:"summary"`
		Bills   []billJSON  `json:"bills"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 130.0, got.Total)

	require.Len(t, got.Bills, 2)
	assert.Equal(t, "4", got.Bills[0].ID)
	assert.Equal(t, "dueSoon", string(got.Bills[0].Status))
	assert.Equal(t, "paid", string(got.Bills[1].Status))
	assert.Equal(t, "Monthly - 2nd", got.Bills[1].Due)
	assert.Equal(t, 1, got.Summary.PaidCount)
	assert.Equal(t, 1, got.Summary.DueSoonCount)
}

func TestRecordTransaction(t *testing.T) {
	t.Run("form post redirects", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		form := url.Values{"name": {"Coffee"}, "amount": {"4.50"}, "category": {"Dining Out"}, "date": {"2024-08-20"}}
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rr := env.do(req)
		require.Equal(t, http.StatusSeeOther, rr.Code, "body: %s", rr.Body.String())
		assert.Equal(t, "/transactions", rr.Header().Get("Location"))
		require.Len(t, env.recorder.recorded, 1)
		assert.Equal(t, int64(-450), env.recorder.recorded[0].Amount.Cents)
		assert.Equal(t, 1, env.snapshot.refreshed)
	})

	t.Run("json income returns 201", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		body := `{"name":"Salary","amount":"2500","category":"General","type":"income","recurring":false}`
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rr := env.do(req)
		require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

		var got transactionJSON
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "tx-new", got.ID)
		assert.Equal(t, 2500.0, got.Amount)
	})

	t.Run("htmx gets trigger", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		form := url.Values{"name": {"Coffee"}, "amount": {"4.50"}, "category": {"Dining Out"}}
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")

		rr := env.do(req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "transaction:recorded")
	})

	invalid := []struct {
		name string
		form url.Values
	}{
		{"missing amount", url.Values{"name": {"Coffee"}, "category": {"Dining Out"}}},
		{"zero amount", url.Values{"name": {"Coffee"}, "amount": {"0"}, "category": {"Dining Out"}}},
		{"negative amount", url.Values{"name": {"Coffee"}, "amount": {"-3"}, "category": {"Dining Out"}}},
		{"non-ASCII digits", url.Values{"name": {"Coffee"}, "amount": {"1.١٢"}, "category": {"Dining Out"}}},
		{"missing name", url.Values{"amount": {"3"}, "category": {"Dining Out"}}},
		{"missing category", url.Values{"name": {"Coffee"}, "amount": {"3"}}},
		{"bad date", url.Values{"name": {"Coffee"}, "amount": {"3"}, "category": {"x"}, "date": {"20/08/2024"}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rr := env.do(req)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			assert.Empty(t, env.recorder.recorded, "nothing should be recorded")
		})
	}

	t.Run("store failure is 500", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.recorder.err = errors.New("disk full")
		form := url.Values{"name": {"Coffee"}, "amount": {"4.50"}, "category": {"Dining Out"}}
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		assert.Equal(t, http.StatusInternalServerError, env.do(req).Code)
	})
}

func TestSavePotAndBudget(t *testing.T) {
	env := newTestEnv(t, Config{})

	form := url.Values{"name": {"Holiday"}, "target": {"1500"}, "theme": {"#82C9D7"}}
	req := httptest.NewRequest(http.MethodPost, "/pots", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusSeeOther, env.do(req).Code)

	last := env.store.pots[len(env.store.pots)-1]
	assert.Equal(t, "Holiday", last.Name)
	assert.Equal(t, int64(150000), last.Target.Cents)
	assert.NotEmpty(t, last.ID)

	form = url.Values{"category": {"Shopping"}, "maximum": {"200"}, "theme": {"javascript:alert(1)"}}
	req = httptest.NewRequest(http.MethodPost, "/budgets", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := env.do(req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "/budgets", rr.Header().Get("HX-Redirect"))
	b := env.store.budgets[len(env.store.budgets)-1]
	assert.Equal(t, "#696868", b.Theme, "unsafe theme should be replaced")

	req = httptest.NewRequest(http.MethodPost, "/pots", strings.NewReader(`{"name":"Car","target":"2000.50","total":"500","theme":"#277C78"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = env.do(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var pot map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pot))
	assert.Equal(t, "Car", pot["name"])
	assert.Equal(t, 2000.5, pot["target"])
	assert.Equal(t, 500.0, pot["total"])
	assert.Equal(t, "#277C78", pot["theme"])
	assert.NotEmpty(t, pot["id"])
	assert.NotContains(t, pot, "Target", "body uses the camelCase view")

	req = httptest.NewRequest(http.MethodPost, "/budgets", strings.NewReader(`{"category":"Bills","maximum":"750"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = env.do(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var budget map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &budget))
	assert.Equal(t, "Bills", budget["category"])
	assert.Equal(t, 750.0, budget["maximum"])

	form = url.Values{"name": {"Empty"}, "target": {"0"}}
	req = httptest.NewRequest(http.MethodPost, "/pots", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(req).Code, "zero target")
}

func TestPostRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 2})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader("name=a&amount=1&category=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return env.do(req)
	}
	for i := 0; i < 2; i++ {
		require.NotEqual(t, http.StatusTooManyRequests, post().Code, "request %d limited too early", i+1)
	}
	rr := post()
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = env.do(httptest.NewRequest(http.MethodGet, "/transactions", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "GET must not be rate limited")

	hits, _ := env.server.SecurityStats()
	assert.EqualValues(t, 1, hits)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, Config{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		assert.Equal(t, v, rr.Header().Get(k), k)
	}
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "https://unpkg.com")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"), "HSTS must not be sent over plain HTTP")
}

func TestSuspiciousRequestCounted(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(httptest.NewRequest(http.MethodGet, "/.env", nil))

	_, suspicious := env.server.SecurityStats()
	assert.EqualValues(t, 1, suspicious)
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "Overview"},
		{"", "Overview"},
		{"/transactions", "Transaction"},
		{"/pots", "Pot"},
		{"/budgets", "Budget"},
		{"/bills", "Bill"},
		{"/overview", "Overview"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageTitle(tt.path), "PageTitle(%q)", tt.path)
	}
}

func TestBackArrow(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/pots?from=link", nil)
	req.Header.Set("Referer", "http://example.com/?x=1")
	rr := env.do(req)
	assert.Contains(t, rr.Body.String(), `class="back" href="/?x=1"`, "same-host referer")

	req = httptest.NewRequest(http.MethodGet, "/pots?from=link", nil)
	req.Header.Set("Referer", "https://evil.test/phish")
	rr = env.do(req)
	assert.Contains(t, rr.Body.String(), `class="back" href="/"`, "foreign referer falls back to /")

	rr = env.do(httptest.NewRequest(http.MethodGet, "/pots", nil))
	assert.NotContains(t, rr.Body.String(), `class="back"`, "back arrow only shows when arriving from a link")
}

func TestCategoryOptionsKeepsUnknownSelection(t *testing.T) {
	opts := categoryOptions(testTransactions(), "Travel")
	require.NotEmpty(t, opts)
	assert.Equal(t, core.AllTransactions, opts[0].Name)

	last := opts[len(opts)-1]
	assert.Equal(t, "Travel", last.Name)
	assert.True(t, last.Selected)
}
