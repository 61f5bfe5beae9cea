// Package http serves the dashboard pages, the JSON views and the forms that
// record new transactions, pots and budgets.
package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/ports"
	"finboard/internal/services"
	appweb "finboard/web"
)

// TransactionRecorder stores a new transaction and returns it with its id.
type TransactionRecorder interface {
	Record(ctx context.Context, tx core.Transaction) (core.Transaction, error)
}

// Config holds the server settings that do not come from collaborators.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	CacheTTL           time.Duration
	DueSoonDays        int
	Logger             *log.Logger
}

// Deps are the collaborators the handlers read from and write to.
// Editor and Ready are optional.
type Deps struct {
	Snapshot ports.SnapshotSource
	Recorder TransactionRecorder
	Pots     ports.PotLister
	Budgets  ports.BudgetLister
	Editor   ports.Seeder
	Ready    func(ctx context.Context) error
}

type Server struct {
	http.Server
	templates *template.Template

	snapshot ports.SnapshotSource
	recorder TransactionRecorder
	pots     ports.PotLister
	editor   ports.Seeder
	ready    func(ctx context.Context) error
	bills    *services.BillsService
	budgets  *services.BudgetService

	logger     *log.Logger
	requestLog *log.StructuredLogger
	limiter    *rateLimiter
	headers    headersConfig
	metrics    *securityMetrics

	caches      *cache.Manager
	billsCache  *cache.LRUCache[core.BillsSummary]
	budgetCache *cache.LRUCache[[]core.BudgetSpend]

	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and registers every route.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := cfg.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		templates:   t,
		snapshot:    deps.Snapshot,
		recorder:    deps.Recorder,
		pots:        deps.Pots,
		editor:      deps.Editor,
		ready:       deps.Ready,
		bills:       services.NewBillsService(deps.Snapshot, services.DayOfMonthClassifier{DueSoonWindow: cfg.DueSoonDays}),
		budgets:     services.NewBudgetService(deps.Snapshot, deps.Budgets),
		logger:      logger,
		requestLog:  log.NewStructuredLogger(logger),
		limiter:     newRateLimiter(cfg.RateLimitPerMinute),
		headers:     defaultHeadersConfig(),
		metrics:     &securityMetrics{},
		caches:      cache.NewManager(),
		billsCache:  cache.NewLRUCache[core.BillsSummary](24, cfg.CacheTTL),
		budgetCache: cache.NewLRUCache[[]core.BudgetSpend](24, cfg.CacheTTL),
		now:         time.Now,
	}
	s.caches.Register(s.billsCache)
	s.caches.Register(s.budgetCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleOverview)
	mux.HandleFunc("GET /transactions", s.handleTransactions)
	mux.HandleFunc("POST /transactions", s.handleRecordTransaction)
	mux.HandleFunc("GET /bills", s.handleBills)
	mux.HandleFunc("GET /pots", s.handlePots)
	mux.HandleFunc("POST /pots", s.handleSavePot)
	mux.HandleFunc("GET /budgets", s.handleBudgets)
	mux.HandleFunc("POST /budgets", s.handleSaveBudget)
	mux.HandleFunc("GET /api/transactions", s.handleAPITransactions)
	mux.HandleFunc("GET /api/bills", s.handleAPIBills)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// InvalidateCaches drops every cached derived view.
func (s *Server) InvalidateCaches() {
	s.caches.InvalidateAll()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady fails until the first snapshot has loaded and the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.snapshot.Snapshot(r.Context()).Loading {
		http.Error(w, "loading", http.StatusServiceUnavailable)
		return
	}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a page template into a buffer so a failing template never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// refreshSnapshot reloads the snapshot synchronously when the source allows it,
// so the redirect after a write shows the new row.
func (s *Server) refreshSnapshot(ctx context.Context) {
	refresher, ok := s.snapshot.(interface {
		Refresh(ctx context.Context) error
	})
	if !ok {
		return
	}
	if err := refresher.Refresh(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Snapshot refresh after write failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRefresh)
	}
}

func (s *Server) billsSummary(ctx context.Context) core.BillsSummary {
	now := s.now()
	key := cache.MonthKey("bills", now)
	if sum, ok := s.billsCache.Get(key); ok {
		return sum
	}
	sum := s.bills.Summary(ctx, now)
	s.billsCache.Set(key, sum)
	return sum
}

func (s *Server) budgetSpend(ctx context.Context, year int, month time.Month) ([]core.BudgetSpend, error) {
	key := cache.MonthKey("budgets", time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	if spend, ok := s.budgetCache.Get(key); ok {
		return spend, nil
	}
	spend, err := s.budgets.Spend(ctx, year, month)
	if err != nil {
		return nil, err
	}
	s.budgetCache.Set(key, spend)
	return spend, nil
}
