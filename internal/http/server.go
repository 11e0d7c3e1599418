package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Recurring    *services.RecurringService
	Processor    *services.RecurringProcessor
	Budgets      *services.BudgetService
	Rates        *services.RateService
	Settings     *services.SettingsService
	Tasks        *services.TaskService
	CSV          *services.CSVService
	Analytics    *services.AnalyticsService
}

// Options configures the server.
type Options struct {
	Addr           string
	APIPrefix      string
	CORSOrigins    []string
	RateLimitRPM   int
	TrustedProxies []string
	// RateBase is the default base currency for rate refreshes.
	RateBase string
	Logger   *applog.Logger
	// Ready reports whether dependencies (the database) are reachable.
	Ready func(ctx context.Context) error
	// Now is used for date defaults such as today's processing date.
	Now func() time.Time
}

type Server struct {
	http.Server

	svc        Services
	opts       Options
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	structured *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) (*Server, error) {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}
	opts.APIPrefix = "/" + strings.Trim(opts.APIPrefix, "/")
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:           opts.Addr,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		svc:        svc,
		opts:       opts,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:   detector,
		structured: applog.NewStructuredLogger(opts.Logger.WithComponent(applog.ComponentHTTP)),
	}
	s.Handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(trace.Middleware)
	r.Use(applog.AccessLog(s.structured, s.detector.ExtractClientIP, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.CORS(s.opts.CORSOrigins))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route(s.opts.APIPrefix, func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Get("/{id}", s.handleGetCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			// Older clients import and export under /transactions.
			r.Post("/import", s.handleImportCSV)
			r.Get("/export", s.handleExportCSV)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Route("/recurring-transactions", func(r chi.Router) {
			r.Get("/", s.handleListRecurring)
			r.Post("/", s.handleCreateRecurring)
			r.Get("/{id}", s.handleGetRecurring)
			r.Put("/{id}", s.handleUpdateRecurring)
			r.Delete("/{id}", s.handleDeleteRecurring)
		})
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgets)
			r.Post("/", s.handleCreateBudget)
			r.Get("/{id}", s.handleGetBudget)
			r.Put("/{id}", s.handleUpdateBudget)
			r.Delete("/{id}", s.handleDeleteBudget)
			r.Get("/{id}/progress", s.handleBudgetProgress)
		})
		r.Route("/currencies", func(r chi.Router) {
			r.Get("/", s.handleListCurrencies)
			r.Get("/exchange-rate", s.handleExchangeRate)
		})
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleListSettings)
			r.Get("/{key}", s.handleGetSetting)
			r.Put("/{key}", s.handleUpdateSetting)
		})
		r.Get("/tasks/{task_id}/status", s.handleTaskStatus)
		r.Route("/csv", func(r chi.Router) {
			r.Post("/import", s.handleImportCSV)
			r.Get("/export", s.handleExportCSV)
		})
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/trends", s.handleTrends)
			r.Get("/by-category", s.handleByCategory)
			r.Get("/top-categories", s.handleTopCategories)
		})
		r.Route("/admin/tasks", func(r chi.Router) {
			r.Post("/run-recurring", s.handleRunRecurring)
			r.Post("/refresh-rates", s.handleRefreshRates)
		})
	})

	return r
}

// Shutdown stops background helpers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.structured.LogError(r.Context(), "Readiness check failed", err, applog.ComponentStorage, "ready", nil)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
