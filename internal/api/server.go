// Package api assembles the ledger HTTP server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/family-ledger/internal/api/handlers"
	"github.com/dvloznov/family-ledger/internal/api/middleware"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Store is the persistence the HTTP API needs.
type Store interface {
	handlers.TransactionStore
	handlers.CategoryStore
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	MaxUploadBytes int64
	SummaryDays    int
	PayeeUPI       string
	PayeeName      string
	Metrics        bool
	RequestTimeout time.Duration
}

// Server is the ledger HTTP API server.
type Server struct {
	store    Store
	importer handlers.Importer
	jobs     jobs.JobStore
	opts     Options
	now      func() time.Time
	log      zerolog.Logger
}

// NewServer creates a new API server. jobStore may be nil when no sync sinks
// are configured.
func NewServer(store Store, importer handlers.Importer, jobStore jobs.JobStore, opts Options, log zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	return &Server{
		store:    store,
		importer: importer,
		jobs:     jobStore,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// SetClock replaces the clock used by the summary endpoint.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(s.log))
	r.Use(middleware.Logger(s.log))
	r.Use(chimw.Timeout(s.opts.RequestTimeout))
	r.Use(middleware.CORS)

	r.Get("/health", s.handleHealth)

	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	upload := handlers.NewUploadHandler(s.importer, s.opts.MaxUploadBytes, s.log)
	transactions := handlers.NewTransactionsHandler(s.store, s.log)
	summary := handlers.NewSummaryHandler(s.store, s.opts.SummaryDays, s.opts.PayeeUPI, s.opts.PayeeName, s.log)
	summary.SetClock(s.now)
	categories := handlers.NewCategoriesHandler(s.store, s.log)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Post("/upload", upload.Upload)

		r.Get("/transactions", transactions.ListTransactions)
		r.Post("/transactions/archive", transactions.Archive)

		r.Get("/summary", summary.Summary)
		r.Post("/summary/mark-paid", summary.MarkPaid)

		r.Get("/categories", categories.ListCategories)
		r.Post("/categories", categories.CreateCategory)
		r.Delete("/categories/{id}", categories.DeleteCategory)

		r.Get("/rules", categories.ListRules)
		r.Post("/rules", categories.CreateRule)
		r.Post("/rules/test", categories.TestRules)
		r.Delete("/rules/{id}", categories.DeleteRule)

		if s.jobs != nil {
			jobsHandler := handlers.NewJobsHandler(s.jobs, s.log)
			r.Get("/jobs", jobsHandler.ListJobs)
			r.Get("/jobs/{id}", jobsHandler.GetJob)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("Health check failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, code, map[string]string{
		"status": status,
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}
