// Package server is the collector's HTTP surface: agents POST reports to it
// and operators list them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/errorvitals/internal/collector"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

const requestTimeout = 30 * time.Second

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

// Options configures New.
type Options struct {
	Port     int
	Logger   *slog.Logger
	Store    ports.ReportStore
	Ingestor *collector.Ingestor
	// Registry serves /metrics and receives the collector's counters. Nil
	// disables both.
	Registry *prometheus.Registry
	// APIKey protects POST /report when set.
	APIKey string
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("report store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ingestor := opts.Ingestor
	if ingestor == nil {
		ingestor = collector.NewIngestor(opts.Store, logger)
	}

	h, err := newHandlers(ingestor, opts.Store, opts.Registry)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "errorvitals-collector")
	})

	r.Get("/healthz", h.health)
	r.With(APIKeyMiddleware(opts.APIKey)).Post("/report", h.postReport)
	r.Get("/reports", h.listReports)
	r.Get("/reports/{report_id}", h.getReport)
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Start listens on Port and blocks until Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
