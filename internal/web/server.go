package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/prometheus"
	"github.com/emiliopalmerini/lostfound-admin/internal/service"
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// APIToken, when non-empty, is required as a bearer token on /api routes.
	APIToken    string
	IngestRate  float64
	IngestBurst int
}

type Server struct {
	svc           *service.Service
	router        *http.ServeMux
	handler       http.Handler
	cfg           Config
	logger        *slog.Logger
	metrics       *prometheus.Metrics
	ingestLimiter *rate.Limiter
}

func NewServer(svc *service.Service, cfg Config, metrics *prometheus.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = prometheus.New()
	}
	limit := rate.Inf
	if cfg.IngestRate > 0 {
		limit = rate.Limit(cfg.IngestRate)
	}
	burst := cfg.IngestBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		svc:           svc,
		router:        http.NewServeMux(),
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		ingestLimiter: rate.NewLimiter(limit, burst),
	}
	s.setupRoutes()
	s.handler = s.withRequestLogging(s.withMetrics(s.router))
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("GET /metrics", s.metrics.Handler())

	// Experiments
	s.router.Handle("GET /api/experiments", s.api(s.handleListExperiments))
	s.router.Handle("POST /api/experiments", s.api(s.handleCreateExperiment))
	s.router.Handle("GET /api/experiments/{id}", s.api(s.handleGetExperiment))
	s.router.Handle("PUT /api/experiments/{id}", s.api(s.handleUpdateExperimentStatus))
	s.router.Handle("DELETE /api/experiments/{id}", s.api(s.handleDeleteExperiment))

	// Lifecycle
	s.router.Handle("GET /api/experiments/{id}/actions", s.api(s.handleAvailableActions))
	s.router.Handle("POST /api/experiments/{id}/actions/{action}", s.api(s.handleApplyAction))

	// Assignment, ingestion and results
	s.router.Handle("GET /api/experiments/{id}/assignment", s.api(s.handleAssign))
	s.router.Handle("POST /api/experiments/{id}/events", s.api(s.withIngestLimit(s.handleIngest)))
	s.router.Handle("GET /api/experiments/{id}/results", s.api(s.handleResults))
	s.router.Handle("GET /api/experiments/{id}/results/archived", s.api(s.handleArchivedResults))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", slog.String("addr", s.cfg.Addr))

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil // Graceful shutdown
	}
	return err
}
