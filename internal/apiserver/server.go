package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/logsieve/logsieve/internal/api/handlers"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/mining"
	"github.com/logsieve/logsieve/internal/pipeline"
	"github.com/logsieve/logsieve/internal/stats"
	"github.com/logsieve/logsieve/internal/storage"
	"github.com/logsieve/logsieve/internal/tracing"
)

// Server handles HTTP API requests
type Server struct {
	port            int
	server          *http.Server
	router          *http.ServeMux
	logger          *logging.Logger
	limiter         *semaphore.Weighted
	tracingProvider *tracing.TracingProvider
}

// Options carries the collaborators and tunables for the API server.
type Options struct {
	Port                  int
	Processor             *pipeline.Processor
	Store                 storage.Storage
	Aggregator            *stats.Aggregator
	Miner                 *mining.Miner
	UploadDir             string
	MaxConcurrentRequests int
	Registry              *prometheus.Registry
	TracingProvider       *tracing.TracingProvider
}

// New creates a new API server wired to the ingestion pipeline and storage
func New(opts Options) *Server {
	s := &Server{
		port:            opts.Port,
		router:          http.NewServeMux(),
		logger:          logging.GetLogger("api"),
		tracingProvider: opts.TracingProvider,
	}
	if opts.MaxConcurrentRequests > 0 {
		s.limiter = semaphore.NewWeighted(int64(opts.MaxConcurrentRequests))
	}

	s.registerHandlers(opts)
	s.configureHTTPServer(opts.Port)
	return s
}

// registerHandlers registers all HTTP handlers
func (s *Server) registerHandlers(opts Options) {
	handlers.RegisterHandlers(
		s.router,
		opts.Processor,
		opts.Store,
		opts.Aggregator,
		opts.Miner,
		opts.UploadDir,
		s.logger,
		s.withMethod,
	)

	if opts.Registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}
}

// configureHTTPServer creates the HTTP server with middleware and timeouts
func (s *Server) configureHTTPServer(port int) {
	handler := s.corsMiddleware(s.traceMiddleware(s.limitMiddleware(s.router)))

	// Uploads can be large; reads and writes get generous timeouts.
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// Start implements the lifecycle.Component interface
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server on port %d", s.port)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server started and listening on port %d", s.port)
	return nil
}

// Stop implements the lifecycle.Component interface
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.logger.Info("API server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("API server shutdown timeout")
		return ctx.Err()
	}
}

// Name implements the lifecycle.Component interface
func (s *Server) Name() string {
	return "API Server"
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() int {
	return s.port
}

// Handler exposes the fully wired handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
