// Package api serves the optional admin endpoints: Prometheus metrics,
// liveness and readiness probes, and build information.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aaronlmathis/mesos-stats/internal/middleware"
	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
	"github.com/aaronlmathis/mesos-stats/internal/version"
)

// ReadinessCheck reports whether the collection loop is keeping up
type ReadinessCheck func() error

// Status is the body of /status
type Status struct {
	LastCycle   time.Time                 `json:"last_cycle"`
	LastOutcome string                    `json:"last_outcome"`
	Queue       timeseries.HealthSnapshot `json:"queue"`
}

// Options wires the server to the running agent. Nil fields disable the
// corresponding check or endpoint.
type Options struct {
	Ready  ReadinessCheck
	Status func() Status
}

// Server represents the admin HTTP server
type Server struct {
	logger     *zap.Logger
	addr       string
	router     chi.Router
	health     healthcheck.Handler
	httpServer *http.Server
	listener   net.Listener
	status     func() Status
}

// NewServer creates the admin server
func NewServer(logger *zap.Logger, addr string, opts Options) *Server {
	s := &Server{
		logger: logger,
		addr:   addr,
		router: chi.NewRouter(),
		health: healthcheck.NewHandler(),
		status: opts.Status,
	}

	s.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if opts.Ready != nil {
		s.health.AddReadinessCheck("collection-cycle", healthcheck.Check(opts.Ready))
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.RequestIDResponseMiddleware)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.PrometheusMiddleware)
	s.router.Use(chimw.Timeout(10 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.health.LiveEndpoint)
	s.router.Get("/readyz", s.health.ReadyEndpoint)
	s.router.Get("/version", s.handleVersion)
	if s.status != nil {
		s.router.Get("/status", s.handleStatus)
	}
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(version.Get()); err != nil {
		s.logger.Debug("Failed to write version response", zap.Error(err))
	}
}

// handleStatus reports the last cycle and the queue counters
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.status()

	code := http.StatusOK
	if !status.Queue.IsHealthy() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       status.Queue.GetStatus(),
		"last_cycle":   status.LastCycle,
		"last_outcome": status.LastOutcome,
		"queue":        status.Queue,
	}); err != nil {
		s.logger.Debug("Failed to write status response", zap.Error(err))
	}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Admin server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Admin server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping admin server")
	return s.httpServer.Shutdown(ctx)
}
