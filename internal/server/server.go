// Package server provides the HTTP server of the dashboard API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohi-m/postgres-cluster-monitor/internal/config"
	"github.com/mohi-m/postgres-cluster-monitor/internal/converter"
	apierrors "github.com/mohi-m/postgres-cluster-monitor/internal/errors"
	"github.com/mohi-m/postgres-cluster-monitor/internal/handler"
	"github.com/mohi-m/postgres-cluster-monitor/internal/health"
	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/middleware"
	"github.com/mohi-m/postgres-cluster-monitor/internal/service"
	"github.com/mohi-m/postgres-cluster-monitor/internal/stream"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	streamer     *stream.ViewStreamer
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server serving dashboard.
func NewServer(cfg *config.Config, dashboard *service.DashboardService, m *metrics.Metrics, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	errorHandler := apierrors.NewHandler(logger)
	viewToHTTP := converter.NewViewToHTTP(cfg.Cluster.RoleLabels())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handler.NewHandlers(dashboard, viewToHTTP, errorHandler, logger, cfg.Cluster.RequestTimeout),
		healthCheck:  health.NewHealthCheck(dashboard, m, logger),
		streamer:     stream.NewViewStreamer(dashboard, viewToHTTP, cfg.CORS.AllowedOrigins, m, logger),
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	// Outer chain runs for every request, including unmatched routes
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.Logging(s.logger),
		middleware.CORS(s.cfg.CORS.AllowedOrigins),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.errorHandler,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	s.httpServer.Handler = middleware.Chain(middlewareChain...)(s.router)
	s.router.Use(metrics.MetricsMiddleware(s.metrics, routeTemplate))

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// Live view push, registered ahead of the v1 subrouter and outside its timeout
	s.router.Handle("/v1/view/stream", s.streamer).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.Timeout(s.cfg.Server.WriteTimeout))

	v1.HandleFunc("/view", s.handlers.GetView).Methods(http.MethodGet)

	// Node health
	v1.HandleFunc("/nodes", s.handlers.GetNodes).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/refresh", s.handlers.RefreshNodes).Methods(http.MethodPost)

	// Dataset
	v1.HandleFunc("/dataset", s.handlers.GetDataset).Methods(http.MethodGet)
	v1.HandleFunc("/dataset", s.handlers.FetchDataset).Methods(http.MethodPost)
	v1.HandleFunc("/dataset/presets", s.handlers.GetPresets).Methods(http.MethodGet)
	v1.HandleFunc("/dataset/presets/{limit}", s.handlers.FetchPreset).Methods(http.MethodPost)
	v1.HandleFunc("/dataset/chart", s.handlers.GetChart).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handlers.MethodNotAllowed)
}

// routeTemplate labels metrics with the matched route instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown marks the server not ready and gracefully shuts it down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.healthCheck.SetDraining(true)
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
