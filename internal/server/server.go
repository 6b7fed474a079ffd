package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/reframe/internal/config"
	"github.com/zsiec/reframe/internal/errors"
	"github.com/zsiec/reframe/internal/health"
	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/reframe/index"
)

// Server serves the probe and demux API over HTTP/1.1.
type Server struct {
	config       *config.Config
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Logger
	redis        *redis.Client
	store        index.Store
	admission    *Admission
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler

	// Additional handlers can be registered
	additionalRoutes []func(*mux.Router)
}

// New creates a server. A nil redisClient keeps demux indexes in memory.
func New(cfg *config.Config, log *logrus.Logger, redisClient *redis.Client) *Server {
	s := &Server{
		config:           cfg,
		router:           mux.NewRouter(),
		logger:           log,
		redis:            redisClient,
		admission:        NewAdmission(cfg.Server.MaxSessions, cfg.Server.DemuxRateLimit, cfg.Server.DemuxBurst),
		healthMgr:        health.NewManager(log),
		errorHandler:     errors.NewErrorHandler(log),
		additionalRoutes: make([]func(*mux.Router), 0),
	}

	if redisClient != nil {
		s.store = index.NewRedisStore(redisClient, log, cfg.IndexCache.KeyPrefix, cfg.IndexCache.TTL)
	} else {
		s.store = index.NewMemoryStore()
	}

	s.registerHealthCheckers()
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, 30*time.Second)

	s.logger.WithField("port", s.config.Server.HTTPPort).Info("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests for at most the configured timeout.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")

	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/probe", s.handleProbe).Methods("POST", "OPTIONS")
	api.Handle("/demux", s.admissionMiddleware(http.HandlerFunc(s.handleDemux))).Methods("POST", "OPTIONS")
	api.HandleFunc("/duration", s.handleDuration).Methods("POST", "OPTIONS")

	for _, registerFunc := range s.additionalRoutes {
		registerFunc(s.router)
	}

	notFound := http.HandlerFunc(s.errorHandler.HandleNotFound)
	notAllowed := http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
	// a subrouter swallows method mismatches unless it carries its own handlers
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = notAllowed
	s.router.NotFoundHandler = notFound
	s.router.MethodNotAllowedHandler = notAllowed
}

// registerHealthCheckers registers all health checkers
func (s *Server) registerHealthCheckers() {
	if s.redis != nil {
		s.healthMgr.Register(health.NewRedisChecker(s.redis))
	}
	s.healthMgr.Register(health.NewSessionChecker(s.admission))
}

// RegisterRoutes adds additional route handlers to the server
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, registerFunc)
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
