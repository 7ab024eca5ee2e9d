// Package api provides the HTTP API server for the clone service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mirrorlabs/siteclone/internal/api/handlers"
	"github.com/mirrorlabs/siteclone/internal/api/health"
	"github.com/mirrorlabs/siteclone/internal/api/middleware"
	"github.com/mirrorlabs/siteclone/internal/clone"
	"github.com/mirrorlabs/siteclone/internal/store"
	"github.com/mirrorlabs/siteclone/pkg/config"
	"github.com/mirrorlabs/siteclone/pkg/logger"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	controller    *clone.Controller
	redeployer    *clone.Redeployer
	config        *config.Config
	logger        *logger.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, controller *clone.Controller, redeployer *clone.Redeployer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		store:      st,
		controller: controller,
		redeployer: redeployer,
		config:     cfg,
		logger:     log,
	}

	var sandboxConfigured func() bool
	if redeployer != nil {
		sandboxConfigured = redeployer.SandboxAvailable
	}
	s.healthChecker = health.NewChecker(st, sandboxConfigured, Version)

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes. The clone
// and redeploy endpoints stream Server-Sent Events for the full run, so no
// global request timeout is applied; REST routes carry their own.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger.Logger))
	r.Use(middleware.CORS())

	// Health check endpoint
	r.Get("/health", s.healthChecker.Handler())

	cloneHandler := handlers.NewCloneHandler(s.store, s.controller, s.redeployer, s.logger)

	r.Route("/api", func(r chi.Router) {
		// Streaming routes: the response stays open for the whole run.
		r.Post("/clone", cloneHandler.Clone)
		r.Post("/clones/{cloneID}/redeploy", cloneHandler.Redeploy)

		// REST routes
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(30 * time.Second))
			r.Get("/clones", cloneHandler.List)
			r.Get("/clones/{cloneID}", cloneHandler.Get)
			r.Delete("/clones/{cloneID}", cloneHandler.Delete)
		})
	})

	s.router = r
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: clone runs stream events for minutes.
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
