package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/ispasdani/k2ide/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	ingestion driving.IngestionService
	answers   driving.AnswerService
	documents driving.DocumentService
	auth      driven.Authenticator

	// Infrastructure checked by /ready, keyed by name
	dependencies map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// WriteTimeout bounds a response, including synchronous ingestion runs
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		Version:      "dev",
		WriteTimeout: 15 * time.Minute,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	ingestion driving.IngestionService,
	answers driving.AnswerService,
	documents driving.DocumentService,
	auth driven.Authenticator,
	dependencies map[string]Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		logger:       logger,
		ingestion:    ingestion,
		answers:      answers,
		documents:    documents,
		auth:         auth,
		dependencies: dependencies,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in recovery and request logging
func (s *Server) Handler() http.Handler {
	logging := NewLoggingMiddleware(s.logger)
	recovery := NewRecoveryMiddleware(s.logger)
	return recovery.Handler(logging.Handler(s.router))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Projects
	s.router.Handle("POST /api/v1/projects/{id}/ingest", protected(s.handleIngest))
	s.router.Handle("POST /api/v1/projects/{id}/ask", protected(s.handleAsk))
	s.router.Handle("GET /api/v1/projects/{id}", protected(s.handleProjectStatus))
	s.router.Handle("GET /api/v1/projects/{id}/documents", protected(s.handleListDocuments))
	s.router.Handle("DELETE /api/v1/projects/{id}", admin(s.handleDeleteProject))

	// Tasks
	s.router.Handle("GET /api/v1/tasks/{id}", protected(s.handleGetTask))

	// Documents
	s.router.Handle("GET /api/v1/documents/{id}", protected(s.handleGetDocument))
	s.router.Handle("DELETE /api/v1/documents/{id}", admin(s.handleDeleteDocument))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
