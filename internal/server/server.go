// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer that connects handlers, middleware, and routes.
// It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server creates:
//
//	config → sqldb.DB, auth.SecretVerifier, *slog.Logger → server.New
//
// server.New then builds:
//
//	sqldb.DB → SubscriberService → SubscribeHandler
//	         → AdminService (+ verifier) → AdminHandler
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/heyfriend/landing/internal/auth"
	"github.com/heyfriend/landing/internal/handler"
	"github.com/heyfriend/landing/internal/middleware"
	"github.com/heyfriend/landing/internal/repository/sqldb"
	"github.com/heyfriend/landing/internal/service"
	"github.com/heyfriend/landing/web"
)

// Config holds HTTP server configuration.
type Config struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection pool. When Start returns, the
// pool is closed, which for SQLite checkpoints the WAL and releases the
// file lock.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqldb.DB
	verifier *auth.SecretVerifier
}

// New creates a new Server and wires every route.
func New(cfg Config, db *sqldb.DB, verifier *auth.SecretVerifier, logger *slog.Logger) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: database is required")
	}
	if verifier == nil {
		return nil, errors.New("server: admin secret verifier is required")
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		verifier: verifier,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                      → Landing page with the waitlist form
// GET    /privacy               → Privacy policy
// GET    /admin/emails          → Admin page (asks for the password)
// GET    /static/*              → Embedded CSS and JS
// GET    /healthz               → Database ping
// POST   /api/subscribe         → Join the waitlist
// GET    /api/admin/emails      → List (X-Admin-Password header)
// POST   /api/admin/emails      → List ({"password"} body)
// DELETE /api/admin/emails      → Delete ({"password","id"} body)
// GET    /api/admin/emails.csv  → CSV export (X-Admin-Password header)
// GET    /api/admin/debug       → Secret diagnostics, 404 in production
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns an xid to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: only when allowed origins are configured
func (s *Server) setupRoutes() error {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", handler.PasswordHeader, middleware.RequestIDHeader},
			ExposedHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	// === Static Files ===
	// web.FS is rooted above static/, so GET /static/app.css serves static/app.css.
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return fmt.Errorf("opening embedded static files: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// === Page Routes ===
	pages, err := handler.NewPagesHandler(web.FS, s.logger)
	if err != nil {
		return fmt.Errorf("creating pages handler: %w", err)
	}
	s.router.Get("/", pages.HandleLanding)
	s.router.Get("/privacy", pages.HandlePrivacy)
	s.router.Get("/admin/emails", pages.HandleAdmin)

	health := handler.NewHealthHandler(s.db, s.logger)
	s.router.Get("/healthz", health.HandleHealth)

	// === API Routes ===
	// DEPENDENCY CHAIN:
	//   s.db (sqldb.DB) implements repository.SubscriberRepository
	//   the services receive the repository interface
	//   the handlers receive the services through small interfaces
	subscriberService := service.NewSubscriberService(s.db, s.logger)
	adminService := service.NewAdminService(subscriberService, s.db, s.verifier, s.logger)

	subscribeHandler := handler.NewSubscribeHandler(subscriberService, s.logger)
	adminHandler := handler.NewAdminHandler(adminService, handler.DebugInfo{
		Environment:  s.config.Environment,
		SecretSource: s.verifier.Source(),
	}, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", subscribeHandler.HandleSubscribe)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/emails", adminHandler.HandleListGet)
			r.Post("/emails", adminHandler.HandleListPost)
			r.Delete("/emails", adminHandler.HandleDelete)
			r.Get("/emails.csv", adminHandler.HandleExport)
			r.Get("/debug", adminHandler.HandleDebug)
		})
	})

	return nil
}

// Start serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (ShutdownTimeout)
// 3. Close the database pool
//
// The `defer s.db.Close()` ensures step 3 happens on every return path.
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.db.Close(); err != nil {
			s.logger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(s.config.Port)),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.db.Backend()),
			slog.String("environment", s.config.Environment),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	case <-ctx.Done():
		s.logger.Info("shutdown requested", slog.String("reason", ctx.Err().Error()))
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
