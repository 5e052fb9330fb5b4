// Package server wires the chi router and owns the HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/build-sandbox/internal/auth"
	"github.com/sakif/build-sandbox/internal/handler"
	"github.com/sakif/build-sandbox/internal/middleware"
)

type Config struct {
	Port int
	// WriteTimeout bounds a synchronous POST /api/runs. A full pipeline
	// packages with Maven, so it is minutes rather than seconds.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Port: 8080, WriteTimeout: 15 * time.Minute}
}

type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New builds the router. tokens may be nil, which leaves the run routes
// open.
func New(cfg Config, runs handler.RunService, tokens *auth.TokenService, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(handler.NewRunHandler(runs, logger), tokens)
	return s
}

func (s *Server) setupRoutes(runs *handler.RunHandler, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", handler.HandleHealth)

	s.router.Route("/api/runs", func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.RequireAuth(tokens))
		}
		r.Post("/", runs.HandleSubmit)
		r.Get("/", runs.HandleList)
		r.Get("/stream", runs.HandleStream)
		r.Get("/{id}", runs.HandleGet)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully, giving
// in-flight requests 30 seconds.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
