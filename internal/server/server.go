// Package server provides the HTTP server and routing for the read-only
// query API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/cartera/internal/modules/holdings"
	"github.com/aristath/cartera/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/cartera/internal/modules/portfolio/handlers"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Service *portfolio.Service
	Engine  *holdings.Engine
	Port    int
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server with all routes registered
func New(cfg Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	portfoliohandlers.NewHandler(cfg.Service, cfg.Engine, cfg.Log).RegisterRoutes(r)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		router: r,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		log: cfg.Log.With().Str("component", "server").Logger(),
	}
}

// Router returns the chi router, used by tests to serve requests directly.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
