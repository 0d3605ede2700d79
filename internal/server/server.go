// Package server provides the HTTP API for the rebalancing engine.
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

	"github.com/rebalancr/rebalancr/internal/config"
	"github.com/rebalancr/rebalancr/internal/database"
	"github.com/rebalancr/rebalancr/internal/events"
	"github.com/rebalancr/rebalancr/internal/modules/portfolio"
	"github.com/rebalancr/rebalancr/internal/modules/rebalancing"
	"github.com/rebalancr/rebalancr/internal/reliability"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	Portfolios  *portfolio.Service
	Rebalancer  *rebalancing.Service
	Backups     *reliability.BackupService // nil when backups are disabled
	Events      *events.Manager
	PortfolioDB *database.DB
	LedgerDB    *database.DB
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	cfg         *config.Config
	portfolios  *portfolio.Service
	rebalancer  *rebalancing.Service
	backups     *reliability.BackupService
	events      *events.Manager
	portfolioDB *database.DB
	ledgerDB    *database.DB
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Cfg,
		portfolios:  cfg.Portfolios,
		rebalancer:  cfg.Rebalancer,
		backups:     cfg.Backups,
		events:      cfg.Events,
		portfolioDB: cfg.PortfolioDB,
		ledgerDB:    cfg.LedgerDB,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // rebalance runs can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handleListPortfolios)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPortfolio)
				r.Post("/analyze", s.handleAnalyze)
				r.Post("/rebalance", s.handleRebalance)
				r.Post("/simulate", s.handleSimulate)
				r.Get("/events", s.handleGetEvents)
				r.Get("/status", s.handleStatus)
				r.Patch("/settings", s.handleUpdateSettings)
			})
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.handleSystemHealth)
			r.Get("/backups", s.handleListBackups)
		})

		r.Get("/events/ws", s.handleEventsWS)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
