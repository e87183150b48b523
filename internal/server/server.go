// Package server provides the HTTP server and routing for FinFolio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/finfolio/internal/di"
	portfoliohandlers "github.com/aristath/finfolio/internal/modules/portfolio/handlers"
	watchlisthandlers "github.com/aristath/finfolio/internal/modules/watchlist/handlers"
)

const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	DataDir        string
	AllowedOrigins []string
	Container      *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	port      int
	container *di.Container
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		container: cfg.Container,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes(cfg)

	// No WriteTimeout: websocket streams outlive any fixed deadline.
	// REST routes are bounded by the Timeout middleware instead.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: !containsWildcard(allowedOrigins),
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes(cfg Config) {
	c := s.container

	portfolioHandler := portfoliohandlers.NewHandler(c.PositionStore, c.ValuationEngine, cfg.Log)
	watchlistHandler := watchlisthandlers.NewHandler(c.WatchlistService, c.Synchronizer, originPatterns(cfg.AllowedOrigins), cfg.Log)
	stocksHandlers := NewStocksHandlers(c.QuoteCache, c.AlphaVantageClient, c.Suggester, cfg.Log)

	var backups BackupLister
	if c.BackupService != nil {
		backups = c.BackupService
	}
	systemHandlers := NewSystemHandlers(SystemDeps{
		DataDir:   cfg.DataDir,
		Databases: c.Databases(),
		Budget:    c.AlphaVantageClient,
		Jobs:      c.Scheduler,
		Quotes:    c.QuoteCache,
		Views:     c.Synchronizer,
		Backups:   backups,
	}, cfg.Log)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Request/response routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			if !cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			portfolioHandler.RegisterRoutes(r)
			watchlistHandler.RegisterRoutes(r)
			stocksHandlers.RegisterRoutes(r)
			systemHandlers.RegisterRoutes(r)
		})

		// Streaming routes
		watchlistHandler.RegisterStreamRoutes(r)
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// originPatterns turns CORS origins into websocket host patterns
func originPatterns(origins []string) []string {
	if containsWildcard(origins) {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
