// Package server provides the HTTP server and routing for the store API.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-sync/internal/database"
	"github.com/aristath/portfolio-sync/internal/modules/accounts"
	accounthandlers "github.com/aristath/portfolio-sync/internal/modules/accounts/handlers"
	"github.com/aristath/portfolio-sync/internal/modules/dividends"
	dividendhandlers "github.com/aristath/portfolio-sync/internal/modules/dividends/handlers"
	"github.com/aristath/portfolio-sync/internal/modules/snapshots"
	snapshothandlers "github.com/aristath/portfolio-sync/internal/modules/snapshots/handlers"
)

// TokenHeader carries "Bearer <token>" on every store API request
const TokenHeader = "x-api-token"

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	StoreDB *database.DB
	Token   string
	Port    int
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	storeDB        *database.DB
	token          string
	port           int
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		storeDB:        cfg.StoreDB,
		token:          cfg.Token,
		port:           cfg.Port,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.StoreDB),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", TokenHeader},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check stays outside the token check
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	conn := s.storeDB.Conn()
	accountRepo := accounts.NewRepository(conn, s.log)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		accounthandlers.NewHandler(accountRepo, s.log).RegisterRoutes(r)
		dividendhandlers.NewHandler(dividends.NewRepository(conn, s.log), accountRepo, s.log).RegisterRoutes(r)
		snapshothandlers.NewHandler(snapshots.NewRepository(conn, s.log), accountRepo, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// authMiddleware rejects requests without the configured bearer token
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	expected := []byte(s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get(TokenHeader), "Bearer "))
		if s.token == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
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
