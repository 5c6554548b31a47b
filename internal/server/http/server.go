// Package httpserver exposes search, fetch and recommendation over a JSON REST API.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/database"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/recommend"
	"github.com/helixir/scholar-aggregator/internal/search"
)

// PaperService is the orchestrator surface the API serves.
type PaperService interface {
	Search(ctx context.Context, query string, sources []string, limit int) ([]*domain.Paper, error)
	Fetch(ctx context.Context, identifier, source string) (*domain.Paper, error)
	BatchFetch(ctx context.Context, ids []string) ([]*domain.Paper, error)
	AvailableSources() []string
}

// AdvancedSearcher runs parsed, filtered and ranked searches.
type AdvancedSearcher interface {
	AdvancedSearch(ctx context.Context, req search.Request) (*search.Response, error)
}

// Recommender produces recommendation batches.
type Recommender interface {
	GetRecommendations(ctx context.Context, req recommend.Request) (*recommend.Response, error)
}

// HealthChecker reports the health of a backing store. *database.DB implements it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	papers      PaperService
	advanced    AdvancedSearcher
	recommender Recommender
	db          HealthChecker
	validate    *validator.Validate
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Dependencies are the services behind the routes. DB is optional and is
// only set when the cache is Postgres-backed.
type Dependencies struct {
	Papers      PaperService
	Advanced    AdvancedSearcher
	Recommender Recommender
	DB          HealthChecker
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	s := &Server{
		papers:      deps.Papers,
		advanced:    deps.Advanced,
		recommender: deps.Recommender,
		db:          deps.DB,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", s.listSources)
		r.Get("/search", s.searchPapers)
		r.Post("/search/advanced", s.advancedSearch)
		r.Post("/search/parse", s.parseQuery)
		r.Get("/papers/{id}", s.fetchPaper)
		r.Post("/papers/batch", s.batchFetch)
		r.Post("/recommendations", s.getRecommendations)
		r.Post("/recommendations/evaluate", s.evaluateRecommendations)
	})

	return r
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns liveness, including the database when one is wired.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Healthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler is ready once at least one provider is registered.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	sources := s.papers.AvailableSources()
	if len(sources) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"sources": sources,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"sources": sources,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode failure is the client's problem.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
