// Package httpserver provides the HTTP REST surface of the literature
// review service: starting runs, polling their state, and streaming
// progress.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scriptoria/litreview/internal/domain"
)

// Runner executes one review request end to end. Implemented by
// pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req domain.ReviewRequest) (*domain.ReviewResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxTopicLength bounds the accepted topic length.
	MaxTopicLength int

	// RunTimeout bounds the background run started for each request.
	RunTimeout time.Duration
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	runner         Runner
	registry       *Registry
	metricsHandler http.Handler
	validate       *validator.Validate
	config         Config
	logger         zerolog.Logger
}

// NewServer creates the HTTP server. metricsHandler serves GET /metrics;
// pass promhttp.Handler() in production.
func NewServer(cfg Config, runner Runner, registry *Registry, metricsHandler http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		runner:         runner,
		registry:       registry,
		metricsHandler: metricsHandler,
		validate:       validator.New(),
		config:         cfg,
		logger:         logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		// SSE streams stay open indefinitely; WriteTimeout would sever them.
		WriteTimeout: 0,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	r.Get("/healthz", s.healthHandler)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.Route("/literature-reviews", func(r chi.Router) {
		r.Post("/", s.startReview)
		r.Get("/{runID}", s.getReview)
		r.Get("/{runID}/events", s.streamEvents)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns liveness status. There is no backing store to
// probe; a responding process is a healthy one.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
