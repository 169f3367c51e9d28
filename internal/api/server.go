// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"mealplan-engine/internal/app"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the JSON API server.
type Server struct {
	app    *app.App
	logger *zap.Logger
	server *http.Server
	router *chi.Mux
	extra  map[string]http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithHandler mounts an extra handler, such as a bot webhook, at path.
func WithHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.extra[path] = h
	}
}

// NewServer creates a new API server listening on addr.
func NewServer(addr string, a *app.App, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		app:    a,
		logger: logger,
		extra:  make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(45 * time.Second))

	r.Get("/health", s.handleHealth)
	if c := s.app.Collector(); c != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	}

	r.Post("/targets", s.handleTargets)

	r.Route("/plans", func(r chi.Router) {
		r.Post("/", s.handleCreatePlan)
		r.Get("/", s.handleListPlans)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPlan)
			r.Delete("/", s.handleDeletePlan)
			r.Post("/status", s.handleTransition)
			r.Post("/regenerate", s.handleRegenerate)
			r.Get("/groceries", s.handleGroceries)
			r.Put("/groceries/purchased", s.handlePurchased)
			r.Get("/nutrition", s.handlePlanNutrition)
			r.Get("/progress", s.handleProgress)
		})
	})

	r.Post("/meals", s.handleLogMeal)
	r.Get("/nutrition", s.handleNutritionRange)
	r.Post("/recipes/clip", s.handleClip)

	for path, h := range s.extra {
		r.Method(http.MethodPost, path, h)
	}
	return r
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("API request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status_code", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
