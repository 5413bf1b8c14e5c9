// Package api is the HTTP and WebSocket surface of the Parlando server.
// REST endpoints manage sessions and expose score history; the WebSocket
// endpoint carries the live session: microphone audio up, synthesised
// audio, transcripts, score updates, and level changes down.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parlando-ai/parlando/internal/app"
	"github.com/parlando-ai/parlando/internal/health"
	"github.com/parlando-ai/parlando/internal/history"
	"github.com/parlando-ai/parlando/internal/observe"
)

// apiTimeout bounds every REST request. The WebSocket route is exempt:
// live sessions run for as long as the learner keeps talking.
const apiTimeout = 30 * time.Second

// Server routes HTTP traffic to the session manager and the stores.
type Server struct {
	manager *app.Manager
	store   history.Store
	health  *health.Handler
	metrics *observe.Metrics
	router  *chi.Mux
}

// ServerConfig holds the Server's dependencies. Manager is required;
// History may be nil (history endpoints then report the feature as
// unavailable), Health and Metrics fall back to defaults.
type ServerConfig struct {
	Manager *app.Manager
	History history.Store
	Health  *health.Handler
	Metrics *observe.Metrics
}

// NewServer creates a Server and builds its router.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		manager: cfg.Manager,
		store:   cfg.History,
		health:  cfg.Health,
		metrics: cfg.Metrics,
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.setupRouter()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleEndSession)
		r.Get("/history", s.handleHistory)
	})

	r.Get("/ws", s.handleWebSocket)

	s.router = r
}
