package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/monitor"
	"github.com/t77yq/macroflow/internal/queue"
	"github.com/t77yq/macroflow/internal/registry"
	"github.com/t77yq/macroflow/internal/storage"
)

// Server is the boundary surface of the engine. Every operation either
// answers from the registry/store or enqueues work and acknowledges
// immediately; nothing on the request path waits for an execution.
type Server struct {
	logger   *zap.Logger
	registry *registry.Registry
	queue    *queue.Queue
	jobs     *storage.JobStore
	history  *storage.ExecutionHistory
	metrics  *monitor.MetricsCollector
	router   chi.Router
}

// NewServer creates a new API server.
func NewServer(logger *zap.Logger, reg *registry.Registry, q *queue.Queue, jobs *storage.JobStore, history *storage.ExecutionHistory, metrics *monitor.MetricsCollector) *Server {
	s := &Server{
		logger:   logger.Named("api"),
		registry: reg,
		queue:    q,
		jobs:     jobs,
		history:  history,
		metrics:  metrics,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.HealthCheck)

	r.Get("/api/macros", s.ListMacros)
	r.Post("/api/macros", s.CreateMacro)
	r.Post("/api/macros/{name}/run", s.RunMacro)

	r.Post("/api/execute", s.ExecuteNow)
	r.Post("/api/schedule", s.ScheduleCommand)

	r.Get("/api/history", s.ListHistory)
}

// Router returns the chi router for use with http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}
