// Package api provides the REST API for flowd.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flowforge/flowd/internal/config"
	"github.com/flowforge/flowd/internal/facade"
)

// Server serves the HTTP surface over a Facade.
type Server struct {
	cfg    *config.Config
	router chi.Router
	svc    *facade.Facade

	// shuttingDown closes the instant graceful shutdown begins; long-running
	// handlers (none currently, but kept for symmetry with the daemon's
	// broadcast) can select on it to stop starting new work.
	shuttingDown <-chan struct{}
}

// NewServer builds a Server backed by svc.
func NewServer(cfg *config.Config, svc *facade.Facade, shuttingDown <-chan struct{}) *Server {
	s := &Server{cfg: cfg, svc: svc, shuttingDown: shuttingDown}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/packages", func(r chi.Router) {
			r.Get("/", s.handleListPackages)
			r.Get("/{name}", s.handleGetPackage)
			r.Post("/", s.handleAddPackage)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Delete("/", s.handleDeleteProject)
				r.Put("/flow", s.handleUpdateFlow)
				r.Post("/compile", s.handleCompile)
				r.Get("/last_compile", s.handleLastCompile)
				r.Post("/run", s.handleRun)
			})
		})

		r.Route("/processes", func(r chi.Router) {
			r.Post("/{id}/stop", s.handleStopProcess)
			r.Get("/{id}/logs", s.handleProcessLogs)
		})
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
