// Package server provides the HTTP server and routing for the stress engine.
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

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/di"
	optimizationhandlers "github.com/aristath/stresslab/internal/modules/optimization/handlers"
	riskhandlers "github.com/aristath/stresslab/internal/modules/risk/handlers"
	scenariohandlers "github.com/aristath/stresslab/internal/modules/scenarios/handlers"
	simulationhandlers "github.com/aristath/stresslab/internal/modules/simulation/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container
	Jobs      *di.JobInstances // optional; enables manual job triggers
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	port      int
	container *di.Container
	system    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		port:      cfg.Port,
		container: cfg.Container,
	}
	s.system = NewSystemHandlers(cfg.Container, cfg.Jobs, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// Simulations may legitimately run up to the engine timeout
	writeTimeout := 15 * time.Second
	if cfg.Config != nil && cfg.Config.Engine.RunTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.Config.Engine.RunTimeout + 5*time.Second
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.container.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// SSE must not sit behind the request timeout
		eventsStream := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout()))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.system.HandleSystemStatus)
				r.Post("/jobs/{name}", s.system.HandleTriggerJob)
			})

			simulationhandlers.NewHandler(s.container.Engine, s.log).RegisterRoutes(r)
			optimizationhandlers.NewHandler(s.container.Engine, s.log).RegisterRoutes(r)
			scenariohandlers.NewHandler(s.log).RegisterRoutes(r)
			riskhandlers.NewHandler(s.container.HistoryStore, s.log).RegisterRoutes(r)
		})
	})
}

func (s *Server) requestTimeout() time.Duration {
	timeout := 60 * time.Second
	if s.cfg != nil && s.cfg.Engine.RunTimeout+5*time.Second > timeout {
		timeout = s.cfg.Engine.RunTimeout + 5*time.Second
	}
	return timeout
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
