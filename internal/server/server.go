// Package server provides the HTTP server and routing for the engine.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/evaluation"
	evaluationhandlers "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/evaluation/handlers"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	optimizationhandlers "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization/handlers"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/risk"
	riskhandlers "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/risk/handlers"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
	universehandlers "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe/handlers"
)

// Config holds everything the server needs to wire its routes.
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	CORSOrigins []string

	DB        *database.DB
	Bus       *events.Bus
	History   *universe.HistoryDB
	Validator *universe.PriceValidator
	Optimizer *optimization.Service
	Results   *optimization.ResultRepository
	Risk      *risk.Calculator
	Evaluator *evaluation.Evaluator
}

// Server represents the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	db             *database.DB
	bus            *events.Bus
	history        *universe.HistoryDB
	validator      *universe.PriceValidator
	optimizer      *optimization.Service
	results        *optimization.ResultRepository
	risk           *risk.Calculator
	evaluator      *evaluation.Evaluator
	systemHandlers *SystemHandlers
	eventsHandler  *EventsHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		db:             cfg.DB,
		bus:            cfg.Bus,
		history:        cfg.History,
		validator:      cfg.Validator,
		optimizer:      cfg.Optimizer,
		results:        cfg.Results,
		risk:           cfg.Risk,
		evaluator:      cfg.Evaluator,
		systemHandlers: NewSystemHandlers(cfg.DB, cfg.Log),
		eventsHandler:  NewEventsHandler(cfg.Bus, cfg.CORSOrigins, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode, cfg.CORSOrigins)
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

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool, corsOrigins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Liveness and system monitoring
		r.Get("/health", s.handleHealth)
		r.Get("/system/info", s.systemHandlers.HandleSystemInfo)

		// WebSocket event stream
		r.Get("/events/ws", s.eventsHandler.ServeHTTP)

		// Optimization module
		optimizationHandler := optimizationhandlers.NewHandler(s.optimizer, s.results, s.history, s.bus, s.log)
		optimizationHandler.RegisterRoutes(r)

		// Risk metrics module
		riskHandler := riskhandlers.NewHandler(s.risk, s.history, s.log)
		riskHandler.RegisterRoutes(r)

		// Evaluation module
		evaluationHandler := evaluationhandlers.NewHandler(s.evaluator, s.log)
		evaluationHandler.RegisterRoutes(r)

		// Universe module
		universeHandler := universehandlers.NewHandler(s.history, s.validator, s.bus, s.log)
		universeHandler.RegisterRoutes(r)
	})
}

// handleHealth handles health check requests. The database ping keeps the
// endpoint honest without paying for a full integrity check per probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check database ping failed")
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "portfolio-engine",
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
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
