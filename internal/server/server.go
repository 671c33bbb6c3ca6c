// Package server exposes the nest service over a small JSON admin API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nestcore/docs/schema"
	"nestcore/docs/schema/openapi"
	"nestcore/internal/audit"
	"nestcore/internal/blob"
	"nestcore/internal/core"
	"nestcore/internal/logfields"
	"nestcore/internal/nest"
	"nestcore/internal/world"
	"nestcore/pkg/domain"
)

// Creatures is the live creature registry.
type Creatures interface {
	Get(id string) (domain.Creature, bool)
	List() []domain.Creature
	Add(c domain.Creature)
	Kill(id string) bool
}

// Profiles resolves the laying profile of a creature code.
type Profiles interface {
	Species(code string) (world.Species, bool)
}

// Deps are the collaborators the API serves. Only Service is required.
type Deps struct {
	Service   *core.Service
	Creatures Creatures
	Profiles  Profiles
	Archives  blob.Store
	Audit     *audit.Ring
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server represents the admin API server.
type Server struct {
	Addr   string
	router *chi.Mux
	server *http.Server
	deps   Deps
	logger *slog.Logger
}

// New creates a server listening on addr.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/nests", func(r chi.Router) {
		r.Get("/", s.handleListNests)
		r.Post("/", s.handlePlaceNest)
		r.Post("/load", s.handleLoadNests)
		r.Route("/{x},{y},{z}", func(r chi.Router) {
			r.Get("/", s.handleGetNest)
			r.Delete("/", s.handleRemoveNest)
			r.Post("/unload", s.handleUnloadNest)
			r.Post("/interact", s.handleInteract)
			r.Post("/eggs", s.handleLayEgg)
			r.Put("/occupier", s.handleSetOccupier)
		})
	})
	s.router.Route("/creatures", func(r chi.Router) {
		r.Get("/", s.handleListCreatures)
		r.Post("/", s.handleAddCreature)
		r.Delete("/{id}", s.handleKillCreature)
		r.Post("/{id}/claim", s.handleClaimNest)
	})
	s.router.Post("/tick", s.handleTick)

	s.router.Get("/archives", s.handleListArchives)
	s.router.Post("/archives", s.handleCreateArchive)
	s.router.Get("/archives/{name}", s.handleGetArchive)

	s.router.Get("/audit", s.handleAudit)
	s.router.Get("/openapi.yaml", s.handleOpenAPI)
	s.router.Get("/schema/archive.json", s.handleArchiveSchema)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics)
	}
	s.router.Handle("/debug/vars", expvar.Handler())
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("Admin API listening", slog.String("addr", s.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(ww.Status()),
			logfields.RequestID(middleware.GetReqID(r.Context())),
			logfields.DurationMS(float64(time.Since(start))/float64(time.Millisecond)),
		)
	})
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps service errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		notFound  core.ErrNotFound
		violation domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, nest.ErrNoBackingState), errors.Is(err, blob.ErrNotFound):
		s.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrUnknownBlock):
		s.Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &violation):
		s.Error(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", logfields.Error(err))
		s.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.Spec())
}

func (s *Server) handleArchiveSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(schema.ArchiveSchema())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, map[string]any{"status": "healthy", "nests": len(s.deps.Service.Nests())})
}
