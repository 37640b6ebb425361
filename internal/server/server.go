package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/store"
)

// maxBodyBytes caps activity uploads.
const maxBodyBytes = 16 << 20

// Reloader re-reads the catalog from its source.
type Reloader interface {
	Reload() error
}

// Options configures a Server.
type Options struct {
	Version       string
	DefaultWindow engine.Window
	Log           *zap.Logger
	Reloader      Reloader // nil disables POST /api/catalog/reload
}

// Server is the lifeaxes HTTP API server.
type Server struct {
	db            *store.DB
	engine        *engine.Engine
	reloader      Reloader
	log           *zap.Logger
	router        chi.Router
	version       string
	started       time.Time
	defaultWindow engine.Window

	// runs coalesces concurrent runs of the same user and window.
	runs singleflight.Group
}

// New creates a new Server over db and eng.
func New(db *store.DB, eng *engine.Engine, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.DefaultWindow == "" {
		opts.DefaultWindow = engine.Window90d
	}
	s := &Server{
		db:            db,
		engine:        eng,
		reloader:      opts.Reloader,
		log:           opts.Log,
		version:       opts.Version,
		started:       time.Now(),
		defaultWindow: opts.DefaultWindow,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/catalog", s.handleGetCatalog)
		r.Post("/catalog/reload", s.handleReloadCatalog)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/activities", s.handleAddActivities)
			r.Get("/activities", s.handleListActivities)

			r.Post("/runs", s.handleRun)
			r.Get("/axes", s.handleListAxes)
			r.Get("/achievements", s.handleListAchievements)

			r.Get("/identity", s.handleGetIdentity)
			r.Put("/identity", s.handlePutIdentity)
			r.Post("/identity/labels", s.handleAddLabel)
			r.Delete("/identity/labels/{label}", s.handleRemoveLabel)
			r.Get("/identity/versions", s.handleIdentityVersions)

			r.Get("/comparison", s.handleComparison)
			r.Get("/feedback", s.handleFeedback)
			r.Get("/feedback/history", s.handleFeedbackHistory)
			r.Get("/summary", s.handleSummary)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownWindow),
		errors.Is(err, engine.ErrEmptyLabel),
		errors.Is(err, engine.ErrDuplicateLabel),
		errors.Is(err, engine.ErrUnknownFeedbackContext):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrLabelNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (s *Server) window(r *http.Request) (engine.Window, error) {
	return engine.ParseWindow(r.URL.Query().Get("window"), s.defaultWindow)
}
