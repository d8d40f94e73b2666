// Package api exposes the wheel service over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/service"
	"github.com/MJE43/fortune-wheel-go/internal/store"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// Wheels is the service surface the handlers call.
type Wheels interface {
	CreateWheel(ctx context.Context, name string, withDefaults bool) (*service.WheelView, error)
	ListWheels(ctx context.Context) ([]store.Wheel, error)
	GetWheel(ctx context.Context, id uuid.UUID) (*service.WheelView, error)
	DeleteWheel(ctx context.Context, id uuid.UUID) error
	AddSlice(ctx context.Context, id uuid.UUID, in service.NewSlice) (*service.WheelView, error)
	UpdateSlice(ctx context.Context, id uuid.UUID, index int, upd service.SliceUpdate) (*service.WheelView, error)
	DeleteSlice(ctx context.Context, id uuid.UUID, index int) (*service.WheelView, error)
	Equalize(ctx context.Context, id uuid.UUID) (*service.WheelView, error)
	CommitSlices(ctx context.Context, id uuid.UUID, slices []wheel.Slice) (*service.WheelView, error)
	Spin(ctx context.Context, id uuid.UUID, currentAngle float64) (*service.SpinResult, error)
	ResetHistory(ctx context.Context, id uuid.UUID) (*service.WheelView, error)
	Stats(ctx context.Context, id uuid.UUID) (*service.Stats, error)
	ListSpins(ctx context.Context, id uuid.UUID, page, perPage int) (*store.SpinsPage, error)
	ExportCSV(ctx context.Context, id uuid.UUID, w io.Writer) error
}

var _ Wheels = (*service.WheelService)(nil)

// Checker reports storage health.
type Checker interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)
}

// Options configures the router.
type Options struct {
	// Timeout bounds every /api/v1 request. Zero means 60s.
	Timeout        time.Duration
	AllowedOrigins []string
	// Token, when set, is required on mutating requests.
	Token string
	// Events serves /ws. Nil leaves the route unregistered.
	Events http.Handler
}

// Server handles HTTP requests.
type Server struct {
	wheels    Wheels
	checker   Checker
	log       *slog.Logger
	validate  *validator.Validate
	opts      Options
	token     string
	startTime time.Time
}

// NewServer builds a server. checker may be nil, in which case readiness
// only reports the process as up.
func NewServer(wheels Wheels, checker Checker, log *slog.Logger, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Server{
		wheels:    wheels,
		checker:   checker,
		log:       log.With(slog.String("component", "api")),
		validate:  validator.New(),
		opts:      opts,
		token:     opts.Token,
		startTime: time.Now(),
	}
}

// Routes sets up the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Error-Type", "X-Error-Category"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apiErr := NewError(ErrTypeRouteNotFound, "route not found").
			WithRequestID(middleware.GetReqID(r.Context())).
			WithContext("path", r.URL.Path).
			Build()
		s.writeError(w, r, http.StatusNotFound, apiErr, nil)
	})

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/version", s.handleVersion)

	if s.opts.Events != nil {
		r.Handle("/ws", s.opts.Events)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.Timeout))
		r.Use(s.requireToken)

		r.Get("/wheels", s.handleListWheels)
		r.Post("/wheels", s.handleCreateWheel)

		r.Route("/wheels/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWheel)
			r.Delete("/", s.handleDeleteWheel)

			r.Post("/slices", s.handleAddSlice)
			r.Put("/slices", s.handleCommitSlices)
			r.Patch("/slices/{index}", s.handleUpdateSlice)
			r.Delete("/slices/{index}", s.handleDeleteSlice)
			r.Post("/equalize", s.handleEqualize)

			r.Post("/spin", s.handleSpin)
			r.Post("/history/reset", s.handleResetHistory)
			r.Get("/stats", s.handleStats)
			r.Get("/spins", s.handleListSpins)
			r.Get("/spins/export.csv", s.handleExportCSV)
		})
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// writeJSON writes data with status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("X-Wheel-Version", Version)
	render.Status(r, status)
	render.JSON(w, r, data)
}
