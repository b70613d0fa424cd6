package alarm

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/oshokin/alarm-gateway/internal/domain/alarm"
	"github.com/oshokin/alarm-gateway/internal/metrics"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Login(ctx context.Context, credentials domain.Credentials) (domain.Token, error)
	Arm(ctx context.Context, token domain.Token, code domain.AccessCode) (domain.State, error)
	Disarm(ctx context.Context, token domain.Token, code domain.AccessCode) (domain.State, error)
}

// Server serves the gateway REST API.
type Server struct {
	// service provides the business logic for alarm operations.
	service Service
	// metrics records request metrics and backs GET /metrics; may be nil.
	metrics *metrics.Registry
	// router dispatches requests to the handlers.
	router chi.Router
}

// Option configures the server.
type Option func(*Server)

// WithMetrics records request metrics and exposes them on GET /metrics.
func WithMetrics(registry *metrics.Registry) Option {
	return func(s *Server) {
		s.metrics = registry
	}
}

// NewServer wires the provided service implementation into an HTTP handler.
func NewServer(service Service, opts ...Option) *Server {
	s := &Server{
		service: service,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.buildRouter()

	return s
}

// ServeHTTP dispatches the request to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// buildRouter creates the router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(s.accessLog)
	r.Use(recoverer)
	r.Use(middleware.StripSlashes)

	r.NotFound(wrap(func(http.ResponseWriter, *http.Request) error {
		return httpError{Status: http.StatusNotFound, Code: codeNotFound, Detail: "Resource not found"}
	}))
	r.MethodNotAllowed(wrap(func(http.ResponseWriter, *http.Request) error {
		return httpError{Status: http.StatusMethodNotAllowed, Code: codeMethodNotAllowed, Detail: "Method not allowed"}
	}))

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v0", func(r chi.Router) {
		// Login (no bearer token).
		r.With(requireJSON).Post("/auth", wrap(s.handleLogin))

		// Alarms, behind the bearer token filter. The filter is attached per
		// route so an unsupported method is still answered with 405.
		r.Route("/alarms", func(r chi.Router) {
			protected := r.With(requireBearer, requireJSON)

			protected.Put("/", wrap(s.handleAlarms(domain.ActionArm)))
			protected.Delete("/", wrap(s.handleAlarms(domain.ActionDisarm)))
		})
	})

	return r
}
