// Package server exposes the turn engine and session store over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/otel"
	"github.com/tehqua/Vitalis/internal/workflow"
)

const defaultTimeout = 60 * time.Second

// turnTimeout bounds one full turn including transcription, which carries
// the longest collaborator deadline.
const turnTimeout = 5 * time.Minute

// Server holds the dependencies for the HTTP API.
type Server struct {
	engine    *workflow.Engine
	sessions  *memory.Store
	limiter   *RateLimiter
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithSessionStore enables the session inspection endpoints.
func WithSessionStore(s *memory.Store) Option {
	return func(srv *Server) { srv.sessions = s }
}

// WithRateLimiter enables request rate limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(srv *Server) { srv.limiter = rl }
}

// NewServer builds a Server around the turn engine plus optional Option(s).
func NewServer(engine *workflow.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns a freshly built http.Handler; calling it again returns an
// independent mux. The turn route carries its own timeout; the session
// routes share the default request timeout.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())
	r.Use(RequestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.limiter))

		r.With(middleware.Timeout(turnTimeout)).Post("/api/v1/turns", s.handleTurn)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Get("/api/v1/sessions", s.handleSessionList)
			r.Get("/api/v1/sessions/{id}/messages", s.handleSessionMessages)
			r.Delete("/api/v1/sessions/{id}", s.handleSessionClear)
		})
	})

	return r
}
