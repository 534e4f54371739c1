// Package api exposes the storefront service over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/auth"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultMaxUploadBytes = 64 << 20
)

// Server wires the storefront handlers onto a chi router.
type Server struct {
	service        storefront.Service
	verifier       auth.Verifier
	logger         *slog.Logger
	metrics        http.Handler
	allowedOrigins []string
	requestTimeout time.Duration
	maxUploadBytes int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request and handler logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithCORS enables CORS for the given origins ("*" allows any).
func WithCORS(origins ...string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithMaxUploadBytes caps multipart request bodies.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewServer creates the HTTP surface for service. verifier turns bearer
// tokens into identities.
func NewServer(service storefront.Service, verifier auth.Verifier, opts ...ServerOption) *Server {
	s := &Server{
		service:        service,
		verifier:       verifier,
		logger:         slog.Default(),
		requestTimeout: defaultRequestTimeout,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	if len(s.allowedOrigins) > 0 {
		r.Use(corsMiddleware(s.allowedOrigins))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(s.authenticate)

		r.Mount("/assets", s.assetRoutes())
		r.Mount("/products", s.productRoutes())

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Mount("/cart", s.cartRoutes())
			r.Mount("/users", s.userRoutes())
			r.Get("/me", s.handleMe)
			r.Post("/session/sign-out", s.handleSignOut)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
