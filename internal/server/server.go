package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowpaste/flowpaste/internal/config"
	"github.com/flowpaste/flowpaste/internal/llm"
	"github.com/flowpaste/flowpaste/internal/orchestrator"
	"github.com/flowpaste/flowpaste/internal/otel"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
	keepAlive      = 15 * time.Second
)

// ProviderSource resolves providers by kind. *llm.Registry implements it.
type ProviderSource interface {
	Get(kind llm.Kind) (llm.Provider, error)
}

// Server holds all dependencies for the HTTP API.
type Server struct {
	router       *chi.Mux
	cfg          *config.Config
	providers    ProviderSource
	scanner      *privacy.Scanner
	orchestrator *orchestrator.Orchestrator
	hub          *Hub
	limiter      *RateLimiter
	corsOrigins  []string
	keepAlive    time.Duration
	startTime    time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithScanner sets the privacy scanner used by the privacy endpoints and the
// orchestrator. Defaults to the embedded patterns.
func WithScanner(s *privacy.Scanner) Option {
	return func(srv *Server) { srv.scanner = s }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"]).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithKeepAlive sets the interval of comment frames on the event stream.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// NewServer builds a Server. It owns an orchestrator whose events are fanned
// out to /v1/events subscribers; call Close to stop it.
func NewServer(cfg *config.Config, providers ProviderSource, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		providers: providers,
		hub:       NewHub(DefaultSubscriberBuffer),
		limiter:   NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		keepAlive: keepAlive,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scanner == nil {
		s.scanner = privacy.MustNewScanner()
	}
	s.orchestrator = orchestrator.New(providers, s.hub, orchestrator.WithScanner(s.scanner))
	return s
}

// Orchestrator returns the request orchestrator.
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// Close cancels the active request and disconnects event subscribers.
func (s *Server) Close() {
	s.orchestrator.Close()
	s.hub.Close()
}

// Routes returns the configured http.Handler (chi router with all middleware and routes).
// The event stream is registered without the default request timeout.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.MiddlewareWithStatus())
	if len(s.corsOrigins) > 0 {
		r.Use(CORSMiddleware(s.corsOrigins))
	}

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APITokens))
		r.Use(RateLimitMiddleware(s.limiter))

		// Long-lived: no request timeout.
		r.Get("/v1/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))

			r.Post("/v1/privacy/scan", s.handlePrivacyScan)
			r.Post("/v1/privacy/mask", s.handlePrivacyMask)
			r.Post("/v1/privacy/restore", s.handlePrivacyRestore)

			r.Post("/v1/requests", s.handleRequestStart)
			r.Get("/v1/requests/current", s.handleRequestCurrent)
			r.Delete("/v1/requests/{id}", s.handleRequestCancel)

			r.Get("/v1/models", s.handleModels)
			r.Get("/v1/providers/health", s.handleProviderHealth)

			r.Post("/v1/intent", s.handleIntent)
		})
	})

	return r
}
