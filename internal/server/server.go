package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/broadcast"
	"github.com/iSamBa/gym-manager-sub011/internal/gatekeeper"
	"github.com/iSamBa/gym-manager-sub011/internal/identity"
	"github.com/iSamBa/gym-manager-sub011/internal/telemetry"
)

// Server ties the identity provider, the request gatekeeper, and the
// HTTP routes together.
type Server struct {
	cfg      Config
	provider identity.Provider
	registry identity.Registry
	bus      broadcast.Bus
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// timedProvider feeds validation latency into the metrics without the
// gatekeeper knowing about telemetry.
type timedProvider struct {
	identity.Provider
	metrics *telemetry.Metrics
}

func (p timedProvider) Validate(ctx context.Context, token string) (*identity.Decision, error) {
	start := time.Now()
	decision, err := p.Provider.Validate(ctx, token)
	p.metrics.ObserveIdentityCheck(time.Since(start))
	return decision, err
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config, provider identity.Provider, registry identity.Registry, bus broadcast.Bus, metrics *telemetry.Metrics, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bus == nil {
		bus = broadcast.NopBus{}
	}

	s := &Server{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		bus:      bus,
		metrics:  metrics,
		logger:   logger.With().Str("component", "server").Logger(),
	}

	gate, err := gatekeeper.New(
		timedProvider{Provider: provider, metrics: metrics},
		gatekeeper.Config{
			LoginPath:       cfg.LoginPath,
			PublicPaths:     []string{"/", "/healthz", "/metrics", "/static/"},
			Cookie:          s.cookieTemplate(),
			ValidateTimeout: cfg.ValidateTimeout,
			OnDecision: func(outcome string) {
				metrics.RecordGateDecision(outcome)
				if outcome == gatekeeper.OutcomeRotated {
					metrics.RecordTokenRotation()
				}
			},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.HTTPMetricsMiddleware(metrics))
	r.Use(middleware.Recoverer)

	// Enable CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Type", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// Every route sits behind the gate; public paths pass through
	// inside it.
	r.Use(gate.Handler())

	// Public routes
	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get(cfg.LoginPath, s.handleLoginPage)
	r.Post(cfg.LoginPath, s.handleLogin)

	// Protected routes
	r.Get("/dashboard", s.handleDashboard)
	r.Get("/api/session", s.handleSession)
	r.Post("/api/session/extend", s.handleExtend)
	r.Get("/logout", s.handleLogout)
	r.Post("/logout", s.handleLogout)

	s.router = r
	return s, nil
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Starting server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down server")
	return s.httpSrv.Shutdown(ctx)
}
