package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/encoding"
	"github.com/vyrodovalexey/avamapper/internal/engine"
	"github.com/vyrodovalexey/avamapper/internal/health"
	"github.com/vyrodovalexey/avamapper/internal/middleware"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/sandbox"
)

// ginModeOnce keeps gin.SetMode from racing when several servers start.
var ginModeOnce sync.Once

// Server is the HTTP front door of the engine.
type Server struct {
	cfg         *config.ServiceConfig
	engine      *engine.Engine
	router      *gin.Engine
	httpServer  *http.Server
	health      *health.Handler
	rateLimiter *middleware.RateLimiter
	concurrency *middleware.ConcurrencyLimiter
	logger      observability.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	version     string

	mu      sync.Mutex
	running bool
}

// Option is a functional option for the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables the /metrics endpoint backed by m's registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracer sets the tracer for HTTP server spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithVersion sets the version reported by the liveness probe.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New builds the server and its routes. cfg must have defaults applied.
func New(cfg *config.ServiceConfig, eng *engine.Engine, opts ...Option) *Server {
	ginModeOnce.Do(func() {
		if gin.Mode() == gin.DebugMode {
			gin.SetMode(gin.ReleaseMode)
		}
	})

	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.health = health.NewHandler(s.logger, s.version)
	s.health.AddCheck(health.NewCachedHealthCheck(
		health.NewTimeoutHealthCheck(health.NewHealthCheckFunc("engine", s.probeEngine), cfg.Server.RequestTimeout.Duration()),
		probeCacheTTL,
	))

	s.concurrency = middleware.NewConcurrencyLimiter(cfg.Limits.MaxConcurrent)
	rps, burst, perClient := rateLimitSettings(cfg.Limits.RateLimit)
	s.rateLimiter = middleware.NewRateLimiter(rps, burst, perClient,
		middleware.WithRateLimiterLogger(s.logger))

	if s.metrics != nil {
		s.registerDomainMetrics()
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) registerDomainMetrics() {
	reg := s.metrics.Registry()

	codecs := encoding.GetCodecMetrics()
	codecs.Init()
	codecs.MustRegister(reg)

	scripts := sandbox.GetScriptMetrics()
	scripts.Init()
	scripts.MustRegister(reg)

	transforms := engine.GetMetrics()
	transforms.Init()
	transforms.MustRegister(reg)

	probes := health.GetHealthMetrics()
	probes.Init()
	probes.MustRegister(reg)
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.SecurityHeaders(s.cfg.Security.DisableHeaders, s.cfg.Security.CustomHeaders),
		middleware.Tracing(s.tracer, s.cfg.Observability.Metrics.Path),
	)
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}
	r.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger:          s.logger,
		SkipPaths:       []string{s.cfg.Observability.Metrics.Path},
		SkipHealthCheck: true,
	}))

	s.health.RegisterRoutes(r)
	if s.metrics != nil && s.cfg.Observability.Metrics.Enabled {
		r.GET(s.cfg.Observability.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v2",
		middleware.BodyLimit(s.cfg.Server.MaxBodyBytes),
		middleware.RateLimit(s.rateLimiter, s.metrics),
		middleware.RequestTimeout(s.cfg.Server.RequestTimeout.Duration()),
	)
	api.GET("/functions", s.handleFunctions)

	transform := api.Group("/transform", middleware.ConcurrencyLimit(s.concurrency, s.metrics, s.logger))
	transform.POST("", s.handleTransform)
	transform.POST("/debug/parse", s.handleParse)

	r.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, http.StatusNotFound, errNotFound)
	})
	return r
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the probe handler.
func (s *Server) Health() *health.Handler {
	return s.health
}

// ApplyConfig applies the settings of cfg that can change at runtime: the
// rate limit. Listener, timeouts and the concurrency cap need a restart.
func (s *Server) ApplyConfig(cfg *config.ServiceConfig) {
	rps, burst, _ := rateLimitSettings(cfg.Limits.RateLimit)
	s.rateLimiter.SetLimit(rps, burst)
	s.logger.Info("rate limit updated",
		observability.Any("requests_per_second", rps),
		observability.Int("burst", burst),
	)
}

// Start listens and serves until Stop is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Duration(),
	}
	s.running = true
	s.mu.Unlock()

	s.rateLimiter.StartCleanup()
	s.logger.Info("starting HTTP server",
		observability.String("address", s.httpServer.Addr),
		observability.Int("max_concurrent", s.cfg.Limits.MaxConcurrent),
		observability.Duration("request_timeout", s.cfg.Server.RequestTimeout.Duration()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop marks the server as draining and shuts it down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.health.SetDraining(true)
	s.rateLimiter.Stop()
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func rateLimitSettings(rl *config.RateLimitConfig) (rps float64, burst int, perClient bool) {
	if rl == nil || !rl.Enabled {
		return 0, 1, false
	}
	return rl.RequestsPerSecond, rl.Burst, rl.PerClient
}
