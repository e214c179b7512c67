package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/bizgw/internal/auth"
	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/docs"
	"github.com/vyrodovalexey/bizgw/internal/health"
	"github.com/vyrodovalexey/bizgw/internal/middleware"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// State is the gateway lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway owns the HTTP server and the handler tree behind it.
type Gateway struct {
	config   *config.GatewayConfig
	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	authn    *Authenticator
	pipeline *Pipeline
	login    *auth.Handler
	docs     *docs.Handler
	health   *health.Checker
	limiter  *middleware.RateLimiter

	engine  *gin.Engine
	handler http.Handler

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	state     atomic.Int32
	startTime time.Time
	done      chan struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics enables request metrics and the metrics endpoint.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracer enables server spans.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithLoginHandler mounts POST /api/auth/login and GET /api/auth/me.
func WithLoginHandler(h *auth.Handler) Option {
	return func(g *Gateway) {
		g.login = h
	}
}

// WithLoginRateLimiter limits POST /api/auth/login per client.
func WithLoginRateLimiter(rl *middleware.RateLimiter) Option {
	return func(g *Gateway) {
		g.limiter = rl
	}
}

// WithDocsHandler mounts the /api-docs endpoints.
func WithDocsHandler(h *docs.Handler) Option {
	return func(g *Gateway) {
		g.docs = h
	}
}

// WithHealthChecker overrides the default checker.
func WithHealthChecker(c *health.Checker) Option {
	return func(g *Gateway) {
		g.health = c
	}
}

// New builds the handler tree. It does not listen.
func New(cfg *config.GatewayConfig, authn *Authenticator, pipeline *Pipeline, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if authn == nil || pipeline == nil {
		return nil, errors.New("gateway: authenticator and pipeline are required")
	}

	g := &Gateway{
		config:   cfg,
		logger:   observability.NopLogger(),
		authn:    authn,
		pipeline: pipeline,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.health == nil {
		g.health = health.NewChecker("bizgw", "", g.logger)
	}

	g.engine = g.buildEngine()
	g.handler = g.buildHandler(g.engine)
	g.state.Store(int32(StateStopped))
	return g, nil
}

// buildEngine registers the gateway-owned endpoints behind the security
// headers. Anything else is proxied through the pipeline untouched.
func (g *Gateway) buildEngine() *gin.Engine {
	e := gin.New()
	e.RedirectTrailingSlash = false
	e.RedirectFixedPath = false
	e.ContextWithFallback = true

	own := e.Group("", middleware.Gin(middleware.SecurityHeaders(nil)))
	g.health.RegisterRoutes(own)

	if g.metrics != nil && g.config.Observability.Metrics.Enabled {
		own.GET(g.config.Observability.Metrics.Path, gin.WrapH(g.metrics.Handler()))
	}

	if g.login != nil {
		authGroup := own.Group("/api/auth")
		if g.limiter != nil {
			authGroup.POST("/login", middleware.Gin(middleware.RateLimit(g.limiter)), g.login.Login)
		} else {
			authGroup.POST("/login", g.login.Login)
		}
		authGroup.GET("/me", g.authn.Required(), g.login.Me)
	}

	if g.docs != nil {
		g.docs.Register(own.Group("", g.authn.Optional()), "/api-docs")
	}

	e.NoRoute(g.proxied)
	return e
}

// proxied hands unowned paths to the pipeline. gin primes NoRoute with a
// 404 and writes its own "404 page not found" body when the handler leaves
// the response unwritten, so the status the pipeline chose is committed
// here to keep empty backend responses intact.
func (g *Gateway) proxied(c *gin.Context) {
	c.Status(http.StatusOK)
	g.pipeline.ServeHTTP(c.Writer, c.Request)
	c.Writer.WriteHeaderNow()
}

// buildHandler wraps the engine in the server-wide middleware. Recovery is
// outermost so it also covers the other middleware.
func (g *Gateway) buildHandler(e http.Handler) http.Handler {
	mws := []middleware.Middleware{
		middleware.Recovery(g.logger),
		middleware.RequestID(),
	}
	if g.tracer != nil {
		mws = append(mws, observability.TracingMiddleware(g.tracer))
	}
	if g.metrics != nil {
		mws = append(mws, observability.MetricsMiddleware(g.metrics))
	}
	mws = append(mws,
		middleware.AccessLog(g.logger, "/health", "/ready", "/live", g.config.Observability.Metrics.Path),
		middleware.CORS(middleware.DefaultCORSConfig(g.config.CORS.Origins())),
	)
	return middleware.Chain(e, mws...)
}

// Handler returns the complete handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Engine returns the gin engine.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine
}

// Health returns the health checker.
func (g *Gateway) Health() *health.Checker {
	return g.health
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrNotStopped
	}

	addr := g.config.Server.Addr
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           g.handler,
		ReadHeaderTimeout: g.config.Server.ReadHeaderTimeout.Duration(),
		IdleTimeout:       g.config.Server.IdleTimeout.Duration(),
		MaxHeaderBytes:    1 << 20,
	}

	g.mu.Lock()
	g.server = srv
	g.listener = ln
	g.done = make(chan struct{})
	g.startTime = time.Now()
	done := g.done
	g.mu.Unlock()

	if g.limiter != nil {
		g.limiter.StartCleanup(time.Minute)
	}

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", observability.Error(err))
		}
	}()

	g.state.Store(int32(StateRunning))
	g.logger.Info("gateway started", observability.String("address", ln.Addr().String()))
	return nil
}

// Stop marks the gateway as draining, then waits for in-flight requests
// up to the shutdown timeout before closing connections.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrNotRunning
	}
	defer g.state.Store(int32(StateStopped))

	g.health.SetDraining(true)
	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Server.ShutdownTimeout.Duration())
		defer cancel()
	}

	g.mu.RLock()
	srv, done := g.server, g.done
	g.mu.RUnlock()

	if g.limiter != nil {
		g.limiter.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	<-done

	g.logger.Info("gateway stopped")
	return nil
}

// State returns the lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Addr returns the bound listener address, or "" before Start.
func (g *Gateway) Addr() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Uptime returns the time since Start.
func (g *Gateway) Uptime() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}
