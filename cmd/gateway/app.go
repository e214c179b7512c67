package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vyrodovalexey/bizgw/internal/audit"
	"github.com/vyrodovalexey/bizgw/internal/auth"
	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
	"github.com/vyrodovalexey/bizgw/internal/authz"
	"github.com/vyrodovalexey/bizgw/internal/backend"
	"github.com/vyrodovalexey/bizgw/internal/cache"
	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/docs"
	"github.com/vyrodovalexey/bizgw/internal/gateway"
	"github.com/vyrodovalexey/bizgw/internal/health"
	"github.com/vyrodovalexey/bizgw/internal/middleware"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/proxy"
	"github.com/vyrodovalexey/bizgw/internal/router"
)

// application holds all application components.
type application struct {
	config   *config.GatewayConfig
	logger   observability.Logger
	gateway  *gateway.Gateway
	clusters *backend.Registry
	docCache cache.Cache
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// newApplication wires every component from cfg. On error everything
// created so far is released.
func newApplication(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (app *application, err error) {
	app = &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.close(context.Background())
			app = nil
		}
	}()

	app.metrics = observability.NewMetrics("")
	app.metrics.SetBuildInfo(version, gitCommit, buildTime)

	app.tracer, err = observability.NewTracer(observability.TracerConfig{
		Enabled:      cfg.Observability.Tracing.Enabled,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		return app, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	app.clusters, err = backend.NewRegistry(cfg.Clusters,
		backend.WithLogger(logger),
		backend.WithMetrics(app.metrics),
	)
	if err != nil {
		return app, fmt.Errorf("failed to build clusters: %w", err)
	}

	compiler, err := authz.NewCompiler()
	if err != nil {
		return app, err
	}
	table, err := router.NewTable(cfg.Routes, router.WithPolicyCompiler(compiler.Compile))
	if err != nil {
		return app, fmt.Errorf("failed to load routes: %w", err)
	}

	secret, err := signingSecret(ctx, cfg.JWT, logger)
	if err != nil {
		return app, err
	}
	jwtCfg := jwt.Config{
		Secret:   []byte(secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL.Duration(),
	}
	issuer, err := jwt.NewIssuer(jwtCfg)
	if err != nil {
		return app, fmt.Errorf("failed to create token issuer: %w", err)
	}
	validator, err := jwt.NewValidator(jwtCfg)
	if err != nil {
		return app, fmt.Errorf("failed to create token validator: %w", err)
	}

	verifier, err := buildVerifier(cfg, app.clusters, logger)
	if err != nil {
		return app, err
	}
	auditor := audit.NewLogger(logger)
	tokens := auth.NewTokenService(verifier, issuer,
		auth.WithLogger(logger),
		auth.WithMetrics(app.metrics),
		auth.WithAuditor(auditor),
	)

	app.docCache, err = cache.New(cfg.Docs.Cache, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create docs cache: %w", err)
	}
	aggOpts := []docs.Option{
		docs.WithPath(cfg.Docs.Path),
		docs.WithTimeout(cfg.Docs.Timeout.Duration()),
		docs.WithLogger(logger),
		docs.WithMetrics(app.metrics),
	}
	if app.docCache != nil {
		aggOpts = append(aggOpts, docs.WithCache(app.docCache))
	}
	aggregator := docs.New(app.clusters, aggOpts...)

	checker := health.NewChecker("bizgw", version, logger)
	checker.RegisterCheck("clusters", health.ClustersCheck(app.clusters))
	if app.docCache != nil {
		checker.RegisterCheck("docs-cache", health.CacheCheck(app.docCache))
	}

	authn := gateway.NewAuthenticator(validator, logger, app.metrics)
	pipeline := gateway.NewPipeline(authn, table,
		proxy.New(app.clusters, proxy.WithLogger(logger), proxy.WithMetrics(app.metrics)),
		gateway.WithPipelineLogger(logger),
		gateway.WithPipelineMetrics(app.metrics),
		gateway.WithPipelineAuditor(auditor),
	)

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(app.metrics),
		gateway.WithTracer(app.tracer),
		gateway.WithHealthChecker(checker),
		gateway.WithLoginHandler(auth.NewHandler(tokens, logger)),
		gateway.WithDocsHandler(docs.NewHandler(aggregator)),
	}
	if rl := cfg.Auth.LoginRateLimit; rl.Enabled {
		opts = append(opts, gateway.WithLoginRateLimiter(middleware.NewRateLimiter(
			"login", rl.RequestsPerSecond, rl.Burst,
			middleware.WithRateLimiterLogger(logger),
			middleware.WithRateLimiterMetrics(app.metrics),
		)))
	}

	app.gateway, err = gateway.New(cfg, authn, pipeline, opts...)
	if err != nil {
		return app, fmt.Errorf("failed to create gateway: %w", err)
	}
	return app, nil
}

// buildVerifier chains the static accounts in front of the identity
// service.
func buildVerifier(cfg *config.GatewayConfig, clusters *backend.Registry, logger observability.Logger) (auth.CredentialVerifier, error) {
	var chain auth.ChainVerifier

	if len(cfg.Auth.StaticUsers) > 0 {
		static, err := auth.NewStaticVerifier(cfg.Auth.StaticUsers)
		if err != nil {
			return nil, fmt.Errorf("invalid static users: %w", err)
		}
		chain = append(chain, static)
	}

	if cfg.Auth.IdentityCluster != "" {
		cluster, err := clusters.Lookup(cfg.Auth.IdentityCluster)
		if err != nil {
			return nil, fmt.Errorf("identity cluster: %w", err)
		}
		chain = append(chain, auth.NewHTTPVerifier(cluster, cfg.Auth.VerifyPath,
			auth.WithVerifierLogger(logger),
			auth.WithVerifierTimeout(cfg.Auth.Timeout.Duration()),
		))
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("no credential verifier configured: set auth.identityCluster or auth.staticUsers")
	}
	return chain, nil
}

// shutdown drains the gateway, then releases everything else.
func (a *application) shutdown(ctx context.Context) error {
	timeout := a.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := a.gateway.Stop(ctx)
	if err != nil {
		a.logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}
	a.close(ctx)

	a.logger.Info("shutdown complete", observability.Duration("took", time.Since(start)))
	return err
}

// close releases clusters, cache and tracer. Nil components are skipped.
func (a *application) close(ctx context.Context) {
	if a.clusters != nil {
		a.clusters.Close()
	}
	if a.docCache != nil {
		if err := a.docCache.Close(); err != nil {
			a.logger.Warn("failed to close docs cache", observability.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shutdown tracer", observability.Error(err))
		}
	}
}
