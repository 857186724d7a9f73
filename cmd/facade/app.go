package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/auth/apikey"
	"github.com/atmet-ai/foundry-facade/internal/authz"
	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/health"
	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit/store"
	"github.com/atmet-ai/foundry-facade/internal/server"
	"github.com/atmet-ai/foundry-facade/internal/upstream"
)

// azureCheckTTL keeps readiness probes from listing deployments on every call.
const azureCheckTTL = 15 * time.Second

// tracerReleaseTimeout bounds the span flush when initialization fails.
const tracerReleaseTimeout = 5 * time.Second

var newTracer = observability.NewTracer

// application holds all application components.
type application struct {
	server   *server.Server
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	upstream *upstream.Client
	config   *config.Config
}

// initApplication builds every component from cfg. Nothing listens yet.
func initApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (_ *application, err error) {
	metrics := observability.NewMetrics(observability.DefaultNamespace)
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	registry := metrics.Registry()
	namespace := metrics.Namespace()

	tracer, err := newTracer(observability.TracerConfig{
		ServiceName:    firstNonEmpty(cfg.Tracing.ServiceName, "foundry-facade"),
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Enabled:        cfg.Tracing.Enabled,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	defer func() {
		if err != nil {
			releaseTracer(tracer, logger)
		}
	}()

	authenticator := initAuthenticator(cfg, logger, metrics)

	authzMetrics := authz.NewMetrics(namespace)
	authzMetrics.MustRegister(registry)
	authorizer, err := authz.NewAuthorizer(cfg.Authorization,
		authz.WithAuthorizerLogger(logger),
		authz.WithAuthorizerMetrics(authzMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile authorization policies: %w", err)
	}

	healthMetrics := health.NewMetrics(namespace)
	healthMetrics.MustRegister(registry)
	healthHandler := health.NewHandler(
		health.WithLogger(logger),
		health.WithMetrics(healthMetrics),
		health.WithVersion(version),
	)
	healthHandler.AddCheck(health.SelfCheck())

	limiters, err := initRateLimiters(ctx, cfg, logger, metrics, healthHandler)
	if err != nil {
		return nil, err
	}

	client, err := initUpstream(cfg, logger, metrics, healthHandler)
	if err != nil {
		_ = limiters.Close()
		return nil, err
	}

	srv, err := server.New(cfg, authenticator, authorizer,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithTracer(tracer),
		server.WithHealth(healthHandler),
		server.WithRateLimiters(limiters),
		server.WithVersion(version),
	)
	if err != nil {
		_ = limiters.Close()
		if client != nil {
			upstream.StopSDKLogs()
		}
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("application initialized",
		observability.Int("api_keys", len(cfg.APIKeys.Keys)),
		observability.Bool("read_expression", authorizer.HasPolicy(authz.CapabilityRead)),
		observability.Bool("write_expression", authorizer.HasPolicy(authz.CapabilityWrite)),
		observability.Bool("rate_limiting", cfg.RateLimiting.Enabled),
		observability.String("rate_limit_store", cfg.RateLimiting.Store),
		observability.Bool("tracing", tracer.Enabled()),
		observability.Strings("health_checks", healthHandler.CheckNames()),
	)

	return &application{
		server:   srv,
		metrics:  metrics,
		tracer:   tracer,
		upstream: client,
		config:   cfg,
	}, nil
}

func initAuthenticator(cfg *config.Config, logger observability.Logger, metrics *observability.Metrics) *auth.Authenticator {
	keyMetrics := apikey.NewMetrics(metrics.Namespace())
	keyMetrics.MustRegister(metrics.Registry())
	keyMetrics.Init()

	credentials := apikey.NewCredentialSet(cfg.APIKeys.HeaderName, cfg.APIKeys.Keys)
	if credentials.IsEmpty() {
		logger.Warn("no API keys configured, every API request will be rejected")
	}

	validator := apikey.NewValidator(credentials,
		apikey.WithValidatorLogger(logger),
		apikey.WithValidatorMetrics(keyMetrics),
	)

	return auth.NewAuthenticator(validator, auth.WithAuthenticatorLogger(logger))
}

// initRateLimiters creates the policy registry. With the redis store the
// counters are shared across instances and Redis gates readiness.
func initRateLimiters(
	ctx context.Context,
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
	healthHandler *health.Handler,
) (*ratelimit.Registry, error) {
	limitMetrics := ratelimit.NewMetrics(metrics.Namespace())
	limitMetrics.MustRegister(metrics.Registry())

	opts := []ratelimit.RegistryOption{
		ratelimit.WithRegistryLogger(logger),
		ratelimit.WithRegistryMetrics(limitMetrics),
	}

	useRedis := cfg.RateLimiting.Enabled && cfg.RateLimiting.Store == config.StoreRedis
	if useRedis {
		redisStore, err := store.NewRedisStore(ctx, cfg.RateLimiting.Redis,
			store.WithRedisLogger(logger),
			store.WithRedisRegisterer(metrics.Registry(), metrics.Namespace()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect rate limit store: %w", err)
		}
		opts = append(opts, ratelimit.WithRegistryStore(redisStore))
	}

	limiters, err := ratelimit.NewRegistry(cfg.RateLimiting, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiters: %w", err)
	}

	if useRedis {
		healthHandler.AddCheck(health.RedisCheck(limiters))
	}

	return limiters, nil
}

// initUpstream creates the Azure AI Foundry client. Without a project
// endpoint the facade still starts and reports the dependency as degraded.
func initUpstream(
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
	healthHandler *health.Handler,
) (*upstream.Client, error) {
	upstreamMetrics := upstream.NewMetrics(metrics.Namespace())
	upstreamMetrics.MustRegister(metrics.Registry())

	client, err := upstream.NewClient(cfg.AzureAI,
		upstream.WithLogger(logger),
		upstream.WithMetrics(upstreamMetrics),
		upstream.WithBreakerMetrics(metrics),
		upstream.WithVersion(version),
	)
	if errors.Is(err, upstream.ErrNotConfigured) {
		logger.Warn("azure ai project endpoint is not configured")
		healthHandler.AddCheck(health.AzureAICheck(nil, health.WithCritical(false)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create azure ai client: %w", err)
	}

	upstream.RouteSDKLogs(logger)
	healthHandler.AddCheck(health.NewCachedHealthCheck(health.AzureAICheck(client), azureCheckTTL))

	logger.Info("azure ai client configured",
		observability.String("endpoint", client.Endpoint()),
		observability.String("api_version", cfg.AzureAI.APIVersion),
	)

	return client, nil
}

// releaseTracer stops the exporter of a tracer whose application never started.
func releaseTracer(tracer *observability.Tracer, logger observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), tracerReleaseTimeout)
	defer cancel()

	if err := tracer.Shutdown(ctx); err != nil {
		logger.Warn("failed to shutdown tracer", observability.Error(err))
	}
}
