package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// incrementWithExpiryScript atomically increments a counter and sets its
// expiry when the increment created it.
// KEYS[1] = key
// ARGV[1] = delta
// ARGV[2] = expiration in milliseconds
var incrementWithExpiryScript = redis.NewScript(`
	local current = redis.call('INCRBY', KEYS[1], ARGV[1])
	if current == tonumber(ARGV[1]) then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// Connection defaults.
const (
	defaultRedisTimeout      = time.Second
	defaultConnectionRetries = 3
	defaultInitialBackoff    = 100 * time.Millisecond
	defaultMaxBackoff        = 2 * time.Second
)

// storeMetrics holds Prometheus metrics for Redis store operations.
type storeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	connectionRetries prometheus.Counter
}

func newStoreMetrics(namespace string) *storeMetrics {
	if namespace == "" {
		namespace = observability.DefaultNamespace
	}

	return &storeMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit_redis",
				Name:      "operations_total",
				Help:      "Total number of Redis store operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ratelimit_redis",
				Name:      "operation_duration_seconds",
				Help:      "Duration of Redis store operations in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation"},
		),
		connectionRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit_redis",
				Name:      "connection_retries_total",
				Help:      "Total number of Redis connection retry attempts",
			},
		),
	}
}

func (m *storeMetrics) observe(operation, status string, start time.Time) {
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RedisStore implements Store using Redis, so every facade instance
// shares the same window counters.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  observability.Logger
	metrics *storeMetrics
	closed  bool
	mu      sync.Mutex
}

// RedisOption is a functional option for the Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	logger            observability.Logger
	registerer        prometheus.Registerer
	namespace         string
	connectionRetries int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger observability.Logger) RedisOption {
	return func(o *redisOptions) {
		o.logger = logger
	}
}

// WithRedisRegisterer registers the store metrics with registerer.
func WithRedisRegisterer(registerer prometheus.Registerer, namespace string) RedisOption {
	return func(o *redisOptions) {
		o.registerer = registerer
		o.namespace = namespace
	}
}

// WithConnectionRetries sets how many times the initial ping is retried.
func WithConnectionRetries(retries int, initialBackoff, maxBackoff time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.connectionRetries = retries
		o.initialBackoff = initialBackoff
		o.maxBackoff = maxBackoff
	}
}

// NewRedisStore connects to Redis and verifies the connection. Connection
// attempts are retried with decorrelated jitter backoff.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, opts ...RedisOption) (*RedisStore, error) {
	o := &redisOptions{
		logger:            observability.NopLogger(),
		connectionRetries: defaultConnectionRetries,
		initialBackoff:    defaultInitialBackoff,
		maxBackoff:        defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	metrics := newStoreMetrics(o.namespace)
	if o.registerer != nil {
		if err := observability.RegisterCollectors(o.registerer,
			metrics.operationsTotal, metrics.operationDuration, metrics.connectionRetries); err != nil {
			return nil, fmt.Errorf("registering redis store metrics: %w", err)
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	s := &RedisStore{
		client:  client,
		prefix:  cfg.KeyPrefix,
		timeout: timeout,
		logger:  o.logger,
		metrics: metrics,
	}

	if err := s.connectWithRetry(ctx, cfg.Address, o); err != nil {
		_ = client.Close()
		return nil, err
	}

	return s, nil
}

// connectWithRetry pings Redis until it answers or the retries run out.
func (s *RedisStore) connectWithRetry(ctx context.Context, address string, o *redisOptions) error {
	backoff := newDecorrelatedJitterBackoff(o.initialBackoff, o.maxBackoff)

	var lastErr error
	for attempt := 0; attempt <= o.connectionRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		lastErr = s.client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				s.logger.Info("Redis connection established after retry",
					observability.String("address", address),
					observability.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		if attempt == o.connectionRetries {
			break
		}

		wait := backoff.next(attempt)
		s.logger.Debug("Redis connection failed, retrying",
			observability.String("address", address),
			observability.Int("attempt", attempt+1),
			observability.Duration("backoff", wait),
			observability.Error(lastErr),
		)
		s.metrics.connectionRetries.Inc()

		select {
		case <-ctx.Done():
			return fmt.Errorf("connecting to Redis at %s: %w", address, ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("failed to connect to Redis at %s after %d attempts: %w",
		address, o.connectionRetries+1, lastErr)
}

// decorrelatedJitterBackoff implements decorrelated jitter backoff:
// sleep = min(cap, random_between(base, sleep * 3)).
type decorrelatedJitterBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newDecorrelatedJitterBackoff(initial, maxDuration time.Duration) *decorrelatedJitterBackoff {
	return &decorrelatedJitterBackoff{
		initial: initial,
		max:     maxDuration,
		current: initial,
	}
}

func (b *decorrelatedJitterBackoff) next(attempt int) time.Duration {
	if attempt == 0 {
		b.current = b.initial
		return b.current
	}

	minBackoff := float64(b.initial)
	maxBackoff := float64(b.current) * 3

	//nolint:gosec // weak random is acceptable for jitter
	backoff := minBackoff + float64(time.Now().UnixNano()%1000)/1000.0*(maxBackoff-minBackoff)

	if backoff > float64(b.max) {
		backoff = float64(b.max)
	}

	b.current = time.Duration(backoff)
	return b.current
}

func (s *RedisStore) prefixKey(key string) string {
	return s.prefix + key
}

// IncrementWithExpiry implements Store using a Lua script for atomicity.
func (s *RedisStore) IncrementWithExpiry(
	ctx context.Context,
	key string,
	delta int64,
	expiration time.Duration,
) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis incr with expiry: %w", err)
	}

	expirationMillis := expiration.Milliseconds()
	if expirationMillis < 1 {
		expirationMillis = 1
	}

	start := time.Now()
	result, err := incrementWithExpiryScript.Run(ctx, s.client, []string{s.prefixKey(key)}, delta, expirationMillis).Result()
	if err != nil {
		s.metrics.observe("increment_with_expiry", "error", start)
		return 0, fmt.Errorf("redis script error: %w", err)
	}

	val, ok := result.(int64)
	if !ok {
		s.metrics.observe("increment_with_expiry", "error", start)
		return 0, fmt.Errorf("redis script returned unexpected type: %T", result)
	}

	s.metrics.observe("increment_with_expiry", "success", start)
	return val, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close implements Store. It is idempotent.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
