package ratelimit

import (
	"context"
	"fmt"
	"sort"

	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit/store"
)

// Registry maps policy names to limiters. Limiters are created once at
// startup and live for the life of the process.
type Registry struct {
	limiters map[string]Limiter
	store    store.Store
}

// RegistryOption is a functional option for the registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	store   store.Store
	logger  observability.Logger
	metrics *Metrics
}

// WithRegistryStore shares every policy's counters through s. The registry
// takes ownership of s and closes it.
func WithRegistryStore(s store.Store) RegistryOption {
	return func(o *registryOptions) {
		o.store = s
	}
}

// WithRegistryLogger sets the logger passed to every limiter.
func WithRegistryLogger(logger observability.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithRegistryMetrics sets the metrics passed to every limiter.
func WithRegistryMetrics(metrics *Metrics) RegistryOption {
	return func(o *registryOptions) {
		o.metrics = metrics
	}
}

// NewRegistry creates the general and writes policies from cfg. When
// rate limiting is disabled every policy admits all requests.
func NewRegistry(cfg config.RateLimitingConfig, opts ...RegistryOption) (*Registry, error) {
	o := &registryOptions{
		logger:  observability.NopLogger(),
		metrics: NewMetrics(observability.DefaultNamespace),
	}
	for _, opt := range opts {
		opt(o)
	}

	r := &Registry{
		limiters: make(map[string]Limiter, 2),
		store:    o.store,
	}

	for _, name := range []string{config.PolicyGeneral, config.PolicyWrites} {
		if !cfg.Enabled {
			r.limiters[name] = NewNoopLimiter(name)
			continue
		}

		policyCfg, _ := cfg.Policy(name)
		limiter, err := NewFixedWindowLimiter(Policy{
			Name:        name,
			PermitLimit: policyCfg.PermitLimit,
			Window:      policyCfg.Window.Duration(),
			QueueLimit:  policyCfg.QueueLimit,
		},
			WithStore(o.store),
			WithLogger(o.logger),
			WithMetrics(o.metrics),
		)
		if err != nil {
			return nil, err
		}
		r.limiters[name] = limiter
	}

	return r, nil
}

// Get returns the limiter for the named policy.
func (r *Registry) Get(name string) (Limiter, error) {
	limiter, ok := r.limiters[name]
	if !ok {
		return nil, fmt.Errorf("rate limit policy %q is not defined", name)
	}
	return limiter, nil
}

// MustGet returns the limiter for the named policy or panics.
func (r *Registry) MustGet(name string) Limiter {
	limiter, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return limiter
}

// Names returns the defined policy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping checks the shared store when it supports health checks.
func (r *Registry) Ping(ctx context.Context) error {
	pinger, ok := r.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

// Close releases queued requests and closes the shared store.
func (r *Registry) Close() error {
	for _, limiter := range r.limiters {
		if fw, ok := limiter.(*FixedWindowLimiter); ok {
			_ = fw.Close()
		}
	}
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
