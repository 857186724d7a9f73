package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TagReady marks checks that gate readiness.
const TagReady = "ready"

// Check names registered by the server.
const (
	CheckSelf    = "self"
	CheckAzureAI = "azure-ai"
	CheckRedis   = "redis"
)

// HealthCheck defines the interface for health checks.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// DependencyCheck is a named check with tags and a criticality flag.
type DependencyCheck struct {
	name        string
	description string
	tags        []string
	critical    bool
	checkFn     func(ctx context.Context) error
}

// DependencyCheckOption is a function that configures a DependencyCheck.
type DependencyCheckOption func(*DependencyCheck)

// WithTags sets the tags used to select the check.
func WithTags(tags ...string) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.tags = append(d.tags, tags...)
	}
}

// WithCritical marks the dependency as critical. Non-critical failures
// degrade the report instead of failing it.
func WithCritical(critical bool) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.critical = critical
	}
}

// WithDescription sets the message reported while the check passes.
func WithDescription(description string) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.description = description
	}
}

// NewDependencyCheck creates a new dependency check. Checks are critical
// unless configured otherwise.
func NewDependencyCheck(
	name string,
	checkFn func(ctx context.Context) error,
	opts ...DependencyCheckOption,
) *DependencyCheck {
	d := &DependencyCheck{
		name:     name,
		checkFn:  checkFn,
		critical: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the name of the dependency check.
func (d *DependencyCheck) Name() string {
	return d.name
}

// Check performs the dependency health check.
func (d *DependencyCheck) Check(ctx context.Context) error {
	return d.checkFn(ctx)
}

// Tags returns the tags of the check.
func (d *DependencyCheck) Tags() []string {
	return d.tags
}

// IsCritical returns true if the dependency is critical.
func (d *DependencyCheck) IsCritical() bool {
	return d.critical
}

// Description returns the message reported while the check passes.
func (d *DependencyCheck) Description() string {
	return d.description
}

// SelfCheck reports the process itself as healthy.
func SelfCheck() *DependencyCheck {
	return NewDependencyCheck(CheckSelf, func(context.Context) error { return nil })
}

// Pinger is implemented by clients that can verify their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AzureAICheck verifies Azure AI Foundry connectivity. It gates readiness.
func AzureAICheck(client Pinger, opts ...DependencyCheckOption) *DependencyCheck {
	opts = append([]DependencyCheckOption{
		WithTags(TagReady),
		WithDescription("Azure AI Foundry connection is healthy"),
	}, opts...)

	return NewDependencyCheck(CheckAzureAI, func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("azure ai client is not configured")
		}
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("azure ai foundry connection is unhealthy: %w", err)
		}
		return nil
	}, opts...)
}

// RedisCheck verifies the distributed rate limit store.
func RedisCheck(client Pinger, opts ...DependencyCheckOption) *DependencyCheck {
	opts = append([]DependencyCheckOption{WithTags(TagReady)}, opts...)

	return NewDependencyCheck(CheckRedis, func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}, opts...)
}

// CachedHealthCheck caches health check results so frequent probes do not
// reach the dependency on every call.
type CachedHealthCheck struct {
	check      HealthCheck
	cacheTTL   time.Duration
	now        func() time.Time
	mu         sync.Mutex
	lastCheck  time.Time
	lastResult error
}

// NewCachedHealthCheck creates a new cached health check.
func NewCachedHealthCheck(check HealthCheck, cacheTTL time.Duration) *CachedHealthCheck {
	return &CachedHealthCheck{
		check:    check,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Name returns the name of the health check.
func (c *CachedHealthCheck) Name() string {
	return c.check.Name()
}

// Check performs the health check with caching.
func (c *CachedHealthCheck) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastCheck.IsZero() && c.now().Sub(c.lastCheck) < c.cacheTTL {
		return c.lastResult
	}

	c.lastResult = c.check.Check(ctx)
	c.lastCheck = c.now()
	return c.lastResult
}

// Tags forwards the wrapped check's tags.
func (c *CachedHealthCheck) Tags() []string {
	return tagsOf(c.check)
}

// IsCritical forwards the wrapped check's criticality.
func (c *CachedHealthCheck) IsCritical() bool {
	return isCritical(c.check)
}

// Description forwards the wrapped check's description.
func (c *CachedHealthCheck) Description() string {
	return descriptionOf(c.check)
}

func tagsOf(check HealthCheck) []string {
	if t, ok := check.(interface{ Tags() []string }); ok {
		return t.Tags()
	}
	return nil
}

func isCritical(check HealthCheck) bool {
	if c, ok := check.(interface{ IsCritical() bool }); ok {
		return c.IsCritical()
	}
	return true
}

func descriptionOf(check HealthCheck) string {
	if d, ok := check.(interface{ Description() string }); ok {
		return d.Description()
	}
	return ""
}

func hasTag(check HealthCheck, tag string) bool {
	for _, t := range tagsOf(check) {
		if t == tag {
			return true
		}
	}
	return false
}
