package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/util"
)

// ServiceName identifies Azure AI Foundry in errors and metrics.
const ServiceName = "azure-ai"

// Scope is the Entra ID scope for Azure AI Foundry data-plane calls.
const Scope = "https://ai.azure.com/.default"

const moduleName = "foundry-facade"

// ErrNotConfigured is returned when no project endpoint is set.
var ErrNotConfigured = errors.New("azure ai project endpoint is not configured")

// Client issues requests against an Azure AI Foundry project endpoint.
type Client struct {
	endpoint   string
	apiVersion string
	timeout    time.Duration
	pipeline   runtime.Pipeline
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     observability.Logger
	metrics    *Metrics
}

// Option is a functional option for the client.
type Option func(*clientOptions)

type clientOptions struct {
	credential        azcore.TokenCredential
	transport         policy.Transporter
	retry             *policy.RetryOptions
	logger            observability.Logger
	metrics           *Metrics
	facadeMetrics     *observability.Metrics
	version           string
	allowInsecureHTTP bool
}

// WithCredential sets the token credential. Without one the client
// builds an azidentity credential from the configuration.
func WithCredential(credential azcore.TokenCredential) Option {
	return func(o *clientOptions) {
		o.credential = credential
	}
}

// WithTransport sets the HTTP transport used by the pipeline.
func WithTransport(transport policy.Transporter) Option {
	return func(o *clientOptions) {
		o.transport = transport
	}
}

// WithRetryOptions overrides the retry policy derived from the configuration.
func WithRetryOptions(retry policy.RetryOptions) Option {
	return func(o *clientOptions) {
		o.retry = &retry
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the upstream request metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithBreakerMetrics publishes circuit breaker state on the facade metrics.
func WithBreakerMetrics(metrics *observability.Metrics) Option {
	return func(o *clientOptions) {
		o.facadeMetrics = metrics
	}
}

// WithVersion sets the version reported in the User-Agent.
func WithVersion(version string) Option {
	return func(o *clientOptions) {
		o.version = version
	}
}

// WithInsecureHTTP allows bearer tokens over plain HTTP, for local emulators.
func WithInsecureHTTP(allow bool) Option {
	return func(o *clientOptions) {
		o.allowInsecureHTTP = allow
	}
}

// NewClient creates a client for the configured project.
func NewClient(cfg config.AzureAIConfig, opts ...Option) (*Client, error) {
	if cfg.ProjectEndpoint == "" {
		return nil, ErrNotConfigured
	}

	o := &clientOptions{
		logger:  observability.NopLogger(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.credential == nil {
		credential, err := newCredential(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating azure credential: %w", err)
		}
		o.credential = credential
	}

	retry := retryOptions(cfg.MaxRetryAttempts)
	if o.retry != nil {
		retry = *o.retry
	}

	bearer := runtime.NewBearerTokenPolicy(o.credential, []string{Scope}, &policy.BearerTokenOptions{
		InsecureAllowCredentialWithHTTP: o.allowInsecureHTTP,
	})

	clientOpts := &policy.ClientOptions{
		Retry:     retry,
		Transport: o.transport,
		Telemetry: policy.TelemetryOptions{Disabled: !cfg.EnableTelemetry},
	}

	c := &Client{
		endpoint:   strings.TrimSuffix(cfg.ProjectEndpoint, "/"),
		apiVersion: cfg.APIVersion,
		timeout:    cfg.RequestTimeout.Duration(),
		pipeline: runtime.NewPipeline(moduleName, o.version, runtime.PipelineOptions{
			PerRetry: []policy.Policy{bearer},
		}, clientOpts),
		logger:  o.logger,
		metrics: o.metrics,
	}

	if cfg.CircuitBreaker.Enabled {
		c.breaker = newBreaker(ServiceName, cfg.CircuitBreaker, o.logger, o.facadeMetrics)
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return c, nil
}

// newCredential picks a managed identity when a client ID is configured
// and the default credential chain otherwise.
func newCredential(cfg config.AzureAIConfig) (azcore.TokenCredential, error) {
	if cfg.ManagedIdentityClientID != "" {
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.ManagedIdentityClientID),
		})
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

// retryOptions maps the configured attempt count onto azcore. azcore reads
// zero as "use the default", so zero attempts becomes -1.
func retryOptions(attempts int) policy.RetryOptions {
	if attempts <= 0 {
		return policy.RetryOptions{MaxRetries: -1}
	}
	return policy.RetryOptions{MaxRetries: int32(attempts)} //nolint:gosec // validated to be <= 10
}

// Endpoint returns the project endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// BreakerState returns the circuit breaker state. Without a breaker the
// circuit is always closed.
func (c *Client) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// Do sends a request to path under the project endpoint and decodes a
// JSON response into out when out is non-nil. body, when non-nil, is sent
// as JSON.
func (c *Client) Do(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: waiting for upstream pacing: %w", operation, err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call := func() (interface{}, error) {
		return nil, c.send(ctx, operation, method, path, query, body, out)
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(call)
	} else {
		_, err = call()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return util.NewUpstreamErrorWithCause(ServiceName, http.StatusServiceUnavailable, "circuit breaker is open", err)
	}

	return err
}

func (c *Client) send(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	start := time.Now()

	req, err := runtime.NewRequest(ctx, method, c.endpoint+path)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", operation, err)
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.apiVersion != "" {
		q.Set("api-version", c.apiVersion)
	}
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return fmt.Errorf("%s: encoding request: %w", operation, err)
		}
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		c.record(operation, 0, start)
		c.logger.WithContext(ctx).Warn("upstream request failed",
			observability.String("operation", operation),
			observability.Error(err),
		)
		return fmt.Errorf("%s: %w", operation, err)
	}

	c.record(operation, resp.StatusCode, start)

	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent) {
		respErr := runtime.NewResponseError(resp)
		c.logger.WithContext(ctx).Warn("upstream returned an error",
			observability.String("operation", operation),
			observability.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%s: %w", operation, respErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := runtime.UnmarshalAsJSON(resp, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", operation, err)
	}

	return nil
}

func (c *Client) record(operation string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordRequest(operation, status, time.Since(start))
	}
}
