package config

import (
	"time"
)

// Environment names.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Rate limit policy names.
const (
	PolicyGeneral = "general"
	PolicyWrites  = "writes"
)

// Rate limit store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// DefaultAPIKeyHeader is the header the gate reads credentials from.
const DefaultAPIKeyHeader = "X-Api-Key"

// Config holds all configuration settings for the facade.
// It is loaded once at startup and never re-read.
type Config struct {
	Environment   string              `yaml:"environment" json:"environment" validate:"oneof=development production"`
	Server        ServerConfig        `yaml:"server" json:"server"`
	APIKeys       APIKeyConfig        `yaml:"apiKeys" json:"apiKeys"`
	RateLimiting  RateLimitingConfig  `yaml:"rateLimiting" json:"rateLimiting"`
	Authorization AuthorizationConfig `yaml:"authorization" json:"authorization"`
	CORS          CORSConfig          `yaml:"cors" json:"cors"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Tracing       TracingConfig       `yaml:"tracing" json:"tracing"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	AzureAI       AzureAIConfig       `yaml:"azureAI" json:"azureAI"`
}

// IsDevelopment reports whether diagnostic detail may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	Port            int      `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout" validate:"gte=0"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout" validate:"gte=0"`
	IdleTimeout     Duration `yaml:"idleTimeout" json:"idleTimeout" validate:"gte=0"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout" validate:"gt=0"`
	MaxBodySize     int64    `yaml:"maxBodySize" json:"maxBodySize" validate:"gte=0"`
}

// APIKeyConfig configures the credential store.
// An empty key list is accepted; every request is then rejected.
type APIKeyConfig struct {
	HeaderName string   `yaml:"headerName" json:"headerName" validate:"required"`
	Keys       []string `yaml:"keys" json:"keys"`
}

// RateLimitPolicyConfig configures one fixed-window policy.
type RateLimitPolicyConfig struct {
	PermitLimit int      `yaml:"permitLimit" json:"permitLimit" validate:"gt=0"`
	Window      Duration `yaml:"window" json:"window" validate:"gt=0"`
	QueueLimit  int      `yaml:"queueLimit" json:"queueLimit" validate:"gte=0"`
}

// RateLimitingConfig configures the named rate limit policies.
type RateLimitingConfig struct {
	Enabled bool                  `yaml:"enabled" json:"enabled"`
	General RateLimitPolicyConfig `yaml:"general" json:"general"`
	Writes  RateLimitPolicyConfig `yaml:"writes" json:"writes"`
	Store   string                `yaml:"store" json:"store" validate:"oneof=memory redis"`
	Redis   RedisConfig           `yaml:"redis" json:"redis"`
}

// RedisConfig configures the shared rate limit store.
type RedisConfig struct {
	Address   string   `yaml:"address" json:"address" validate:"omitempty,hostname_port"`
	Password  string   `yaml:"password" json:"password"`
	DB        int      `yaml:"db" json:"db" validate:"gte=0"`
	KeyPrefix string   `yaml:"keyPrefix" json:"keyPrefix"`
	Timeout   Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// AuthorizationConfig holds optional CEL expressions per capability.
// An empty expression grants the capability to every authenticated caller.
type AuthorizationConfig struct {
	ReadExpression  string `yaml:"readExpression" json:"readExpression"`
	WriteExpression string `yaml:"writeExpression" json:"writeExpression"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins" validate:"dive,url"`
	MaxAge         Duration `yaml:"maxAge" json:"maxAge" validate:"gte=0"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate" validate:"gte=0,lte=1"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
	Insecure     bool    `yaml:"insecure" json:"insecure"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"startswith=/"`
}

// AzureAIConfig configures the upstream Azure AI Foundry project.
type AzureAIConfig struct {
	ProjectEndpoint         string               `yaml:"projectEndpoint" json:"projectEndpoint" validate:"omitempty,url"`
	ManagedIdentityClientID string               `yaml:"managedIdentityClientId" json:"managedIdentityClientId"`
	APIVersion              string               `yaml:"apiVersion" json:"apiVersion" validate:"required"`
	DefaultModelDeployment  string               `yaml:"defaultModelDeployment" json:"defaultModelDeployment"`
	RequestTimeout          Duration             `yaml:"requestTimeout" json:"requestTimeout" validate:"gt=0"`
	MaxRetryAttempts        int                  `yaml:"maxRetryAttempts" json:"maxRetryAttempts" validate:"gte=0,lte=10"`
	EnableTelemetry         bool                 `yaml:"enableTelemetry" json:"enableTelemetry"`
	RequestsPerSecond       float64              `yaml:"requestsPerSecond" json:"requestsPerSecond" validate:"gte=0"`
	Burst                   int                  `yaml:"burst" json:"burst" validate:"gte=0"`
	CircuitBreaker          CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
}

// CircuitBreakerConfig configures the breaker around upstream calls.
type CircuitBreakerConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Threshold   uint32   `yaml:"threshold" json:"threshold" validate:"gte=1"`
	Timeout     Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	MaxRequests uint32   `yaml:"maxRequests" json:"maxRequests" validate:"gte=1"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentProduction,
		Server: ServerConfig{
			Address:         "",
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(150 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			MaxBodySize:     10 << 20,
		},
		APIKeys: APIKeyConfig{
			HeaderName: DefaultAPIKeyHeader,
		},
		RateLimiting: RateLimitingConfig{
			Enabled: true,
			General: RateLimitPolicyConfig{
				PermitLimit: 100,
				Window:      Duration(time.Minute),
				QueueLimit:  10,
			},
			Writes: RateLimitPolicyConfig{
				PermitLimit: 30,
				Window:      Duration(time.Minute),
				QueueLimit:  5,
			},
			Store: StoreMemory,
			Redis: RedisConfig{
				KeyPrefix: "facade:ratelimit:",
				Timeout:   Duration(time.Second),
			},
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MaxAge:         Duration(12 * time.Hour),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
			ServiceName:  "foundry-facade",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		AzureAI: AzureAIConfig{
			APIVersion:             "v1",
			DefaultModelDeployment: "gpt-4o",
			RequestTimeout:         Duration(120 * time.Second),
			MaxRetryAttempts:       3,
			EnableTelemetry:        true,
			RequestsPerSecond:      0,
			Burst:                  10,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				Threshold:   5,
				Timeout:     Duration(30 * time.Second),
				MaxRequests: 1,
			},
		},
	}
}

// Policy returns the rate limit policy with the given name.
func (c *RateLimitingConfig) Policy(name string) (RateLimitPolicyConfig, bool) {
	switch name {
	case PolicyGeneral:
		return c.General, true
	case PolicyWrites:
		return c.Writes, true
	default:
		return RateLimitPolicyConfig{}, false
	}
}
