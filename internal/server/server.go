package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/authz"
	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/health"
	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/problem"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit"
	"github.com/atmet-ai/foundry-facade/internal/util"
)

// State represents the server state.
type State int32

const (
	// StateStopped indicates the server is stopped.
	StateStopped State = iota
	// StateStarting indicates the server is starting.
	StateStarting
	// StateRunning indicates the server is running.
	StateRunning
	// StateStopping indicates the server is stopping.
	StateStopping
)

// String returns the string representation of the state.
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

// Registrar mounts handlers onto the authenticated API group.
type Registrar func(api *gin.RouterGroup)

var installValidator sync.Once

// Server owns the gin engine and the HTTP listener.
type Server struct {
	cfg           *config.Config
	engine        *gin.Engine
	httpServer    *http.Server
	listener      net.Listener
	authenticator *auth.Authenticator
	authorizer    *authz.Authorizer
	logger        observability.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	health        *health.Handler
	limiters      *ratelimit.Registry
	normalizer    *problem.Normalizer
	registrars    []Registrar
	version       string
	state         atomic.Int32
	startTime     time.Time
	done          chan struct{}
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the facade metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithHealth sets the health handler. Without one only the self check runs.
func WithHealth(handler *health.Handler) Option {
	return func(s *Server) {
		s.health = handler
	}
}

// WithRateLimiters sets the rate limit policies for the API group.
func WithRateLimiters(limiters *ratelimit.Registry) Option {
	return func(s *Server) {
		s.limiters = limiters
	}
}

// WithRegistrar adds handlers to the authenticated API group.
func WithRegistrar(registrar Registrar) Option {
	return func(s *Server) {
		s.registrars = append(s.registrars, registrar)
	}
}

// WithVersion sets the version reported by the info endpoint.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a server and builds its engine. Authentication and
// authorization are mandatory for the API group.
func New(
	cfg *config.Config,
	authenticator *auth.Authenticator,
	authorizer *authz.Authorizer,
	opts ...Option,
) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}

	s := &Server{
		cfg:           cfg,
		authenticator: authenticator,
		authorizer:    authorizer,
		logger:        observability.NopLogger(),
		version:       "dev",
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = observability.NewMetrics(observability.DefaultNamespace)
	}

	if s.tracer == nil {
		tracer, err := observability.NewTracer(observability.TracerConfig{})
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}
		s.tracer = tracer
	}

	if s.health == nil {
		s.health = health.NewHandler(health.WithLogger(s.logger), health.WithVersion(s.version))
		s.health.AddCheck(health.SelfCheck())
	}

	if s.limiters == nil {
		limiters, err := ratelimit.NewRegistry(config.RateLimitingConfig{})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiters: %w", err)
		}
		s.limiters = limiters
	}

	s.normalizer = problem.NewNormalizer(
		problem.WithDevelopment(cfg.IsDevelopment()),
		problem.WithLogger(s.logger),
		problem.WithMetrics(s.metrics),
	)

	installValidator.Do(func() {
		binding.Validator = util.NewValidator("binding")
	})

	s.engine = gin.New()
	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.state.Store(int32(StateStopped))

	return s, nil
}

// Engine returns the gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ServeHTTP serves a request through the engine.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return net.JoinHostPort(s.cfg.Server.Address, strconv.Itoa(s.cfg.Server.Port))
}

// ListenAddr returns the bound address while the server is running.
func (s *Server) ListenAddr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// State returns the current server state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Uptime returns the time since Start.
func (s *Server) Uptime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return errors.New("server is not in stopped state")
	}

	addr := s.Address()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.cfg.Server.ReadTimeout.Duration(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       s.cfg.Server.IdleTimeout.Duration(),
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	s.done = make(chan struct{})

	go s.serve(ln)

	s.startTime = time.Now()
	s.state.Store(int32(StateRunning))

	s.logger.Info("server started",
		observability.String("address", ln.Addr().String()),
		observability.String("environment", s.cfg.Environment),
		observability.String("version", s.version),
	)

	return nil
}

func (s *Server) serve(ln net.Listener) {
	defer close(s.done)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server error", observability.Error(err))
	}
}

// Shutdown drains in-flight requests and stops the server. Without a
// deadline on ctx the configured shutdown timeout applies.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return errors.New("server is not running")
	}

	s.logger.Info("stopping server")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
	}

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			shutdownErr = fmt.Errorf("failed to close server: %w", closeErr)
		} else {
			shutdownErr = fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
	}
	<-s.done

	if err := s.limiters.Close(); err != nil {
		s.logger.Warn("failed to close rate limiters", observability.Error(err))
	}

	s.state.Store(int32(StateStopped))

	s.logger.Info("server stopped", observability.Duration("uptime", s.Uptime()))

	return shutdownErr
}
