package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/authz"
	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/health"
	"github.com/atmet-ai/foundry-facade/internal/middleware"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit"
)

// APIPrefix is the route group every business handler lives under.
const APIPrefix = "/api/v1"

// ServiceName is reported by the info endpoint.
const ServiceName = "Foundry Facade"

// Info is the body of the root endpoint.
type Info struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Health  string `json:"health"`
}

// setupMiddleware installs the global chain. The normalizer sits after
// the access log so the logged status is the problem status.
func (s *Server) setupMiddleware() {
	s.engine.Use(
		middleware.RequestID(),
		middleware.Tracing(s.tracer),
		middleware.AccessLogWithConfig(middleware.AccessLogConfig{
			Logger:    s.logger,
			Metrics:   s.metrics,
			SkipPaths: []string{health.PathLive},
		}),
		s.normalizer.Middleware(),
		middleware.SecurityHeaders(),
		middleware.CORS(s.cfg.CORS),
		middleware.BodyLimit(s.cfg.Server.MaxBodySize, s.logger),
	)
}

func (s *Server) setupRoutes() error {
	s.engine.GET("/", s.info)
	s.health.RegisterRoutes(s.engine)

	if s.cfg.Metrics.Enabled {
		s.engine.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	s.engine.NoRoute(s.normalizer.NoRoute())

	general, err := s.limiters.Get(config.PolicyGeneral)
	if err != nil {
		return err
	}
	writes, err := s.limiters.Get(config.PolicyWrites)
	if err != nil {
		return err
	}

	api := s.engine.Group(APIPrefix,
		ratelimit.Middleware(general, ratelimit.WithMiddlewareLogger(s.logger)),
		ratelimit.Middleware(writes,
			ratelimit.WithMiddlewareLogger(s.logger),
			ratelimit.WithRequestFilter(func(r *http.Request) bool {
				return authz.IsWriteMethod(r.Method)
			}),
		),
		auth.Middleware(s.authenticator),
		authz.Middleware(s.authorizer),
	)

	for _, register := range s.registrars {
		register(api)
	}

	return nil
}

func (s *Server) info(c *gin.Context) {
	c.JSON(http.StatusOK, Info{
		Service: ServiceName,
		Version: s.version,
		Status:  "Running",
		Health:  health.PathHealth,
	})
}
