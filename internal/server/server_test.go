package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/auth/apikey"
	"github.com/atmet-ai/foundry-facade/internal/authz"
	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/health"
	"github.com/atmet-ai/foundry-facade/internal/middleware"
	"github.com/atmet-ai/foundry-facade/internal/problem"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit"
	"github.com/atmet-ai/foundry-facade/internal/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testKey = "facade-test-key"

type createAgentRequest struct {
	Model string `json:"model" binding:"required"`
	Name  string `json:"name"`
}

func testRegistrar(api *gin.RouterGroup) {
	api.GET("/agents", func(c *gin.Context) {
		identity, _ := auth.IdentityFromGin(c)
		c.JSON(http.StatusOK, gin.H{"subject": identity.Subject})
	})
	api.POST("/agents", func(c *gin.Context) {
		var req createAgentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, req)
	})
	api.GET("/agents/:id", func(c *gin.Context) {
		_ = c.Error(util.NewNotFoundError("Agent", c.Param("id")))
	})
	api.GET("/boom", func(c *gin.Context) {
		panic("unexpected state")
	})
}

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.APIKeys.Keys = []string{testKey}
	if mutate != nil {
		mutate(cfg)
	}

	validator := apikey.NewValidator(apikey.NewCredentialSet(cfg.APIKeys.HeaderName, cfg.APIKeys.Keys))
	authenticator := auth.NewAuthenticator(validator)
	authorizer, err := authz.NewAuthorizer(cfg.Authorization)
	require.NoError(t, err)

	limiters, err := ratelimit.NewRegistry(cfg.RateLimiting)
	require.NoError(t, err)

	opts = append([]Option{
		WithRateLimiters(limiters),
		WithRegistrar(testRegistrar),
		WithVersion("1.2.3"),
	}, opts...)

	srv, err := New(cfg, authenticator, authorizer, opts...)
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problem.Response {
	t.Helper()

	assert.Equal(t, problem.ContentType, w.Header().Get("Content-Type"))

	var resp problem.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	authenticator := auth.NewAuthenticator(apikey.NewValidator(apikey.NewCredentialSet("", nil)))
	authorizer, err := authz.NewAuthorizer(config.AuthorizationConfig{})
	require.NoError(t, err)

	_, err = New(nil, authenticator, authorizer)
	assert.Error(t, err)

	_, err = New(cfg, nil, authorizer)
	assert.Error(t, err)

	_, err = New(cfg, authenticator, nil)
	assert.Error(t, err)
}

func TestServer_Info(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	w := serve(srv, http.MethodGet, "/", "", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var info Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, ServiceName, info.Service)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "Running", info.Status)
	assert.Equal(t, health.PathHealth, info.Health)
}

func TestServer_GlobalHeaders(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	w := serve(srv, http.MethodGet, "/", "", map[string]string{middleware.RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get(middleware.HeaderContentTypeOptions))
	assert.Equal(t, "DENY", w.Header().Get(middleware.HeaderFrameOptions))

	w = serve(srv, http.MethodGet, "/", "", nil)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestServer_APIKeyGate(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "missing key",
			wantStatus: http.StatusUnauthorized,
			wantDetail: auth.MessageMissingCredential,
		},
		{
			name:       "blank key",
			headers:    map[string]string{config.DefaultAPIKeyHeader: "   "},
			wantStatus: http.StatusUnauthorized,
			wantDetail: auth.MessageMissingCredential,
		},
		{
			name:       "wrong key",
			headers:    map[string]string{config.DefaultAPIKeyHeader: "not-the-key"},
			wantStatus: http.StatusUnauthorized,
			wantDetail: auth.MessageInvalidCredential,
		},
		{
			name:       "key differs in case",
			headers:    map[string]string{config.DefaultAPIKeyHeader: strings.ToUpper(testKey)},
			wantStatus: http.StatusUnauthorized,
			wantDetail: auth.MessageInvalidCredential,
		},
		{
			name:       "valid key with padding",
			headers:    map[string]string{config.DefaultAPIKeyHeader: "  " + testKey + " "},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := serve(srv, http.MethodGet, "/api/v1/agents", "", tt.headers)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantDetail == "" {
				assert.Contains(t, w.Body.String(), "api-key")
				return
			}

			resp := decodeProblem(t, w)
			assert.Equal(t, tt.wantDetail, resp.Detail)
			assert.Equal(t, "/api/v1/agents", resp.Instance)
			assert.NotEmpty(t, resp.TraceID)
			assert.NotEmpty(t, w.Header().Get(auth.HeaderWWWAuthenticate))
		})
	}
}

func TestServer_NoKeysConfiguredFailsClosed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.APIKeys.Keys = nil
	})

	w := serve(srv, http.MethodGet, "/api/v1/agents", "", map[string]string{config.DefaultAPIKeyHeader: testKey})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, auth.MessageNotConfigured, decodeProblem(t, w).Detail)
}

func TestServer_PublicRoutesSkipGate(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	for _, path := range []string{"/", health.PathHealth, health.PathReady, health.PathLive, "/metrics"} {
		w := serve(srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = false
	})

	w := serve(srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_NoRoute(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	w := serve(srv, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeProblem(t, w)
	assert.Equal(t, problem.TitleNotFound, resp.Title)
	assert.Equal(t, "/nowhere", resp.Instance)
}

func TestServer_HandlerErrorsAreNormalized(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	key := map[string]string{config.DefaultAPIKeyHeader: testKey}

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		w := serve(srv, http.MethodGet, "/api/v1/agents/asst_1", "", key)
		require.Equal(t, http.StatusNotFound, w.Code)

		resp := decodeProblem(t, w)
		assert.Equal(t, problem.TitleNotFound, resp.Title)
		assert.Contains(t, resp.Detail, "asst_1")
	})

	t.Run("binding validation", func(t *testing.T) {
		t.Parallel()

		w := serve(srv, http.MethodPost, "/api/v1/agents", `{"name":"helper"}`, key)
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeProblem(t, w)
		assert.Equal(t, problem.TitleValidation, resp.Title)
		assert.Contains(t, resp.Errors, "model")
	})

	for _, body := range []string{`{"model":`, `{"model":"gpt"`, `{"model" "gpt"}`, " ", ""} {
		t.Run("malformed json "+strconv.Quote(body), func(t *testing.T) {
			t.Parallel()

			w := serve(srv, http.MethodPost, "/api/v1/agents", body, key)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, problem.TitleValidation, decodeProblem(t, w).Title)
		})
	}

	t.Run("panic", func(t *testing.T) {
		t.Parallel()

		w := serve(srv, http.MethodGet, "/api/v1/boom", "", key)
		require.Equal(t, http.StatusInternalServerError, w.Code)

		resp := decodeProblem(t, w)
		assert.Equal(t, problem.TitleInternalError, resp.Title)
		assert.NotContains(t, resp.Detail, "unexpected state")
		assert.Empty(t, resp.StackTrace)
	})

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		w := serve(srv, http.MethodPost, "/api/v1/agents", `{"model":"gpt-4o"}`, key)
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestServer_DevelopmentExposesStack(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Environment = config.EnvironmentDevelopment
	})

	w := serve(srv, http.MethodGet, "/api/v1/boom", "", map[string]string{config.DefaultAPIKeyHeader: testKey})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeProblem(t, w)
	assert.Contains(t, resp.Detail, "unexpected state")
	assert.NotEmpty(t, resp.StackTrace)
}

func TestServer_WritesPolicyOnlyLimitsWrites(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimiting.Writes = config.RateLimitPolicyConfig{
			PermitLimit: 1,
			Window:      config.Duration(time.Hour),
			QueueLimit:  0,
		}
	})
	key := map[string]string{config.DefaultAPIKeyHeader: testKey}

	w := serve(srv, http.MethodPost, "/api/v1/agents", `{"model":"gpt-4o"}`, key)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(srv, http.MethodPost, "/api/v1/agents", `{"model":"gpt-4o"}`, key)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, decodeProblem(t, w).Status)

	w = serve(srv, http.MethodGet, "/api/v1/agents", "", key)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RateLimitRunsBeforeAuthentication(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimiting.General = config.RateLimitPolicyConfig{
			PermitLimit: 1,
			Window:      config.Duration(time.Hour),
			QueueLimit:  0,
		}
	})

	w := serve(srv, http.MethodGet, "/api/v1/agents", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(srv, http.MethodGet, "/api/v1/agents", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestServer_AuthorizationExpression(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Authorization.WriteExpression = `identity.sub == "someone-else"`
	})
	key := map[string]string{config.DefaultAPIKeyHeader: testKey}

	w := serve(srv, http.MethodGet, "/api/v1/agents", "", key)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(srv, http.MethodPost, "/api/v1/agents", `{"model":"gpt-4o"}`, key)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, problem.DetailUnauthorized, decodeProblem(t, w).Detail)
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	w := serve(srv, http.MethodOptions, "/api/v1/agents", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServer_BodyLimit(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxBodySize = 16
	})

	w := serve(srv, http.MethodPost, "/api/v1/agents", `{"model":"a-very-long-deployment-name"}`,
		map[string]string{config.DefaultAPIKeyHeader: testKey})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, problem.TitlePayloadTooLarge, decodeProblem(t, w).Title)
}

func TestServer_StartShutdown(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.Address = "127.0.0.1"
		cfg.Server.Port = 0
	})

	assert.Equal(t, StateStopped, srv.State())
	assert.Error(t, srv.Shutdown(context.Background()))

	require.NoError(t, srv.Start(context.Background()))
	assert.True(t, srv.IsRunning())
	assert.NotEmpty(t, srv.ListenAddr())
	assert.Error(t, srv.Start(context.Background()))

	resp, err := http.Get("http://" + srv.ListenAddr() + health.PathLive)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, StateStopped, srv.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
