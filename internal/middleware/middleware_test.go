package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/common"
	"customerportal/internal/config"
	"customerportal/internal/logger"
	"customerportal/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory map[string]*tenant.Customer

func (d stubDirectory) FindActiveBySubdomain(_ context.Context, subdomain string) (*tenant.Customer, error) {
	c, ok := d[subdomain]
	if !ok || !c.IsActive {
		return nil, nil
	}
	return c, nil
}

func (d stubDirectory) FirstActive(context.Context) (*tenant.Customer, error) { return nil, nil }

func (d stubDirectory) IsMember(context.Context, int64, string) (bool, error) { return false, nil }

func renderErrors(c *gin.Context) {
	c.Next()
	if len(c.Errors) > 0 {
		status, body := common.BuildErrorResponse(c.Errors.Last().Err, false)
		c.JSON(status, body)
	}
}

func newTenantRouter(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "middleware-test-secret-0123456789abcdef",
		Issuer:               "customer-portal",
		Audience:             "customer-portal",
		TokenLifetimeMinutes: 30,
	})
	require.NoError(t, err)

	resolver := tenant.NewResolver(stubDirectory{
		"acme": {ID: 7, Subdomain: "acme", IsActive: true},
	}, tenant.ResolverConfig{MainDomain: "portal.example.com"})

	r := gin.New()
	r.Use(renderErrors, auth.Authenticate(jwtSvc), TenantResolution(resolver))
	probe := func(c *gin.Context) {
		tc, ok := tenant.FromContext(c.Request.Context())
		fromGin, _ := GetTenantContext(c)
		c.JSON(http.StatusOK, gin.H{
			"resolved": ok,
			"tenantId": tc.TenantID,
			"admin":    tc.AdminPortal,
			"source":   string(fromGin.Source),
		})
	}
	r.GET("/api/workspaces", probe)
	r.POST("/api/auth/login", probe)
	return r, jwtSvc
}

func TestTenantResolutionFromSubdomain(t *testing.T) {
	r, _ := newTenantRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req.Host = "acme.portal.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resolved":true,"tenantId":7,"admin":false,"source":"subdomain"}`, w.Body.String())
}

func TestTenantResolutionPrefersToken(t *testing.T) {
	r, jwtSvc := newTenantRouter(t)
	issued, err := jwtSvc.Issue(auth.IssueParams{
		UserID:          "u-1",
		Email:           "jane@acme.test",
		Roles:           []string{auth.RoleCustomerViewer},
		IsCustomerUser:  true,
		TenantID:        9,
		TenantSubdomain: "globex",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req.Host = "acme.portal.example.com"
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resolved":true,"tenantId":9,"admin":false,"source":"token"}`, w.Body.String())
}

func TestTenantResolutionAdminPortalHost(t *testing.T) {
	r, _ := newTenantRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req.Host = "portal.example.com:443"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resolved":true,"tenantId":0,"admin":true,"source":"admin_portal"}`, w.Body.String())
}

func TestTenantResolutionUnknownHostIs404(t *testing.T) {
	r, _ := newTenantRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req.Host = "nobody.portal.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":2000`)
}

func TestTenantResolutionSkipsAuthEndpoints(t *testing.T) {
	r, _ := newTenantRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Host = "nobody.portal.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resolved":false`)
}

func TestRequestIDPropagatesToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/probe", func(c *gin.Context) {
		c.String(http.StatusOK, logger.GetRequestID(c.Request.Context())+"|"+GetRequestIDFromGin(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123|req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-123", w.Header().Get(HeaderTraceID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated+"|"+generated, w.Body.String())
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 2})
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per key")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, 2, rl.ActiveClients())
}

func TestRateLimitByIPReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 1})
	defer rl.Stop()

	r := gin.New()
	r.Use(renderErrors, RateLimitByIP(rl))
	r.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":1009`)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	defer rl.Stop()
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("k"))
	}
	assert.Zero(t, rl.ActiveClients())
}
