package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"customerportal/internal/audit"
	"customerportal/internal/common"
	"customerportal/internal/config"
	"customerportal/internal/infra"
	"customerportal/internal/report"
	"customerportal/internal/seed"
	"customerportal/internal/shop"
	"customerportal/internal/tenant"
	"customerportal/internal/user"
	"customerportal/internal/workspace"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	testPassword = "Str0ng!Pass"
	adminHost    = "portal.example.com"
	acmeHost     = "acme.portal.example.com"
)

const routerSeed = `
customers:
  - name: Acme
    subdomain: acme
    categories:
      - name: Sales
        display_order: 1
    workspaces:
      - name: Acme Analytics
        reports:
          - name: Weekly
            description: Weekly sales
            powerbi_report_id: 00000000-0000-0000-0000-00000000a001
            category: Sales
  - name: Globex
    subdomain: globex
    categories:
      - name: Sales
        display_order: 1
    workspaces:
      - name: Globex Insights
users:
  - email: ops@portal.example.com
    name: Ops
    password: Str0ng!Pass
    is_cci_user: true
    roles: [Admin]
  - email: viewer@acme.test
    name: Viewer
    password: Str0ng!Pass
    is_customer_user: true
    roles: [CustomerViewer]
    customers: [acme]
`

type memoryRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *memoryRecorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryRecorder) events() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.EventType)
	}
	return out
}

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	recorder *memoryRecorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), infra.GormConfig(gormLogger.Discard))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, models := range [][]any{tenant.Models(), user.Models(), workspace.Models(), report.Models(), shop.Models(), audit.Models()} {
		require.NoError(t, db.AutoMigrate(models...))
	}
	require.NoError(t, user.EnsureSystemPermissions(context.Background(), db))
	f, err := seed.Parse([]byte(routerSeed))
	require.NoError(t, err)
	require.NoError(t, seed.Apply(context.Background(), db, f))

	cfg := &config.Config{
		App: config.AppConfig{Name: "customer-portal", Environment: config.EnvProduction, MainDomain: adminHost},
		Auth: config.AuthConfig{
			JWTSecret: "router-test-secret-0123456789abcdef",
			Issuer:    "customer-portal",
			Audience:  "customer-portal",
		},
		RateLimit: config.RateLimitConfig{LoginPerMinute: 3},
	}
	container, err := NewAppContainer(db, cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(container.Close)

	rec := &memoryRecorder{}
	container.AuditRecorder = rec
	return &testServer{router: SetupRouter(container), db: db, recorder: rec}
}

func (s *testServer) do(t *testing.T, method, host, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, host, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, host, "/api/auth/login", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res user.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (s *testServer) workspaceID(t *testing.T, subdomain string) int64 {
	t.Helper()
	var ws workspace.Workspace
	require.NoError(t, s.db.
		Joins("JOIN customers ON customers.id = workspaces.customer_id").
		Where("customers.subdomain = ?", subdomain).
		First(&ws).Error)
	return ws.ID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var body common.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, adminHost, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "customer-portal")

	w = s.do(t, http.MethodGet, adminHost, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, adminHost, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginOnTenantHost(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, acmeHost, "viewer@acme.test")

	w := s.do(t, http.MethodGet, acmeHost, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant_subdomain":"acme"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Eventually(t, func() bool {
		for _, e := range s.recorder.events() {
			if e == audit.EventUserLogin {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, acmeHost, "/api/auth/login", "", map[string]string{"email": "viewer@acme.test", "password": "Wr0ng!Pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeError(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, common.CodeInvalidCredentials, body.Code)
	assert.Empty(t, body.Detail)
}

func TestLoginOnForeignTenantHostIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "globex.portal.example.com", "/api/auth/login", "", map[string]string{"email": "viewer@acme.test", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, common.CodeNotTenantMember, decodeError(t, w).Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"email": "viewer@acme.test", "password": "Wr0ng!Pass"}

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, acmeHost, "/api/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(t, http.MethodPost, acmeHost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, common.CodeTooManyRequests, decodeError(t, w).Code)
}

func TestWorkspacesAreTenantScoped(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, acmeHost, "viewer@acme.test")

	w := s.do(t, http.MethodGet, acmeHost, "/api/workspaces", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []workspace.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Acme Analytics", views[0].Name)

	globexID := s.workspaceID(t, "globex")
	w = s.do(t, http.MethodGet, acmeHost, fmt.Sprintf("/api/workspaces/%d", globexID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, acmeHost, "/api/workspaces/abc", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewerCannotWriteWorkspaces(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, acmeHost, "viewer@acme.test")

	w := s.do(t, http.MethodPost, acmeHost, "/api/workspaces", token, map[string]string{"name": "Shadow"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAnonymousRequestIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, acmeHost, "/api/workspaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCustomersRequireOperatorOnAdminPortal(t *testing.T) {
	s := newTestServer(t)
	viewer := s.login(t, acmeHost, "viewer@acme.test")

	w := s.do(t, http.MethodGet, acmeHost, "/api/customers", viewer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ops := s.login(t, adminHost, "ops@portal.example.com")
	w = s.do(t, http.MethodGet, adminHost, "/api/customers", ops, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var customers []tenant.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customers))
	assert.Len(t, customers, 2)
}

func TestCreateCustomerRejectsDuplicateSubdomain(t *testing.T) {
	s := newTestServer(t)
	ops := s.login(t, adminHost, "ops@portal.example.com")

	w := s.do(t, http.MethodPost, adminHost, "/api/customers", ops, map[string]string{"name": "Acme Again", "subdomain": "ACME"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.CodeInvalidOperation, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, adminHost, "/api/customers", ops, map[string]string{"name": "Initech", "subdomain": "initech"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestEmbedConfigWithoutBIIsNotImplemented(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, acmeHost, "viewer@acme.test")

	var r report.Report
	require.NoError(t, s.db.Where("name = ?", "Weekly").First(&r).Error)

	w := s.do(t, http.MethodGet, acmeHost, fmt.Sprintf("/api/reports/%d/embed-config", r.ID), token, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, common.CodeEmbedNotConfigured, decodeError(t, w).Code)
}

func TestRolesRequireCustomerAdminRole(t *testing.T) {
	s := newTestServer(t)
	ops := s.login(t, adminHost, "ops@portal.example.com")

	w := s.do(t, http.MethodGet, adminHost, "/api/roles", ops, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
