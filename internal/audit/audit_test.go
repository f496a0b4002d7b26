package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/infra"
	"customerportal/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type chanRecorder struct {
	entries chan Entry
}

func (r *chanRecorder) Record(_ context.Context, e Entry) error {
	r.entries <- e
	return nil
}

type fakeQueue struct {
	err      error
	enqueued []Entry
}

func (q *fakeQueue) EnqueueAuditRecord(_ context.Context, e Entry) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, e)
	return nil
}

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), infra.GormConfig(gormLogger.Discard))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func TestInferEventType(t *testing.T) {
	cases := []struct {
		method string
		path   string
		status int
		want   EventType
	}{
		{http.MethodPost, "/api/auth/login", 200, EventUserLogin},
		{http.MethodPost, "/api/auth/login", 401, EventUserLoginFailed},
		{http.MethodPost, "/api/auth/reset-password/u-1", 200, EventPasswordChange},
		{http.MethodGet, "/api/reports/3/embed-config", 200, EventReportEmbed},
		{http.MethodPost, "/api/workspaces", 201, "workspace.create"},
		{http.MethodPut, "/api/shops/5", 200, "shop.update"},
		{http.MethodDelete, "/api/report-categories/1", 204, "report_category.delete"},
		{http.MethodGet, "/api/reports/3", 200, "report.view"},
		{http.MethodPatch, "/api/customers/7/status", 200, "customer.update"},
		{http.MethodGet, "/health", 200, EventAPIRequest},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferEventType(tc.method, tc.path, tc.status), "%s %s", tc.method, tc.path)
	}
}

func TestMiddlewareRecordsCallerAndTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &chanRecorder{entries: make(chan Entry, 1)}

	r := gin.New()
	r.Use(Middleware(rec))
	r.Use(func(c *gin.Context) {
		c.Set(auth.ClaimsContextKey, &auth.TokenClaims{UserID: "u-1", Email: "jane@acme.example", TenantID: 7})
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(),
			tenant.RequestTenantContext{TenantID: 7, Subdomain: "acme", Source: tenant.SourceToken}))
		c.Next()
	})
	r.DELETE("/api/shops/:id", func(c *gin.Context) {
		SetResource(c, "shop", c.Param("id"))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/shops/12", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	select {
	case e := <-rec.entries:
		assert.Equal(t, EventType("shop.delete"), e.EventType)
		assert.Equal(t, "u-1", e.UserID)
		assert.Equal(t, int64(7), e.TenantID)
		assert.Equal(t, http.StatusNoContent, e.StatusCode)
		assert.Equal(t, "12", e.Metadata["resource_id"])
		assert.NotEmpty(t, e.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was not recorded")
	}
}

func TestDBRecorderIsIdempotent(t *testing.T) {
	db := setupAuditTestDB(t)
	r := NewDBRecorder(db)
	e := Entry{
		ID: "a1", EventType: EventUserLogin, UserID: "u-1", TenantID: 7,
		Method: http.MethodPost, Path: "/api/auth/login", StatusCode: 200,
		Metadata: map[string]any{"resource_type": "session"},
	}

	require.NoError(t, r.Record(context.Background(), e))
	require.NoError(t, r.Record(context.Background(), e))

	var logs []Log
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].TenantID)
	assert.Equal(t, int64(7), *logs[0].TenantID)
	assert.Equal(t, "session", logs[0].Metadata["resource_type"])
}

func TestQueueRecorderFallsBackToDB(t *testing.T) {
	db := setupAuditTestDB(t)
	q := &fakeQueue{}
	r := NewQueueRecorder(q, NewDBRecorder(db))

	require.NoError(t, r.Record(context.Background(), Entry{EventType: EventAPIRequest, Method: "GET", Path: "/api/shops"}))
	assert.Len(t, q.enqueued, 1)
	assert.NotEmpty(t, q.enqueued[0].ID)

	q.err = errors.New("redis down")
	require.NoError(t, r.Record(context.Background(), Entry{EventType: EventAPIRequest, Method: "GET", Path: "/api/shops"}))

	var count int64
	require.NoError(t, db.Model(&Log{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
