package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"customerportal/internal/auth"
	"customerportal/internal/config"
	"customerportal/internal/infra"
	"customerportal/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const concurrentTenants = 100

func TestTenantResolutionUnderConcurrentRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), infra.GormConfig(gormLogger.Discard))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(tenant.Models()...))

	customers := make([]tenant.Customer, concurrentTenants)
	for i := range customers {
		customers[i] = tenant.Customer{
			ID:        int64(i + 1),
			Name:      fmt.Sprintf("Tenant %03d", i),
			Subdomain: fmt.Sprintf("t%03d", i),
			IsActive:  true,
		}
	}
	require.NoError(t, db.Create(&customers).Error)

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "middleware-test-secret-0123456789abcdef",
		Issuer:               "customer-portal",
		Audience:             "customer-portal",
		TokenLifetimeMinutes: 30,
	})
	require.NoError(t, err)
	resolver := tenant.NewResolver(tenant.NewDirectory(db, nil), tenant.ResolverConfig{MainDomain: "portal.example.com"})

	r := gin.New()
	r.Use(renderErrors, auth.Authenticate(jwtSvc), TenantResolution(resolver))
	r.GET("/api/workspaces", func(c *gin.Context) {
		tc, ok := tenant.FromContext(c.Request.Context())
		want := strings.SplitN(c.Request.Host, ".", 2)[0]
		if !ok || tc.Subdomain != want {
			c.JSON(http.StatusConflict, gin.H{"want": want, "got": tc.Subdomain})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenantId": tc.TenantID, "source": string(tc.Source)})
	})

	// 偶数请求携带令牌，奇数请求只靠子域名解析
	tokens := make([]string, concurrentTenants)
	for i := 0; i < concurrentTenants; i += 2 {
		issued, err := jwtSvc.Issue(auth.IssueParams{
			UserID:          fmt.Sprintf("user-%03d", i),
			Email:           fmt.Sprintf("user%03d@example.test", i),
			IsCustomerUser:  true,
			TenantID:        customers[i].ID,
			TenantSubdomain: customers[i].Subdomain,
		})
		require.NoError(t, err)
		tokens[i] = issued.Token
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < concurrentTenants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil).WithContext(context.Background())
			req.Host = customers[i].Subdomain + ".portal.example.com"
			if tokens[i] != "" {
				req.Header.Set("Authorization", "Bearer "+tokens[i])
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if !assert.Equal(t, http.StatusOK, w.Code, "request %d: %s", i, w.Body.String()) {
				return
			}
			var body struct {
				TenantID int64  `json:"tenantId"`
				Source   string `json:"source"`
			}
			if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)) {
				assert.Equal(t, customers[i].ID, body.TenantID, "request %d", i)
				if tokens[i] != "" {
					assert.Equal(t, string(tenant.SourceToken), body.Source)
				} else {
					assert.Equal(t, string(tenant.SourceSubdomain), body.Source)
				}
			}
		}(i)
	}
	close(start)
	wg.Wait()
}
