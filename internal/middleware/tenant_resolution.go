package middleware

import (
	"customerportal/internal/auth"
	"customerportal/internal/common"
	"customerportal/internal/tenant"

	"github.com/gin-gonic/gin"
)

// TenantContextKey gin 上下文中的租户上下文键
const TenantContextKey = "tenant_context"

// TenantResolution 在认证之后解析请求租户并写入 request context
// 认证端点跳过，解析失败时中断请求
func TenantResolution(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := tenant.ResolveRequest{
			Path: c.Request.URL.Path,
			Host: c.Request.Host,
		}
		if claims, ok := auth.GetClaims(c); ok {
			req.Token = &tenant.TokenTenant{
				TenantID:        claims.TenantID,
				TenantSubdomain: claims.TenantSubdomain,
				IsAdminPortal:   claims.IsAdminPortal,
			}
		}

		tc, skip, err := resolver.Resolve(c.Request.Context(), req)
		if err != nil {
			common.Fail(c, err)
			return
		}
		if skip {
			c.Next()
			return
		}

		c.Set(TenantContextKey, tc)
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))
		c.Next()
	}
}

// GetTenantContext 从 gin 上下文读取已解析的租户
func GetTenantContext(c *gin.Context) (tenant.RequestTenantContext, bool) {
	if v, ok := c.Get(TenantContextKey); ok {
		if tc, ok := v.(tenant.RequestTenantContext); ok {
			return tc, true
		}
	}
	return tenant.FromContext(c.Request.Context())
}
