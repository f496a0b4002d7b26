package auth

import (
	"context"

	"customerportal/internal/common"

	"github.com/gin-gonic/gin"
)

// 内置角色
const (
	RoleAdmin          = "Admin"
	RoleCustomerAdmin  = "CustomerAdmin"
	RoleCustomerViewer = "CustomerViewer"
)

// ClaimsContextKey gin 上下文中保存令牌声明的键
const ClaimsContextKey = "auth_claims"

type claimsKey struct{}

// WithClaims 将令牌声明附加到标准 context
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext 从标准 context 读取令牌声明
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsKey{}).(*TokenClaims)
	return claims, ok && claims != nil
}

// GetClaims 从 Gin Context 读取令牌声明
func GetClaims(c *gin.Context) (*TokenClaims, bool) {
	v, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*TokenClaims)
	return claims, ok && claims != nil
}

// Authenticate 解析 Authorization 头
// 没有令牌的请求继续向下（匿名）；携带了无效令牌的请求直接返回 401
func Authenticate(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token := ExtractTokenFromBearer(header)
		if token == "" {
			common.Fail(c, common.Unauthorized("invalid authorization header"))
			return
		}

		claims, err := jwtService.Validate(token)
		if err != nil {
			common.Fail(c, common.Unauthorized("invalid or expired token").Wrap(err))
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireAuthenticated 要求已认证
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); !ok {
			common.Fail(c, common.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireRole 要求拥有任一角色
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			common.Fail(c, common.ErrUnauthorized)
			return
		}
		if !claims.HasAnyRole(roles...) {
			common.Fail(c, common.Forbidden("insufficient role"))
			return
		}
		c.Next()
	}
}
