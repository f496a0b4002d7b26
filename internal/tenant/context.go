package tenant

import (
	"context"

	"customerportal/internal/common"
	"customerportal/internal/logger"
)

// Source 租户上下文的来源
type Source string

const (
	SourceNone        Source = ""
	SourceToken       Source = "token"
	SourceAdminPortal Source = "admin_portal"
	SourceSubdomain   Source = "subdomain"
	SourceDevFallback Source = "dev_fallback"
)

// RequestTenantContext 单个请求内的租户信息
// 在 HTTP 边界由 Resolver 写入一次，之后只读；不得跨请求共享
type RequestTenantContext struct {
	TenantID    int64 // 0 表示未解析出租户
	Subdomain   string
	AdminPortal bool
	Source      Source
}

// HasTenant 是否已解析出租户
func (c RequestTenantContext) HasTenant() bool {
	return c.TenantID > 0
}

type requestTenantKey struct{}

// WithContext 将租户上下文附加到 context 上，同时写入日志字段
func WithContext(ctx context.Context, tc RequestTenantContext) context.Context {
	ctx = logger.WithTenant(ctx, tc.TenantID, tc.AdminPortal)
	return context.WithValue(ctx, requestTenantKey{}, tc)
}

// FromContext 读取租户上下文，第二个返回值表示是否存在
func FromContext(ctx context.Context) (RequestTenantContext, bool) {
	if ctx == nil {
		return RequestTenantContext{}, false
	}
	tc, ok := ctx.Value(requestTenantKey{}).(RequestTenantContext)
	return tc, ok
}

// CurrentTenantID 返回当前请求的租户 ID，未解析出租户时返回 ErrTenantRequired
func CurrentTenantID(ctx context.Context) (int64, error) {
	tc, ok := FromContext(ctx)
	if !ok || !tc.HasTenant() {
		return 0, common.TenantRequired()
	}
	return tc.TenantID, nil
}

// IsAdminPortal 当前请求是否处于管理门户模式
func IsAdminPortal(ctx context.Context) bool {
	tc, ok := FromContext(ctx)
	return ok && tc.AdminPortal
}
