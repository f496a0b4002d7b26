package tenant

import (
	"context"
	"net"
	"strings"

	"customerportal/internal/common"
	"customerportal/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuthPathPrefix 认证端点前缀，不参与租户解析
const AuthPathPrefix = "/api/auth/"

// 开发回退时使用的占位租户
const (
	PlaceholderTenantID        int64 = 1
	PlaceholderTenantSubdomain       = "localhost"
)

// TokenTenant 令牌中与租户相关的声明
type TokenTenant struct {
	TenantID        int64
	TenantSubdomain string
	IsAdminPortal   bool
}

// ResolveRequest 解析一个请求所需的输入
type ResolveRequest struct {
	Path  string
	Host  string
	Token *TokenTenant // 未认证时为 nil
}

// ResolverConfig 解析器配置
type ResolverConfig struct {
	MainDomain        string
	DevLoopbackAdmin  bool
	DevTenantFallback bool
}

// Resolver 按固定顺序决定请求的租户身份，每一步命中即返回
//
//  1. 认证端点跳过解析
//  2. 令牌已携带 IsAdminPortal 或 TenantId 时直接采用
//  3. 主域名、admin 子域名或（开发开关下的）回环地址进入管理门户模式
//  4. 取首个主机标签作为子域名查找活跃租户，找不到返回 TenantNotFound
//  5. 回环地址且开启开发回退时，使用第一个活跃租户或占位租户
//
// 解析器只读租户目录。
type Resolver struct {
	dir    Directory
	cfg    ResolverConfig
	tracer trace.Tracer
}

// NewResolver 创建解析器
func NewResolver(dir Directory, cfg ResolverConfig) *Resolver {
	cfg.MainDomain = NormalizeHost(cfg.MainDomain)
	return &Resolver{
		dir:    dir,
		cfg:    cfg,
		tracer: otel.Tracer("customerportal/tenant"),
	}
}

// IsAuthPath 是否认证端点
func IsAuthPath(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), AuthPathPrefix)
}

// Resolve 解析租户上下文
// 返回 skip=true 表示该请求不需要租户上下文（认证端点）
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (tc RequestTenantContext, skip bool, err error) {
	ctx, span := r.tracer.Start(ctx, "tenant.Resolve")
	defer span.End()

	outcome := "error"
	defer func() {
		metrics.RecordTenantResolution(outcome)
		span.SetAttributes(
			attribute.String("tenant.outcome", outcome),
			attribute.Int64("tenant.id", tc.TenantID),
			attribute.Bool("tenant.admin_portal", tc.AdminPortal),
		)
	}()

	if IsAuthPath(req.Path) {
		outcome = "skipped"
		return RequestTenantContext{}, true, nil
	}

	if t := req.Token; t != nil && (t.IsAdminPortal || t.TenantID > 0) {
		outcome = "token"
		if t.IsAdminPortal {
			return RequestTenantContext{AdminPortal: true, Source: SourceToken}, false, nil
		}
		return RequestTenantContext{
			TenantID:  t.TenantID,
			Subdomain: t.TenantSubdomain,
			Source:    SourceToken,
		}, false, nil
	}

	host := NormalizeHost(req.Host)
	if r.isAdminPortalHost(host) {
		outcome = "admin_portal"
		return RequestTenantContext{AdminPortal: true, Source: SourceAdminPortal}, false, nil
	}

	cust, err := r.LookupHost(ctx, host)
	if err != nil {
		span.RecordError(err)
		return RequestTenantContext{}, false, err
	}
	if cust != nil {
		outcome = "subdomain"
		return RequestTenantContext{
			TenantID:  cust.ID,
			Subdomain: cust.Subdomain,
			Source:    SourceSubdomain,
		}, false, nil
	}

	if IsLoopback(host) && r.cfg.DevTenantFallback {
		fallback, err := r.devFallback(ctx)
		if err != nil {
			span.RecordError(err)
			return RequestTenantContext{}, false, err
		}
		outcome = "dev_fallback"
		return fallback, false, nil
	}

	outcome = "not_found"
	return RequestTenantContext{}, false, common.NewBusinessError(common.CodeTenantNotFound,
		"no active customer portal for host "+host)
}

// LookupHost 按首个主机标签查找活跃租户，找不到返回 (nil, nil)
func (r *Resolver) LookupHost(ctx context.Context, host string) (*Customer, error) {
	sub := FirstLabel(NormalizeHost(host))
	if sub == "" {
		return nil, nil
	}
	return r.dir.FindActiveBySubdomain(ctx, sub)
}

// ResolveHostTenant 登录时使用：按子域名查找活跃租户，
// 回环地址在开启开发回退时使用回退租户；找不到返回 (nil, nil)
func (r *Resolver) ResolveHostTenant(ctx context.Context, host string) (*Customer, error) {
	host = NormalizeHost(host)
	cust, err := r.LookupHost(ctx, host)
	if err != nil || cust != nil {
		return cust, err
	}
	if IsLoopback(host) && r.cfg.DevTenantFallback {
		fallback, err := r.devFallback(ctx)
		if err != nil {
			return nil, err
		}
		return &Customer{ID: fallback.TenantID, Subdomain: fallback.Subdomain, IsActive: true}, nil
	}
	return nil, nil
}

// IsAdminPortalHost 主机是否对应管理门户
func (r *Resolver) IsAdminPortalHost(host string) bool {
	return r.isAdminPortalHost(NormalizeHost(host))
}

func (r *Resolver) isAdminPortalHost(host string) bool {
	if host == "" {
		return false
	}
	if r.cfg.MainDomain != "" && host == r.cfg.MainDomain {
		return true
	}
	if FirstLabel(host) == "admin" {
		return true
	}
	return r.cfg.DevLoopbackAdmin && IsLoopback(host)
}

func (r *Resolver) devFallback(ctx context.Context) (RequestTenantContext, error) {
	cust, err := r.dir.FirstActive(ctx)
	if err != nil {
		return RequestTenantContext{}, err
	}
	if cust != nil {
		return RequestTenantContext{TenantID: cust.ID, Subdomain: cust.Subdomain, Source: SourceDevFallback}, nil
	}
	return RequestTenantContext{
		TenantID:  PlaceholderTenantID,
		Subdomain: PlaceholderTenantSubdomain,
		Source:    SourceDevFallback,
	}, nil
}

// NormalizeHost 去掉端口与末尾的点并转为小写
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return strings.TrimSuffix(host, ".")
}

// FirstLabel 返回主机名的第一个标签
func FirstLabel(host string) string {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

// IsLoopback 是否本地回环主机
func IsLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
