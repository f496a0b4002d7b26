package api

import (
	"customerportal/api/docs"
	authHandlers "customerportal/api/handlers/auth"
	reportHandlers "customerportal/api/handlers/report"
	shopHandlers "customerportal/api/handlers/shop"
	tenantHandlers "customerportal/api/handlers/tenant"
	userHandlers "customerportal/api/handlers/user"
	workspaceHandlers "customerportal/api/handlers/workspace"
	"customerportal/internal/audit"
	"customerportal/internal/auth"
	"customerportal/internal/config"
	"customerportal/internal/logger"
	"customerportal/internal/metrics"
	middlewarepkg "customerportal/internal/middleware"
	"customerportal/internal/report"
	"customerportal/internal/shop"
	"customerportal/internal/tenant"
	"customerportal/internal/user"
	"customerportal/internal/workspace"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 可选的外部依赖，缺省时退回进程内实现
type Options struct {
	// Redis 子域名缓存；nil 时使用进程内缓存
	Redis redis.UniversalClient
	// AuditQueue 审计任务队列；nil 时审计直接写库
	AuditQueue audit.Enqueuer
	// Embedder BI 报表嵌入；nil 时嵌入接口返回 501
	Embedder report.Embedder
}

// AppContainer 应用依赖容器
type AppContainer struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         redis.UniversalClient
	JWTService    *auth.JWTService
	Resolver      *tenant.Resolver
	Authorizer    *auth.Authorizer
	Directory     *tenant.GormDirectory
	Customers     *tenant.Service
	Users         *user.Service
	Roles         *user.RoleService
	Login         *user.LoginService
	Workspaces    *workspace.Service
	Shops         *shop.Service
	Reports       *report.Service
	AuditRecorder audit.Recorder
	DBRecorder    *audit.DBRecorder
	LoginLimiter  *middlewarepkg.RateLimiter
}

// Handlers HTTP 处理器集合
type Handlers struct {
	Auth      *authHandlers.Handler
	Customer  *tenantHandlers.Handler
	User      *userHandlers.Handler
	Role      *userHandlers.RoleHandler
	Workspace *workspaceHandlers.Handler
	Shop      *shopHandlers.Handler
	Report    *reportHandlers.Handler
}

// NewAppContainer 组装服务
func NewAppContainer(db *gorm.DB, cfg *config.Config, opts Options) (*AppContainer, error) {
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var cache tenant.SubdomainCache
	switch {
	case cfg.Tenancy.CacheTTLSeconds <= 0:
	case opts.Redis != nil:
		cache = tenant.NewRedisSubdomainCache(opts.Redis, cfg.Tenancy.CacheTTL())
	default:
		cache = tenant.NewInMemorySubdomainCache(cfg.Tenancy.CacheTTL())
	}

	dir := tenant.NewDirectory(db, cache)
	resolver := tenant.NewResolver(dir, tenant.ResolverConfig{
		MainDomain:        cfg.App.MainDomain,
		DevLoopbackAdmin:  cfg.Tenancy.DevLoopbackAdmin,
		DevTenantFallback: cfg.Tenancy.DevTenantFallback,
	})
	customers := tenant.NewService(db, dir)
	workspaces := workspace.NewService(db, dir)
	users := user.NewService(db, dir, customers)
	roles := user.NewRoleService(db, dir, workspaces)
	workspaces.OnDelete(roles.DetachWorkspace)

	dbRecorder := audit.NewDBRecorder(db)
	var recorder audit.Recorder = dbRecorder
	if opts.AuditQueue != nil {
		recorder = audit.NewQueueRecorder(opts.AuditQueue, dbRecorder)
	}

	return &AppContainer{
		Config:        cfg,
		DB:            db,
		Redis:         opts.Redis,
		JWTService:    jwtService,
		Resolver:      resolver,
		Authorizer:    auth.NewAuthorizer(dir),
		Directory:     dir,
		Customers:     customers,
		Users:         users,
		Roles:         roles,
		Login:         user.NewLoginService(users, resolver, dir, jwtService),
		Workspaces:    workspaces,
		Shops:         shop.NewService(db, dir),
		Reports:       report.NewService(db, workspaces, opts.Embedder),
		AuditRecorder: recorder,
		DBRecorder:    dbRecorder,
		LoginLimiter: middlewarepkg.NewRateLimiter(middlewarepkg.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimit.LoginPerMinute,
		}),
	}, nil
}

// Close 释放容器持有的后台资源
func (c *AppContainer) Close() {
	c.LoginLimiter.Stop()
}

// NewHandlers 创建处理器
func NewHandlers(c *AppContainer) *Handlers {
	return &Handlers{
		Auth:      authHandlers.NewHandler(c.Login, c.Users),
		Customer:  tenantHandlers.NewHandler(c.Customers, c.Users),
		User:      userHandlers.NewHandler(c.Users),
		Role:      userHandlers.NewRoleHandler(c.Roles),
		Workspace: workspaceHandlers.NewHandler(c.Workspaces),
		Shop:      shopHandlers.NewHandler(c.Shops),
		Report:    reportHandlers.NewHandler(c.Reports),
	}
}

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(container *AppContainer) *gin.Engine {
	cfg := container.Config
	exposeDetail := cfg.IsDevelopment()

	router := gin.New()
	router.Use(
		middlewarepkg.RequestIDMiddleware(),
		Recovery(exposeDetail),
		metrics.PrometheusMiddleware(),
		RequestLogger(),
		ErrorHandler(exposeDetail),
		CORS(),
	)

	if !cfg.IsProduction() {
		docs.SwaggerInfo.BasePath = "/"
	}

	RegisterRoutes(router, container, NewHandlers(container))

	logger.Info("路由初始化完成",
		zap.String("environment", cfg.App.Environment),
		zap.String("main_domain", cfg.App.MainDomain),
		zap.Bool("powerbi_enabled", cfg.PowerBI.Enabled),
		zap.Bool("redis_enabled", container.Redis != nil),
	)
	return router
}
