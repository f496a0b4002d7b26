package api

import (
	tenantHandlers "customerportal/api/handlers/tenant"
	"customerportal/internal/audit"
	"customerportal/internal/auth"
	middlewarepkg "customerportal/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterRoutes 注册所有路由
//
// /api 下的请求依次经过：令牌解析 -> 租户解析 -> 审计 -> 策略检查 -> 处理器
func RegisterRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	registerSystemRoutes(router, c)

	api := router.Group("/api")
	api.Use(
		auth.Authenticate(c.JWTService),
		middlewarepkg.TenantResolution(c.Resolver),
		audit.Middleware(c.AuditRecorder),
	)

	registerAuthRoutes(api, c, h)
	registerCustomerRoutes(api, c, h)
	registerUserRoutes(api, c, h)
	registerRoleRoutes(api, c, h)
	registerWorkspaceRoutes(api, c, h)
	registerShopRoutes(api, c, h)
	registerReportRoutes(api, c, h)
}

// registerSystemRoutes 健康检查、指标与文档
func registerSystemRoutes(router *gin.Engine, c *AppContainer) {
	router.GET("/health", HealthCheck(c.Config.App.Name))
	router.GET("/ready", ReadinessCheck(c.DB, c.Redis))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !c.Config.IsProduction() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// registerAuthRoutes 认证端点不参与租户解析
func registerAuthRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", middlewarepkg.RateLimitByIP(c.LoginLimiter), h.Auth.Login)
		authGroup.GET("/me", auth.RequireAuthenticated(), h.Auth.Me)
		authGroup.POST("/change-password", auth.RequireAuthenticated(), h.Auth.ChangePassword)
		authGroup.POST("/reset-password/:userId", auth.RequireAuthenticated(), auth.RequireRole(auth.RoleAdmin), h.Auth.ResetPassword)
	}
}

// registerCustomerRoutes 租户管理：运营人员且处于管理门户
func registerCustomerRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	customers := api.Group("/customers",
		auth.RequirePolicy(c.Authorizer, auth.PolicyCCIUser),
		tenantHandlers.RequireAdminPortal(),
	)
	{
		customers.GET("", h.Customer.List)
		customers.POST("", h.Customer.Create)
		customers.GET("/:id", h.Customer.Get)
		customers.PUT("/:id", h.Customer.Update)
		customers.PATCH("/:id/status", h.Customer.SetStatus)
		customers.GET("/:id/users", h.Customer.Users)
	}
}

func registerUserRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	writer := auth.RequireRole(auth.RoleAdmin, auth.RoleCustomerAdmin)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	users := api.Group("/users", auth.RequirePolicy(c.Authorizer, auth.PolicyTenantMember))
	{
		users.GET("", h.User.List)
		users.GET("/:id", h.User.Get)
		users.POST("", writer, h.User.Create)
		users.PUT("/:id", writer, h.User.Update)
		users.DELETE("/:id", adminOnly, h.User.Delete)
		users.POST("/:id/customers/:customerId", adminOnly, h.User.AddToCustomer)
		users.DELETE("/:id/customers/:customerId", adminOnly, h.User.RemoveFromCustomer)
	}
}

func registerRoleRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	roles := api.Group("/roles", auth.RequirePolicy(c.Authorizer, auth.PolicyCustomerAdmin))
	{
		roles.GET("", h.Role.List)
		roles.GET("/permissions", h.Role.ListPermissions)
		roles.GET("/:id", h.Role.Get)
		roles.POST("", h.Role.Create)
		roles.PUT("/:id", h.Role.Update)
		roles.DELETE("/:id", h.Role.Delete)
		roles.PUT("/:id/permissions", h.Role.SetPermissions)
		roles.POST("/:id/assign-user", h.Role.AssignUser)
		roles.POST("/:id/remove-user", h.Role.RemoveUser)
		roles.POST("/:id/assign-workspace", h.Role.AssignWorkspace)
		roles.POST("/:id/remove-workspace", h.Role.RemoveWorkspace)
	}
}

func registerWorkspaceRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	// 写操作: Admin 或 CustomerAdmin 角色，且为租户成员
	writer := auth.RequireRole(auth.RoleAdmin, auth.RoleCustomerAdmin)

	workspaces := api.Group("/workspaces", auth.RequirePolicy(c.Authorizer, auth.PolicyTenantMember))
	{
		workspaces.GET("", h.Workspace.List)
		workspaces.GET("/:id", h.Workspace.Get)
		workspaces.POST("", writer, h.Workspace.Create)
		workspaces.PUT("/:id", writer, h.Workspace.Update)
		workspaces.DELETE("/:id", writer, h.Workspace.Delete)
		workspaces.GET("/:id/users/:userId", h.Workspace.IsUserAssigned)
		workspaces.POST("/:id/users/:userId", writer, h.Workspace.AssignUser)
		workspaces.DELETE("/:id/users/:userId", writer, h.Workspace.RemoveUser)
	}
}

func registerShopRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	member := auth.RequirePolicy(c.Authorizer, auth.PolicyTenantMember)
	writer := auth.RequireRole(auth.RoleAdmin, auth.RoleCustomerAdmin)

	shops := api.Group("/shops", member)
	{
		shops.GET("", h.Shop.Search)
		shops.GET("/:id", h.Shop.Get)
		shops.GET("/:id/kpis", h.Shop.KPIs)
		shops.POST("", writer, h.Shop.Create)
		shops.PUT("/:id", writer, h.Shop.Update)
		shops.DELETE("/:id", writer, h.Shop.Delete)
		shops.POST("/:id/activate", writer, h.Shop.Activate)
		shops.POST("/:id/deactivate", writer, h.Shop.Deactivate)
		shops.POST("/:id/programs", writer, h.Shop.AssignPrograms)
		shops.POST("/:id/users", writer, h.Shop.AssignUsers)
	}

	programs := api.Group("/programs", member)
	{
		programs.GET("", h.Shop.ListPrograms)
		programs.POST("", writer, h.Shop.CreateProgram)
	}
}

func registerReportRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	member := auth.RequirePolicy(c.Authorizer, auth.PolicyTenantMember)
	writer := auth.RequireRole(auth.RoleAdmin, auth.RoleCustomerAdmin)

	reports := api.Group("/reports", member)
	{
		reports.GET("", h.Report.List)
		reports.GET("/:id", h.Report.Get)
		reports.GET("/:id/embed-config", h.Report.EmbedConfig)
		reports.POST("", writer, h.Report.Create)
		reports.PUT("/:id", writer, h.Report.Update)
		reports.DELETE("/:id", writer, h.Report.Delete)
	}

	categories := api.Group("/report-categories", member)
	{
		categories.GET("", h.Report.ListCategories)
		categories.POST("", writer, h.Report.CreateCategory)
	}
}
