package tenant

import (
	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	appcommon "customerportal/internal/common"
	tenantSvc "customerportal/internal/tenant"
	userSvc "customerportal/internal/user"

	"github.com/gin-gonic/gin"
)

// Handler 租户（客户）管理 API，仅运营人员在管理门户下可用
type Handler struct {
	customers *tenantSvc.Service
	users     *userSvc.Service
}

// NewHandler 构造函数
func NewHandler(customers *tenantSvc.Service, users *userSvc.Service) *Handler {
	return &Handler{customers: customers, users: users}
}

// CustomerRequest 创建/更新租户请求
type CustomerRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Subdomain string `json:"subdomain" validate:"required,max=63"`
}

// StatusRequest 启用/停用请求
type StatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// RequireAdminPortal 要求请求处于管理门户模式
func RequireAdminPortal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tenantSvc.IsAdminPortal(c.Request.Context()) {
			appcommon.Fail(c, appcommon.Forbidden("customer management is only available on the admin portal"))
			return
		}
		c.Next()
	}
}

// List 租户列表
// @Summary 租户列表
// @Tags Customers
// @Security BearerAuth
// @Produce json
// @Param includeInactive query bool false "包含已停用租户"
// @Success 200 {array} tenantSvc.Customer
// @Router /api/customers [get]
func (h *Handler) List(c *gin.Context) {
	includeInactive, ok := common.QueryBool(c, "includeInactive")
	if !ok {
		return
	}
	customers, err := h.customers.List(c.Request.Context(), includeInactive != nil && *includeInactive)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, customers)
}

// Get 租户详情
// @Summary 租户详情
// @Tags Customers
// @Security BearerAuth
// @Produce json
// @Param id path int true "租户 ID"
// @Success 200 {object} tenantSvc.Customer
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/customers/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	cust, err := h.customers.Get(c.Request.Context(), id)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, cust)
}

// Create 创建租户
// @Summary 创建租户
// @Tags Customers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CustomerRequest true "租户信息"
// @Success 201 {object} tenantSvc.Customer
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/customers [post]
func (h *Handler) Create(c *gin.Context) {
	var req CustomerRequest
	if !common.BindJSON(c, &req) {
		return
	}
	cust, err := h.customers.Create(c.Request.Context(), tenantSvc.CreateCustomerInput{
		Name:      req.Name,
		Subdomain: req.Subdomain,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "customer", cust.ID)
	appcommon.ResponseCreated(c, cust)
}

// Update 更新租户
// @Summary 更新租户
// @Tags Customers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "租户 ID"
// @Param request body CustomerRequest true "租户信息"
// @Success 200 {object} tenantSvc.Customer
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/customers/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req CustomerRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "customer", id)
	cust, err := h.customers.Update(c.Request.Context(), id, tenantSvc.UpdateCustomerInput{
		Name:      &req.Name,
		Subdomain: &req.Subdomain,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, cust)
}

// SetStatus 启用/停用租户
// @Summary 启用或停用租户
// @Tags Customers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "租户 ID"
// @Param request body StatusRequest true "状态"
// @Success 200 {object} tenantSvc.Customer
// @Router /api/customers/{id}/status [patch]
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "customer", id)
	cust, err := h.customers.SetStatus(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, cust)
}

// Users 租户成员
// @Summary 租户成员列表
// @Tags Customers
// @Security BearerAuth
// @Produce json
// @Param id path int true "租户 ID"
// @Success 200 {array} userSvc.UserView
// @Router /api/customers/{id}/users [get]
func (h *Handler) Users(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	users, err := h.users.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, users)
}
