package user

import (
	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	appcommon "customerportal/internal/common"
	userSvc "customerportal/internal/user"

	"github.com/gin-gonic/gin"
)

// Handler 用户管理 API
type Handler struct {
	users *userSvc.Service
}

// NewHandler 构造函数
func NewHandler(users *userSvc.Service) *Handler {
	return &Handler{users: users}
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Email          string   `json:"email" validate:"required,email,max=256"`
	Name           string   `json:"name" validate:"max=200"`
	Password       string   `json:"password" validate:"required"`
	IsCCIUser      bool     `json:"isCCIUser"`
	IsCustomerUser bool     `json:"isCustomerUser"`
	Roles          []string `json:"roles"`
}

// UpdateUserRequest 更新用户请求，缺省字段保持不变
type UpdateUserRequest struct {
	Email          *string   `json:"email" validate:"omitempty,email,max=256"`
	Name           *string   `json:"name" validate:"omitempty,max=200"`
	Status         *string   `json:"status" validate:"omitempty,oneof=active disabled"`
	IsCCIUser      *bool     `json:"isCCIUser"`
	IsCustomerUser *bool     `json:"isCustomerUser"`
	Roles          *[]string `json:"roles"`
}

// List 用户列表
// @Summary 用户列表
// @Description 非运营人员只能看到当前租户的成员
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param isCustomerUser query bool false "按租户用户过滤"
// @Param isCCIUser query bool false "按运营人员过滤"
// @Success 200 {array} userSvc.UserView
// @Router /api/users [get]
func (h *Handler) List(c *gin.Context) {
	isCustomerUser, ok := common.QueryBool(c, "isCustomerUser")
	if !ok {
		return
	}
	isCCIUser, ok := common.QueryBool(c, "isCCIUser")
	if !ok {
		return
	}
	users, err := h.users.List(c.Request.Context(), common.Caller(c), userSvc.ListFilter{
		IsCustomerUser: isCustomerUser,
		IsCCIUser:      isCCIUser,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, users)
}

// Get 用户详情
// @Summary 用户详情
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param id path string true "用户 ID"
// @Success 200 {object} userSvc.UserView
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), common.Caller(c), c.Param("id"))
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, u)
}

// Create 创建用户
// @Summary 创建用户
// @Description 租户管理员只能创建租户用户，租户用户自动加入当前租户
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "用户信息"
// @Success 201 {object} userSvc.UserView
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 403 {object} appcommon.ErrorResponse
// @Router /api/users [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if !common.BindJSON(c, &req) {
		return
	}
	u, err := h.users.Create(c.Request.Context(), common.Caller(c), userSvc.CreateUserInput{
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		IsCCIUser:      req.IsCCIUser,
		IsCustomerUser: req.IsCustomerUser,
		Roles:          req.Roles,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "user", u.ID)
	appcommon.ResponseCreated(c, u)
}

// Update 更新用户
// @Summary 更新用户及角色
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "用户 ID"
// @Param request body UpdateUserRequest true "更新内容"
// @Success 200 {object} userSvc.UserView
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/users/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if !common.BindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	audit.SetResource(c, "user", id)
	u, err := h.users.Update(c.Request.Context(), common.Caller(c), id, userSvc.UpdateUserInput{
		Email:          req.Email,
		Name:           req.Name,
		Status:         req.Status,
		IsCCIUser:      req.IsCCIUser,
		IsCustomerUser: req.IsCustomerUser,
		Roles:          req.Roles,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, u)
}

// Delete 删除用户
// @Summary 删除用户
// @Tags Users
// @Security BearerAuth
// @Param id path string true "用户 ID"
// @Success 204
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/users/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	audit.SetResource(c, "user", id)
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseNoContent(c)
}

// AddToCustomer 将用户加入租户
// @Summary 加入租户
// @Tags Users
// @Security BearerAuth
// @Param id path string true "用户 ID"
// @Param customerId path int true "租户 ID"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/users/{id}/customers/{customerId} [post]
func (h *Handler) AddToCustomer(c *gin.Context) {
	customerID, ok := common.ParamID(c, "customerId")
	if !ok {
		return
	}
	if err := h.users.AddToCustomer(c.Request.Context(), c.Param("id"), customerID); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "user added to customer")
}

// RemoveFromCustomer 将用户移出租户
// @Summary 移出租户
// @Tags Users
// @Security BearerAuth
// @Param id path string true "用户 ID"
// @Param customerId path int true "租户 ID"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/users/{id}/customers/{customerId} [delete]
func (h *Handler) RemoveFromCustomer(c *gin.Context) {
	customerID, ok := common.ParamID(c, "customerId")
	if !ok {
		return
	}
	if err := h.users.RemoveFromCustomer(c.Request.Context(), c.Param("id"), customerID); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "user removed from customer")
}
