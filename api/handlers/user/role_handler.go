package user

import (
	"context"

	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	appcommon "customerportal/internal/common"
	userSvc "customerportal/internal/user"

	"github.com/gin-gonic/gin"
)

// RoleHandler 角色与权限 API
type RoleHandler struct {
	roles *userSvc.RoleService
}

// NewRoleHandler 构造函数
func NewRoleHandler(roles *userSvc.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RoleRequest 创建/更新角色请求
type RoleRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Permissions []string `json:"permissions"`
}

// PermissionsRequest 设置角色权限请求
type PermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// UserAssignmentRequest 角色-用户分配请求
type UserAssignmentRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// WorkspaceAssignmentRequest 角色-工作区分配请求
type WorkspaceAssignmentRequest struct {
	WorkspaceID int64 `json:"workspaceId" validate:"gt=0"`
}

// List 角色列表
// @Summary 角色列表
// @Tags Roles
// @Security BearerAuth
// @Produce json
// @Success 200 {array} userSvc.RoleView
// @Router /api/roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, roles)
}

// ListPermissions 权限目录
// @Summary 权限列表
// @Tags Roles
// @Security BearerAuth
// @Produce json
// @Success 200 {array} userSvc.Permission
// @Router /api/roles/permissions [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	perms, err := h.roles.ListPermissions(c.Request.Context())
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, perms)
}

// Get 角色详情
// @Summary 角色详情
// @Tags Roles
// @Security BearerAuth
// @Produce json
// @Param id path int true "角色 ID"
// @Success 200 {object} userSvc.RoleView
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/roles/{id} [get]
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	role, err := h.roles.Get(c.Request.Context(), id)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, role)
}

// Create 创建角色
// @Summary 创建角色
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body RoleRequest true "角色信息"
// @Success 201 {object} userSvc.RoleView
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req RoleRequest
	if !common.BindJSON(c, &req) {
		return
	}
	role, err := h.roles.Create(c.Request.Context(), userSvc.RoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "role", role.ID)
	appcommon.ResponseCreated(c, role)
}

// Update 更新角色
// @Summary 更新角色
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "角色 ID"
// @Param request body RoleRequest true "角色信息"
// @Success 200 {object} userSvc.RoleView
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "role", id)
	role, err := h.roles.Update(c.Request.Context(), id, userSvc.RoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, role)
}

// Delete 删除角色
// @Summary 删除角色
// @Tags Roles
// @Security BearerAuth
// @Param id path int true "角色 ID"
// @Success 204
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	audit.SetResource(c, "role", id)
	if err := h.roles.Delete(c.Request.Context(), id); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseNoContent(c)
}

// SetPermissions 替换角色权限
// @Summary 设置角色权限
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "角色 ID"
// @Param request body PermissionsRequest true "权限名称"
// @Success 200 {object} userSvc.RoleView
// @Router /api/roles/{id}/permissions [put]
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req PermissionsRequest
	if !common.BindJSON(c, &req) {
		return
	}
	role, err := h.roles.SetPermissions(c.Request.Context(), id, req.Permissions)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, role)
}

// AssignUser 给用户分配角色
// @Summary 分配角色给用户
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Param id path int true "角色 ID"
// @Param request body UserAssignmentRequest true "用户"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/roles/{id}/assign-user [post]
func (h *RoleHandler) AssignUser(c *gin.Context) {
	h.userAssignment(c, h.roles.AssignUser, "role assigned")
}

// RemoveUser 撤销用户角色
// @Summary 撤销用户角色
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Param id path int true "角色 ID"
// @Param request body UserAssignmentRequest true "用户"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/roles/{id}/remove-user [post]
func (h *RoleHandler) RemoveUser(c *gin.Context) {
	h.userAssignment(c, h.roles.RemoveUser, "role removed")
}

// AssignWorkspace 将角色分配到工作区
// @Summary 分配角色到工作区
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Param id path int true "角色 ID"
// @Param request body WorkspaceAssignmentRequest true "工作区"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/roles/{id}/assign-workspace [post]
func (h *RoleHandler) AssignWorkspace(c *gin.Context) {
	h.workspaceAssignment(c, h.roles.AssignWorkspace, "role assigned to workspace")
}

// RemoveWorkspace 取消角色的工作区分配
// @Summary 取消角色的工作区分配
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Param id path int true "角色 ID"
// @Param request body WorkspaceAssignmentRequest true "工作区"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/roles/{id}/remove-workspace [post]
func (h *RoleHandler) RemoveWorkspace(c *gin.Context) {
	h.workspaceAssignment(c, h.roles.RemoveWorkspace, "role removed from workspace")
}

func (h *RoleHandler) userAssignment(
	c *gin.Context,
	apply func(ctx context.Context, caller userSvc.Caller, roleID int64, userID string) error,
	message string,
) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req UserAssignmentRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "role", id)
	audit.SetMetadata(c, "target_user_id", req.UserID)
	if err := apply(c.Request.Context(), common.Caller(c), id, req.UserID); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, message)
}

func (h *RoleHandler) workspaceAssignment(
	c *gin.Context,
	apply func(ctx context.Context, roleID, workspaceID int64) error,
	message string,
) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req WorkspaceAssignmentRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "role", id)
	audit.SetMetadata(c, "workspace_id", req.WorkspaceID)
	if err := apply(c.Request.Context(), id, req.WorkspaceID); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, message)
}
