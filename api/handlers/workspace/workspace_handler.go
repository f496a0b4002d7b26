package workspace

import (
	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	appcommon "customerportal/internal/common"
	workspaceSvc "customerportal/internal/workspace"

	"github.com/gin-gonic/gin"
)

// Handler 工作区 API，所有操作限定在当前租户
type Handler struct {
	svc *workspaceSvc.Service
}

// NewHandler 构造函数
func NewHandler(svc *workspaceSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// AssignmentResponse 用户分配查询结果
type AssignmentResponse struct {
	Assigned bool `json:"assigned"`
}

// List 工作区列表
// @Summary 工作区列表
// @Tags Workspaces
// @Security BearerAuth
// @Produce json
// @Param includeReports query bool false "附带报表"
// @Success 200 {array} workspaceSvc.View
// @Router /api/workspaces [get]
func (h *Handler) List(c *gin.Context) {
	includeReports, ok := common.QueryBool(c, "includeReports")
	if !ok {
		return
	}
	views, err := h.svc.List(c.Request.Context(), includeReports != nil && *includeReports)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, views)
}

// Get 工作区详情（含报表）
// @Summary 工作区详情
// @Tags Workspaces
// @Security BearerAuth
// @Produce json
// @Param id path int true "工作区 ID"
// @Success 200 {object} workspaceSvc.View
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/workspaces/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, view)
}

// Create 创建工作区
// @Summary 创建工作区
// @Tags Workspaces
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body workspaceSvc.Input true "工作区信息"
// @Success 201 {object} workspaceSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/workspaces [post]
func (h *Handler) Create(c *gin.Context) {
	var in workspaceSvc.Input
	if !common.BindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "workspace", view.ID)
	appcommon.ResponseCreated(c, view)
}

// Update 更新工作区
// @Summary 更新工作区
// @Tags Workspaces
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "工作区 ID"
// @Param request body workspaceSvc.Input true "工作区信息"
// @Success 200 {object} workspaceSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/workspaces/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var in workspaceSvc.Input
	if !common.BindJSON(c, &in) {
		return
	}
	audit.SetResource(c, "workspace", id)
	view, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, view)
}

// Delete 删除工作区
// @Summary 删除工作区
// @Description 仍有报表的工作区不能删除
// @Tags Workspaces
// @Security BearerAuth
// @Param id path int true "工作区 ID"
// @Success 204
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/workspaces/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	audit.SetResource(c, "workspace", id)
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseNoContent(c)
}

// AssignUser 分配用户到工作区
// @Summary 分配用户到工作区
// @Tags Workspaces
// @Security BearerAuth
// @Param id path int true "工作区 ID"
// @Param userId path string true "用户 ID"
// @Success 200 {object} appcommon.MessageResponse
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/workspaces/{id}/users/{userId} [post]
func (h *Handler) AssignUser(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	userID := c.Param("userId")
	audit.SetResource(c, "workspace", id)
	audit.SetMetadata(c, "target_user_id", userID)
	if err := h.svc.AssignUser(c.Request.Context(), id, userID); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "user assigned to workspace")
}

// RemoveUser 从工作区移除用户
// @Summary 从工作区移除用户
// @Tags Workspaces
// @Security BearerAuth
// @Param id path int true "工作区 ID"
// @Param userId path string true "用户 ID"
// @Success 200 {object} appcommon.MessageResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/workspaces/{id}/users/{userId} [delete]
func (h *Handler) RemoveUser(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	userID := c.Param("userId")
	audit.SetResource(c, "workspace", id)
	audit.SetMetadata(c, "target_user_id", userID)
	if err := h.svc.RemoveUser(c.Request.Context(), id, userID); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "user removed from workspace")
}

// IsUserAssigned 用户是否已分配到工作区
// @Summary 查询用户分配
// @Tags Workspaces
// @Security BearerAuth
// @Produce json
// @Param id path int true "工作区 ID"
// @Param userId path string true "用户 ID"
// @Success 200 {object} AssignmentResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/workspaces/{id}/users/{userId} [get]
func (h *Handler) IsUserAssigned(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	assigned, err := h.svc.IsUserAssigned(c.Request.Context(), id, c.Param("userId"))
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, AssignmentResponse{Assigned: assigned})
}
