package shop

import (
	"strings"
	"time"

	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	appcommon "customerportal/internal/common"
	shopSvc "customerportal/internal/shop"

	"github.com/gin-gonic/gin"
)

// Handler 门店与项目 API，所有操作限定在当前租户
type Handler struct {
	svc *shopSvc.Service
}

// NewHandler 构造函数
func NewHandler(svc *shopSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// ProgramsRequest 替换门店项目集合
type ProgramsRequest struct {
	ProgramIDs []int64 `json:"programIds"`
}

// UsersRequest 替换门店用户集合
type UsersRequest struct {
	UserIDs []string `json:"userIds"`
}

// Search 门店搜索
// @Summary 门店搜索
// @Tags Shops
// @Security BearerAuth
// @Produce json
// @Param searchText query string false "名称关键字"
// @Param city query string false "城市"
// @Param state query string false "州/省"
// @Param program query string false "项目名称"
// @Param startDate query string false "指标起始时间（RFC3339 或 YYYY-MM-DD）"
// @Param endDate query string false "指标结束时间（RFC3339 或 YYYY-MM-DD）"
// @Success 200 {array} shopSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/shops [get]
func (h *Handler) Search(c *gin.Context) {
	filter := shopSvc.SearchFilter{
		SearchText: c.Query("searchText"),
		City:       c.Query("city"),
		State:      c.Query("state"),
		Program:    c.Query("program"),
	}
	var err error
	if filter.StartDate, err = parseDate(c.Query("startDate"), false); err != nil {
		appcommon.Fail(c, appcommon.Validation("startDate must be RFC3339 or YYYY-MM-DD"))
		return
	}
	if filter.EndDate, err = parseDate(c.Query("endDate"), true); err != nil {
		appcommon.Fail(c, appcommon.Validation("endDate must be RFC3339 or YYYY-MM-DD"))
		return
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		appcommon.Fail(c, appcommon.Validation("endDate must not be before startDate"))
		return
	}

	views, err := h.svc.Search(c.Request.Context(), filter)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, views)
}

// parseDate 解析日期参数；纯日期作为结束时间时取当天最后一刻
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// Get 门店详情
// @Summary 门店详情
// @Tags Shops
// @Security BearerAuth
// @Produce json
// @Param id path int true "门店 ID"
// @Success 200 {object} shopSvc.View
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/shops/{id} [get]
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

// Create 创建门店
// @Summary 创建门店
// @Tags Shops
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body shopSvc.Input true "门店信息"
// @Success 201 {object} shopSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/shops [post]
func (h *Handler) Create(c *gin.Context) {
	var in shopSvc.Input
	if !common.BindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "shop", view.ID)
	appcommon.ResponseCreated(c, view)
}

// Update 更新门店
// @Summary 更新门店
// @Tags Shops
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "门店 ID"
// @Param request body shopSvc.Input true "门店信息"
// @Success 200 {object} shopSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/shops/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var in shopSvc.Input
	if !common.BindJSON(c, &in) {
		return
	}
	audit.SetResource(c, "shop", id)
	view, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, view)
}

// Delete 删除门店
// @Summary 删除门店
// @Tags Shops
// @Security BearerAuth
// @Param id path int true "门店 ID"
// @Success 204
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/shops/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	audit.SetResource(c, "shop", id)
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseNoContent(c)
}

// Activate 启用门店
// @Summary 启用门店
// @Tags Shops
// @Security BearerAuth
// @Param id path int true "门店 ID"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/shops/{id}/activate [post]
func (h *Handler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate 停用门店
// @Summary 停用门店
// @Tags Shops
// @Security BearerAuth
// @Param id path int true "门店 ID"
// @Success 200 {object} appcommon.MessageResponse
// @Router /api/shops/{id}/deactivate [post]
func (h *Handler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	audit.SetResource(c, "shop", id)
	audit.SetMetadata(c, "is_active", active)
	if err := h.svc.SetActive(c.Request.Context(), id, active); err != nil {
		appcommon.Fail(c, err)
		return
	}
	if active {
		appcommon.ResponseMessage(c, "shop activated")
		return
	}
	appcommon.ResponseMessage(c, "shop deactivated")
}

// AssignPrograms 替换门店项目
// @Summary 设置门店项目
// @Tags Shops
// @Security BearerAuth
// @Accept json
// @Param id path int true "门店 ID"
// @Param request body ProgramsRequest true "项目 ID 列表"
// @Success 200 {object} appcommon.MessageResponse
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/shops/{id}/programs [post]
func (h *Handler) AssignPrograms(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req ProgramsRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "shop", id)
	if err := h.svc.AssignPrograms(c.Request.Context(), id, req.ProgramIDs); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "programs assigned")
}

// AssignUsers 替换门店用户
// @Summary 设置门店用户
// @Tags Shops
// @Security BearerAuth
// @Accept json
// @Param id path int true "门店 ID"
// @Param request body UsersRequest true "用户 ID 列表"
// @Success 200 {object} appcommon.MessageResponse
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/shops/{id}/users [post]
func (h *Handler) AssignUsers(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var req UsersRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetResource(c, "shop", id)
	if err := h.svc.AssignUsers(c.Request.Context(), id, req.UserIDs); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "users assigned")
}

// KPIs 门店指标
// @Summary 门店指标
// @Tags Shops
// @Security BearerAuth
// @Produce json
// @Param id path int true "门店 ID"
// @Success 200 {array} shopSvc.Kpi
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/shops/{id}/kpis [get]
func (h *Handler) KPIs(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	kpis, err := h.svc.KPIs(c.Request.Context(), id)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, kpis)
}

// ListPrograms 项目列表
// @Summary 项目列表
// @Tags Programs
// @Security BearerAuth
// @Produce json
// @Success 200 {array} shopSvc.Program
// @Router /api/programs [get]
func (h *Handler) ListPrograms(c *gin.Context) {
	programs, err := h.svc.ListPrograms(c.Request.Context())
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, programs)
}

// CreateProgram 创建项目
// @Summary 创建项目
// @Tags Programs
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body shopSvc.ProgramInput true "项目信息"
// @Success 201 {object} shopSvc.Program
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/programs [post]
func (h *Handler) CreateProgram(c *gin.Context) {
	var in shopSvc.ProgramInput
	if !common.BindJSON(c, &in) {
		return
	}
	program, err := h.svc.CreateProgram(c.Request.Context(), in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "program", program.ID)
	appcommon.ResponseCreated(c, program)
}
