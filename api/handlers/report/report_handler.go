package report

import (
	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	appcommon "customerportal/internal/common"
	reportSvc "customerportal/internal/report"

	"github.com/gin-gonic/gin"
)

// Handler 报表、报表分类与嵌入配置 API
type Handler struct {
	svc *reportSvc.Service
}

// NewHandler 构造函数
func NewHandler(svc *reportSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// List 报表列表
// @Summary 报表列表
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param category query string false "分类名称包含"
// @Success 200 {array} reportSvc.View
// @Router /api/reports [get]
func (h *Handler) List(c *gin.Context) {
	views, err := h.svc.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, views)
}

// Get 报表详情
// @Summary 报表详情
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param id path int true "报表 ID"
// @Success 200 {object} reportSvc.View
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/reports/{id} [get]
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

// Create 创建报表
// @Summary 创建报表
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body reportSvc.Input true "报表信息"
// @Success 201 {object} reportSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/reports [post]
func (h *Handler) Create(c *gin.Context) {
	// 报表输入由服务层规范化后再校验
	var in reportSvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		appcommon.Fail(c, appcommon.ValidationFrom(err))
		return
	}
	view, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "report", view.ID)
	appcommon.ResponseCreated(c, view)
}

// Update 更新报表
// @Summary 更新报表
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "报表 ID"
// @Param request body reportSvc.Input true "报表信息"
// @Success 200 {object} reportSvc.View
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/reports/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	var in reportSvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		appcommon.Fail(c, appcommon.ValidationFrom(err))
		return
	}
	audit.SetResource(c, "report", id)
	view, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, view)
}

// Delete 删除报表
// @Summary 删除报表
// @Tags Reports
// @Security BearerAuth
// @Param id path int true "报表 ID"
// @Success 204
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/reports/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	audit.SetResource(c, "report", id)
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseNoContent(c)
}

// EmbedConfig 报表嵌入配置
// @Summary 获取报表嵌入配置
// @Description 嵌入令牌按当前租户生成有效身份，URL 附带租户过滤条件
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param id path int true "报表 ID"
// @Success 200 {object} reportSvc.EmbedConfig
// @Failure 404 {object} appcommon.ErrorResponse
// @Failure 501 {object} appcommon.ErrorResponse
// @Failure 502 {object} appcommon.ErrorResponse
// @Router /api/reports/{id}/embed-config [get]
func (h *Handler) EmbedConfig(c *gin.Context) {
	id, ok := common.ParamID(c, "id")
	if !ok {
		return
	}
	audit.SetResource(c, "report", id)
	cfg, err := h.svc.EmbedConfig(c.Request.Context(), id)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, cfg)
}

// ListCategories 报表分类列表
// @Summary 报表分类列表
// @Tags ReportCategories
// @Security BearerAuth
// @Produce json
// @Success 200 {array} reportSvc.Category
// @Router /api/report-categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseOK(c, categories)
}

// CreateCategory 创建报表分类
// @Summary 创建报表分类
// @Tags ReportCategories
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body reportSvc.CategoryInput true "分类信息"
// @Success 201 {object} reportSvc.Category
// @Failure 400 {object} appcommon.ErrorResponse
// @Router /api/report-categories [post]
func (h *Handler) CreateCategory(c *gin.Context) {
	var in reportSvc.CategoryInput
	if !common.BindJSON(c, &in) {
		return
	}
	category, err := h.svc.CreateCategory(c.Request.Context(), in)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetResource(c, "report_category", category.ID)
	appcommon.ResponseCreated(c, category)
}
