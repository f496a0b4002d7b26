package report

import (
	"context"
	"errors"
	"strings"

	"customerportal/internal/common"
	"customerportal/internal/logger"
	"customerportal/internal/metrics"
	"customerportal/internal/tenant"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrEmbedNotConfigured BI 集成未启用
var ErrEmbedNotConfigured = common.NotImplemented(common.CodeEmbedNotConfigured, "")

// WorkspaceScope 判断工作区是否属于当前租户
type WorkspaceScope interface {
	ExistsInScope(ctx context.Context, workspaceID int64) (bool, error)
}

// Embedder 向 BI 服务申请嵌入令牌
type Embedder interface {
	Embed(ctx context.Context, biReportID string, customerID int64) (*EmbedConfig, error)
}

// Input 创建/更新报表参数
type Input struct {
	Name             string `json:"name" validate:"required,max=100"`
	Description      string `json:"description" validate:"required,max=500"`
	PowerBIReportID  string `json:"powerBiReportId" validate:"required,uuid"`
	WorkspaceID      int64  `json:"workspaceId" validate:"gt=0"`
	ReportCategoryID int64  `json:"reportCategoryId" validate:"gt=0"`
}

func (in *Input) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.PowerBIReportID = strings.ToLower(strings.TrimSpace(in.PowerBIReportID))
}

// CategoryInput 创建分类参数
type CategoryInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=500"`
	DisplayOrder int    `json:"displayOrder" validate:"gte=0"`
}

// Service 报表与分类服务，所有查询限定在当前租户
type Service struct {
	db         *gorm.DB
	workspaces WorkspaceScope
	embedder   Embedder
}

// NewService 创建报表服务；embedder 为 nil 表示未配置 BI 集成
func NewService(db *gorm.DB, workspaces WorkspaceScope, embedder Embedder) *Service {
	return &Service{db: db, workspaces: workspaces, embedder: embedder}
}

// scopedReports 报表经由工作区限定租户
func (s *Service) scopedReports(ctx context.Context) (*gorm.DB, error) {
	base := s.db.Table("reports").
		Joins("JOIN workspaces ON workspaces.id = reports.workspace_id").
		Joins("LEFT JOIN report_categories ON report_categories.id = reports.report_category_id")
	q, err := tenant.Scoped(ctx, base, "workspaces.customer_id")
	if err != nil {
		return nil, err
	}
	return q.Select("reports.id, reports.name, reports.description, reports.power_bi_report_id, " +
		"reports.workspace_id, reports.report_category_id, report_categories.name AS category_name"), nil
}

// List 列出报表，category 按分类名称模糊匹配
func (s *Service) List(ctx context.Context, category string) ([]View, error) {
	q, err := s.scopedReports(ctx)
	if err != nil {
		return nil, err
	}
	if c := strings.TrimSpace(category); c != "" {
		q = q.Where("LOWER(report_categories.name) LIKE ?", "%"+strings.ToLower(c)+"%")
	}
	views := []View{}
	if err := q.Order("reports.id ASC").Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

// Get 获取报表，不存在或跨租户返回 404
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	q, err := s.scopedReports(ctx)
	if err != nil {
		return nil, err
	}
	var views []View
	if err := q.Where("reports.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, common.NotFound("report with ID %d not found", id)
	}
	return &views[0], nil
}

// Create 创建报表
func (s *Service) Create(ctx context.Context, in Input) (*View, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	r := &Report{
		Name:             in.Name,
		Description:      in.Description,
		PowerBIReportID:  in.PowerBIReportID,
		WorkspaceID:      in.WorkspaceID,
		ReportCategoryID: in.ReportCategoryID,
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, r.ID)
}

// Update 更新报表
func (s *Service) Update(ctx context.Context, id int64, in Input) (*View, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Model(&Report{ID: id}).Updates(map[string]any{
		"name":               in.Name,
		"description":        in.Description,
		"power_bi_report_id": in.PowerBIReportID,
		"workspace_id":       in.WorkspaceID,
		"report_category_id": in.ReportCategoryID,
	}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete 删除报表
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&Report{}, id).Error
}

// EmbedConfig 生成嵌入配置；BI 服务按 Customer_<租户ID> 身份施加行级过滤
func (s *Service) EmbedConfig(ctx context.Context, id int64) (*EmbedConfig, error) {
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.embedder == nil {
		metrics.EmbedRequestsTotal.WithLabelValues("not_configured").Inc()
		return nil, ErrEmbedNotConfigured
	}

	cfg, err := s.embedder.Embed(ctx, r.PowerBIReportID, customerID)
	if err != nil {
		metrics.EmbedRequestsTotal.WithLabelValues("failure").Inc()
		logger.WithContext(ctx).Error("生成报表嵌入配置失败",
			zap.Int64("report_id", id),
			zap.Int64("tenant_id", customerID),
			zap.Error(err),
		)
		var be *common.BusinessError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, common.NewBusinessError(common.CodeEmbedFailed, "").Wrap(err)
	}
	metrics.EmbedRequestsTotal.WithLabelValues("success").Inc()
	return cfg, nil
}

// ListCategories 列出当前租户的报表分类
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	q, err := tenant.Scoped(ctx, s.db.Model(&Category{}), "report_categories.customer_id")
	if err != nil {
		return nil, err
	}
	categories := []Category{}
	err = q.Order("display_order ASC, name ASC").Find(&categories).Error
	return categories, err
}

// CreateCategory 创建报表分类，租户内名称唯一
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	q, err := tenant.Scoped(ctx, s.db.Model(&Category{}), "report_categories.customer_id")
	if err != nil {
		return nil, err
	}
	var count int64
	if err := q.Where("LOWER(name) = ?", strings.ToLower(in.Name)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, common.InvalidOperation("report category %q already exists", in.Name)
	}
	c := &Category{
		Name:         in.Name,
		Description:  in.Description,
		CustomerID:   customerID,
		DisplayOrder: in.DisplayOrder,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListForWorkspaces 按工作区分组返回报表，调用方负责保证工作区已限定租户
func ListForWorkspaces(ctx context.Context, db *gorm.DB, workspaceIDs []int64) (map[int64][]View, error) {
	out := make(map[int64][]View, len(workspaceIDs))
	if len(workspaceIDs) == 0 {
		return out, nil
	}
	var views []View
	err := db.WithContext(ctx).Table("reports").
		Joins("LEFT JOIN report_categories ON report_categories.id = reports.report_category_id").
		Select("reports.id, reports.name, reports.description, reports.power_bi_report_id, "+
			"reports.workspace_id, reports.report_category_id, report_categories.name AS category_name").
		Where("reports.workspace_id IN ?", workspaceIDs).
		Order("reports.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		out[v.WorkspaceID] = append(out[v.WorkspaceID], v)
	}
	return out, nil
}

func (s *Service) validate(ctx context.Context, in *Input) error {
	in.normalize()
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	ok, err := s.workspaces.ExistsInScope(ctx, in.WorkspaceID)
	if err != nil {
		return err
	}
	if !ok {
		return common.Validation("workspace with ID %d not found", in.WorkspaceID)
	}
	q, err := tenant.Scoped(ctx, s.db.Model(&Category{}), "report_categories.customer_id")
	if err != nil {
		return err
	}
	var count int64
	if err := q.Where("report_categories.id = ?", in.ReportCategoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return common.Validation("report category with ID %d not found", in.ReportCategoryID)
	}
	return nil
}
