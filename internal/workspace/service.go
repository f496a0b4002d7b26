package workspace

import (
	"context"
	"errors"
	"strings"

	"customerportal/internal/common"
	"customerportal/internal/logger"
	"customerportal/internal/report"
	"customerportal/internal/tenant"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MembershipChecker 租户成员关系查询
type MembershipChecker interface {
	IsMember(ctx context.Context, customerID int64, userID string) (bool, error)
}

// DeleteHook 在删除工作区的事务内清理其他模块的关联数据
type DeleteHook func(ctx context.Context, tx *gorm.DB, workspaceID int64) error

// Service 工作区服务，所有读写限定在当前租户
type Service struct {
	db       *gorm.DB
	members  MembershipChecker
	onDelete []DeleteHook
}

// NewService 创建工作区服务
func NewService(db *gorm.DB, members MembershipChecker) *Service {
	return &Service{db: db, members: members}
}

// OnDelete 注册删除钩子
func (s *Service) OnDelete(h DeleteHook) {
	s.onDelete = append(s.onDelete, h)
}

func (s *Service) scoped(ctx context.Context) (*gorm.DB, error) {
	return tenant.Scoped(ctx, s.db.Model(&Workspace{}), "workspaces.customer_id")
}

// ExistsInScope 工作区是否属于当前租户
func (s *Service) ExistsInScope(ctx context.Context, id int64) (bool, error) {
	q, err := s.scoped(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := q.Where("workspaces.id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 列出当前租户的工作区
func (s *Service) List(ctx context.Context, includeReports bool) ([]View, error) {
	q, err := s.scoped(ctx)
	if err != nil {
		return nil, err
	}
	var rows []Workspace
	if err := q.Order("workspaces.name ASC, workspaces.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	var grouped map[int64][]report.View
	if includeReports {
		ids := make([]int64, 0, len(rows))
		for _, w := range rows {
			ids = append(ids, w.ID)
		}
		if grouped, err = report.ListForWorkspaces(ctx, s.db, ids); err != nil {
			return nil, err
		}
	}

	out := make([]View, 0, len(rows))
	for _, w := range rows {
		out = append(out, toView(w, grouped[w.ID]))
	}
	return out, nil
}

// Get 获取工作区及其报表，不存在或跨租户返回 404
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	w, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	grouped, err := report.ListForWorkspaces(ctx, s.db, []int64{w.ID})
	if err != nil {
		return nil, err
	}
	v := toView(*w, grouped[w.ID])
	return &v, nil
}

// Create 在当前租户下创建工作区
func (s *Service) Create(ctx context.Context, in Input) (*View, error) {
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}
	w := &Workspace{
		Name:       in.Name,
		SystemName: in.SystemName,
		IsActive:   in.IsActive == nil || *in.IsActive,
		CustomerID: customerID,
	}
	if err := s.db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("工作区已创建", zap.Int64("workspace_id", w.ID), zap.Int64("tenant_id", customerID))
	return s.Get(ctx, w.ID)
}

// Update 更新工作区，租户归属不可修改
func (s *Service) Update(ctx context.Context, id int64, in Input) (*View, error) {
	w, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}
	updates := map[string]any{
		"name":        in.Name,
		"system_name": in.SystemName,
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Model(w).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete 删除工作区；仍有报表时拒绝
func (s *Service) Delete(ctx context.Context, id int64) error {
	w, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	var reports int64
	if err := s.db.WithContext(ctx).Model(&report.Report{}).Where("workspace_id = ?", w.ID).Count(&reports).Error; err != nil {
		return err
	}
	if reports > 0 {
		return common.InvalidOperation("workspace %d still has %d report(s)", w.ID, reports)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", w.ID).Delete(&UserWorkspace{}).Error; err != nil {
			return err
		}
		for _, h := range s.onDelete {
			if err := h(ctx, tx, w.ID); err != nil {
				return err
			}
		}
		return tx.Delete(&Workspace{}, w.ID).Error
	})
}

// AssignUser 将当前租户成员分配到工作区，重复分配返回 400
func (s *Service) AssignUser(ctx context.Context, id int64, userID string) error {
	if err := s.checkAssignment(ctx, id, userID); err != nil {
		return err
	}
	assigned, err := s.isAssigned(ctx, id, userID)
	if err != nil {
		return err
	}
	if assigned {
		return common.InvalidOperation("user is already assigned to workspace %d", id)
	}
	now := s.db.NowFunc()
	err = s.db.WithContext(ctx).Create(&UserWorkspace{UserID: userID, WorkspaceID: id, AssignedAt: now}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.InvalidOperation("user is already assigned to workspace %d", id)
	}
	return err
}

// RemoveUser 取消用户的工作区分配
func (s *Service) RemoveUser(ctx context.Context, id int64, userID string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("workspace_id = ? AND user_id = ?", id, userID).Delete(&UserWorkspace{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound("user is not assigned to workspace %d", id)
	}
	return nil
}

// IsUserAssigned 用户是否已分配到工作区
func (s *Service) IsUserAssigned(ctx context.Context, id int64, userID string) (bool, error) {
	if _, err := s.find(ctx, id); err != nil {
		return false, err
	}
	return s.isAssigned(ctx, id, userID)
}

func (s *Service) isAssigned(ctx context.Context, id int64, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&UserWorkspace{}).
		Where("workspace_id = ? AND user_id = ?", id, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) checkAssignment(ctx context.Context, id int64, userID string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return err
	}
	ok, err := s.members.IsMember(ctx, customerID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewBusinessError(common.CodeUserNotFound, "")
	}
	return nil
}

func (s *Service) find(ctx context.Context, id int64) (*Workspace, error) {
	q, err := s.scoped(ctx)
	if err != nil {
		return nil, err
	}
	var w Workspace
	if err := q.Where("workspaces.id = ?", id).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("workspace with ID %d not found", id)
		}
		return nil, err
	}
	return &w, nil
}

func normalizeInput(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.SystemName = strings.TrimSpace(in.SystemName)
	return common.ValidateStruct(in)
}

func toView(w Workspace, reports []report.View) View {
	if reports == nil {
		reports = []report.View{}
	}
	return View{
		ID:         w.ID,
		Name:       w.Name,
		SystemName: w.SystemName,
		IsActive:   w.IsActive,
		Reports:    reports,
	}
}
