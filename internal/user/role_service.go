package user

import (
	"context"
	"errors"
	"strings"

	"customerportal/internal/auth"
	"customerportal/internal/common"
	"customerportal/internal/tenant"

	"gorm.io/gorm"
)

// WorkspaceScope 判断工作区是否属于当前租户
type WorkspaceScope interface {
	ExistsInScope(ctx context.Context, workspaceID int64) (bool, error)
}

// RoleInput 创建/更新角色参数
type RoleInput struct {
	Name        string
	Description string
	Permissions []string
}

// RoleService 全局角色与权限管理
type RoleService struct {
	db         *gorm.DB
	members    Memberships
	workspaces WorkspaceScope
}

// NewRoleService 创建角色服务
func NewRoleService(db *gorm.DB, members Memberships, workspaces WorkspaceScope) *RoleService {
	return &RoleService{db: db, members: members, workspaces: workspaces}
}

// List 列出全部角色
func (s *RoleService) List(ctx context.Context) ([]RoleView, error) {
	var roles []Role
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	out := make([]RoleView, 0, len(roles))
	for _, r := range roles {
		v, err := s.view(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// ListPermissions 列出全部权限
func (s *RoleService) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	err := s.db.WithContext(ctx).Order("category ASC, name ASC").Find(&perms).Error
	return perms, err
}

// Get 获取角色
func (s *RoleService) Get(ctx context.Context, id int64) (*RoleView, error) {
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *r)
}

// Create 创建角色，名称唯一
func (s *RoleService) Create(ctx context.Context, in RoleInput) (*RoleView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Validation("role name is required")
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	role := &Role{Name: name, Description: strings.TrimSpace(in.Description)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.InvalidOperation("a role named %q already exists", name)
			}
			return err
		}
		return replaceRolePermissions(tx, role.ID, in.Permissions)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, role.ID)
}

// Update 更新角色名称、描述与权限；内置角色不能改名
func (s *RoleService) Update(ctx context.Context, id int64, in RoleInput) (*RoleView, error) {
	role, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Validation("role name is required")
	}
	if name != role.Name {
		if IsBuiltInRole(role.Name) {
			return nil, common.InvalidOperation("built-in role %q cannot be renamed", role.Name)
		}
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(role).Updates(map[string]any{
			"name":        name,
			"description": strings.TrimSpace(in.Description),
		}).Error; err != nil {
			return err
		}
		return replaceRolePermissions(tx, id, in.Permissions)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete 删除角色；内置角色不可删除
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	role, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if IsBuiltInRole(role.Name) {
		return common.InvalidOperation("built-in role %q cannot be deleted", role.Name)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&UserRole{}, &RolePermission{}, &RoleWorkspace{}} {
			if err := tx.Where("role_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Role{}, id).Error
	})
}

// SetPermissions 替换角色权限集合
func (s *RoleService) SetPermissions(ctx context.Context, id int64, permissions []string) (*RoleView, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceRolePermissions(tx, id, permissions)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// AssignUser 给用户分配角色
// 非运营人员只能操作当前租户成员；只有运营人员可以授予 Admin
func (s *RoleService) AssignUser(ctx context.Context, caller Caller, roleID int64, userID string) error {
	role, err := s.checkUserAssignment(ctx, caller, roleID, userID)
	if err != nil {
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, role.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return common.InvalidOperation("user already has role %q", role.Name)
	}
	return s.db.WithContext(ctx).Create(&UserRole{UserID: userID, RoleID: role.ID}).Error
}

// RemoveUser 撤销用户角色
func (s *RoleService) RemoveUser(ctx context.Context, caller Caller, roleID int64, userID string) error {
	role, err := s.checkUserAssignment(ctx, caller, roleID, userID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, role.ID).Delete(&UserRole{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound("user does not have role %q", role.Name)
	}
	return nil
}

// AssignWorkspace 将角色分配到当前租户的工作区
func (s *RoleService) AssignWorkspace(ctx context.Context, roleID, workspaceID int64) error {
	if err := s.checkWorkspaceAssignment(ctx, roleID, workspaceID); err != nil {
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&RoleWorkspace{}).
		Where("role_id = ? AND workspace_id = ?", roleID, workspaceID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return common.InvalidOperation("role is already assigned to workspace %d", workspaceID)
	}
	return s.db.WithContext(ctx).Create(&RoleWorkspace{RoleID: roleID, WorkspaceID: workspaceID}).Error
}

// RemoveWorkspace 取消角色的工作区分配
func (s *RoleService) RemoveWorkspace(ctx context.Context, roleID, workspaceID int64) error {
	if err := s.checkWorkspaceAssignment(ctx, roleID, workspaceID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("role_id = ? AND workspace_id = ?", roleID, workspaceID).
		Delete(&RoleWorkspace{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound("role is not assigned to workspace %d", workspaceID)
	}
	return nil
}

// WorkspaceIDs 角色已分配的工作区
func (s *RoleService) WorkspaceIDs(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&RoleWorkspace{}).
		Where("role_id = ?", roleID).
		Order("workspace_id ASC").
		Pluck("workspace_id", &ids).Error
	return ids, err
}

func (s *RoleService) checkUserAssignment(ctx context.Context, caller Caller, roleID int64, userID string) (*Role, error) {
	role, err := s.find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(role.Name, auth.RoleAdmin) && !caller.IsOperator() {
		return nil, common.Forbidden("only operators can grant or revoke the Admin role")
	}

	var u User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessError(common.CodeUserNotFound, "")
		}
		return nil, err
	}
	if caller.IsCCIUser {
		return role, nil
	}
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.members.IsMember(ctx, customerID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewBusinessError(common.CodeUserNotFound, "")
	}
	return role, nil
}

func (s *RoleService) checkWorkspaceAssignment(ctx context.Context, roleID, workspaceID int64) error {
	if _, err := s.find(ctx, roleID); err != nil {
		return err
	}
	ok, err := s.workspaces.ExistsInScope(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !ok {
		return common.NotFound("workspace %d not found", workspaceID)
	}
	return nil
}

func (s *RoleService) find(ctx context.Context, id int64) (*Role, error) {
	var r Role
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessError(common.CodeRoleNotFound, "")
		}
		return nil, err
	}
	return &r, nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name string, exceptID int64) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&Role{}).Where("name = ?", name)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return common.InvalidOperation("a role named %q already exists", name)
	}
	return nil
}

func (s *RoleService) view(ctx context.Context, r Role) (*RoleView, error) {
	var perms []string
	err := s.db.WithContext(ctx).
		Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", r.ID).
		Order("permissions.name ASC").
		Pluck("permissions.name", &perms).Error
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}
	return &RoleView{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: perms,
		BuiltIn:     IsBuiltInRole(r.Name),
	}, nil
}

// replaceRolePermissions 以权限名集合替换角色权限，未知权限返回校验错误
func replaceRolePermissions(tx *gorm.DB, roleID int64, names []string) error {
	var perms []Permission
	if len(names) > 0 {
		if err := tx.Where("name IN ?", names).Find(&perms).Error; err != nil {
			return err
		}
		found := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			found[p.Name] = struct{}{}
		}
		var missing []string
		for _, n := range names {
			if _, ok := found[n]; !ok {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			return common.Validation("unknown permissions: %s", strings.Join(missing, ", "))
		}
	}
	if err := tx.Where("role_id = ?", roleID).Delete(&RolePermission{}).Error; err != nil {
		return err
	}
	for _, p := range perms {
		if err := tx.Create(&RolePermission{RoleID: roleID, PermissionID: p.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// DetachWorkspace 在调用方事务内移除工作区的全部角色授权
func (s *RoleService) DetachWorkspace(ctx context.Context, tx *gorm.DB, workspaceID int64) error {
	return tx.WithContext(ctx).Where("workspace_id = ?", workspaceID).Delete(&RoleWorkspace{}).Error
}
