package user

import (
	"context"
	"errors"
	"fmt"

	"customerportal/internal/auth"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionDefinition 描述系统预置权限
type PermissionDefinition struct {
	Name        string
	Category    string
	Description string
}

var systemPermissionCatalog = []PermissionDefinition{
	{Name: "customers:manage", Category: "customers", Description: "Create, update and deactivate customers."},
	{Name: "users:read", Category: "users", Description: "View users of the customer portal."},
	{Name: "users:manage", Category: "users", Description: "Create, update and delete users."},
	{Name: "roles:manage", Category: "roles", Description: "Manage roles, permissions and assignments."},
	{Name: "workspaces:read", Category: "workspaces", Description: "View workspaces."},
	{Name: "workspaces:manage", Category: "workspaces", Description: "Create, update and delete workspaces."},
	{Name: "shops:read", Category: "shops", Description: "View shops, programs and KPIs."},
	{Name: "shops:manage", Category: "shops", Description: "Create, update and delete shops."},
	{Name: "reports:read", Category: "reports", Description: "View reports and report categories."},
	{Name: "reports:manage", Category: "reports", Description: "Create, update and delete reports."},
	{Name: "reports:embed", Category: "reports", Description: "Open embedded BI reports."},
}

// 内置角色及其权限，启动时保证存在
var builtInRoles = []struct {
	Name        string
	Description string
	Permissions []string
}{
	{
		Name:        auth.RoleAdmin,
		Description: "Full access to every customer portal.",
		Permissions: []string{
			"customers:manage", "users:read", "users:manage", "roles:manage",
			"workspaces:read", "workspaces:manage", "shops:read", "shops:manage",
			"reports:read", "reports:manage", "reports:embed",
		},
	},
	{
		Name:        auth.RoleCustomerAdmin,
		Description: "Administers a single customer portal.",
		Permissions: []string{
			"users:read", "users:manage", "roles:manage",
			"workspaces:read", "workspaces:manage", "shops:read", "shops:manage",
			"reports:read", "reports:manage", "reports:embed",
		},
	},
	{
		Name:        auth.RoleCustomerViewer,
		Description: "Read-only access to a customer portal.",
		Permissions: []string{"workspaces:read", "shops:read", "reports:read", "reports:embed"},
	},
}

// IsBuiltInRole 是否内置角色
func IsBuiltInRole(name string) bool {
	for _, r := range builtInRoles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// EnsureSystemPermissions 将预置权限与内置角色写入数据库（幂等）
// 已存在的内置角色只补齐缺失的权限，不移除人工添加的权限
func EnsureSystemPermissions(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range systemPermissionCatalog {
			p := Permission{Name: def.Name, Category: def.Category, Description: def.Description}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"category", "description"}),
			}).Create(&p).Error
			if err != nil {
				return fmt.Errorf("写入权限 %s 失败: %w", def.Name, err)
			}
		}

		for _, def := range builtInRoles {
			var role Role
			err := tx.Where("name = ?", def.Name).First(&role).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				role = Role{Name: def.Name, Description: def.Description}
				err = tx.Create(&role).Error
			}
			if err != nil {
				return fmt.Errorf("写入内置角色 %s 失败: %w", def.Name, err)
			}

			var perms []Permission
			if err := tx.Where("name IN ?", def.Permissions).Find(&perms).Error; err != nil {
				return err
			}
			for _, p := range perms {
				err := tx.Clauses(clause.OnConflict{DoNothing: true}).
					Create(&RolePermission{RoleID: role.ID, PermissionID: p.ID}).Error
				if err != nil {
					return fmt.Errorf("写入角色权限失败: %w", err)
				}
			}
		}
		return nil
	})
}
