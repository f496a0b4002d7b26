package user

import "time"

// 用户状态
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User 门户用户
// IsCCIUser 为运营人员（绕过租户范围），IsCustomerUser 为租户用户，两者可同时为真
type User struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Email          string     `gorm:"size:256;not null;uniqueIndex" json:"email"` // 统一小写存储
	Name           string     `gorm:"size:200" json:"name"`
	PasswordHash   string     `gorm:"size:100" json:"-"`
	IsCCIUser      bool       `gorm:"not null" json:"isCCIUser"`
	IsCustomerUser bool       `gorm:"not null" json:"isCustomerUser"`
	Status         string     `gorm:"size:20;not null" json:"status"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Role 全局角色
type Role struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Role) TableName() string {
	return "roles"
}

// Permission 权限
type Permission struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Category    string `gorm:"size:50" json:"category"`
	Description string `gorm:"size:500" json:"description"`
}

// TableName 指定表名
func (Permission) TableName() string {
	return "permissions"
}

// UserRole 用户-角色
type UserRole struct {
	UserID    string    `gorm:"primaryKey;size:36"`
	RoleID    int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

// TableName 指定表名
func (UserRole) TableName() string {
	return "user_roles"
}

// RolePermission 角色-权限
type RolePermission struct {
	RoleID       int64 `gorm:"primaryKey;autoIncrement:false"`
	PermissionID int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName 指定表名
func (RolePermission) TableName() string {
	return "role_permissions"
}

// RoleWorkspace 角色在工作区级别的分配
type RoleWorkspace struct {
	RoleID      int64 `gorm:"primaryKey;autoIncrement:false"`
	WorkspaceID int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (RoleWorkspace) TableName() string {
	return "role_workspaces"
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&User{}, &Role{}, &Permission{}, &UserRole{}, &RolePermission{}, &RoleWorkspace{}}
}

// UserView 对外输出的用户信息
type UserView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	IsCCIUser      bool       `json:"isCCIUser"`
	IsCustomerUser bool       `json:"isCustomerUser"`
	Status         string     `json:"status"`
	Roles          []string   `json:"roles"`
	CustomerIDs    []int64    `json:"customerIds"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
}

// RoleView 对外输出的角色信息
type RoleView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	BuiltIn     bool     `json:"builtIn"`
}
