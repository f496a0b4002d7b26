package workspace

import (
	"time"

	"customerportal/internal/report"
)

// Workspace 租户工作区，报表挂在工作区下
type Workspace struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	SystemName string    `gorm:"size:200;not null" json:"systemName"`
	IsActive   bool      `gorm:"not null" json:"isActive"`
	CustomerID int64     `gorm:"not null;index" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Workspace) TableName() string {
	return "workspaces"
}

// UserWorkspace 用户-工作区分配
type UserWorkspace struct {
	UserID      string    `gorm:"primaryKey;size:36"`
	WorkspaceID int64     `gorm:"primaryKey;autoIncrement:false"`
	AssignedAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (UserWorkspace) TableName() string {
	return "user_workspaces"
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&Workspace{}, &UserWorkspace{}}
}

// View 工作区输出
type View struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	SystemName string        `json:"systemName"`
	IsActive   bool          `json:"isActive"`
	Reports    []report.View `json:"reports"`
}

// Input 创建/更新工作区参数
type Input struct {
	Name       string `json:"name" validate:"required,max=200"`
	SystemName string `json:"systemName" validate:"required,max=200"`
	IsActive   *bool  `json:"isActive"`
}
