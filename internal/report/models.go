package report

import "time"

// Report 报表，通过所属工作区归属租户
type Report struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"size:500;not null" json:"description"`
	PowerBIReportID  string    `gorm:"column:power_bi_report_id;size:36;not null" json:"powerBiReportId"`
	WorkspaceID      int64     `gorm:"not null;index" json:"workspaceId"`
	ReportCategoryID int64     `gorm:"not null;index" json:"reportCategoryId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Report) TableName() string {
	return "reports"
}

// Category 报表分类，按租户隔离
type Category struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  string    `gorm:"size:500" json:"description"`
	CustomerID   int64     `gorm:"not null;index" json:"-"`
	DisplayOrder int       `gorm:"not null" json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "report_categories"
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&Category{}, &Report{}}
}

// View 报表输出，附带分类名称
type View struct {
	ID               int64  `gorm:"column:id" json:"id"`
	Name             string `gorm:"column:name" json:"name"`
	Description      string `gorm:"column:description" json:"description"`
	PowerBIReportID  string `gorm:"column:power_bi_report_id" json:"powerBiReportId"`
	CategoryName     string `gorm:"column:category_name" json:"categoryName"`
	WorkspaceID      int64  `gorm:"column:workspace_id" json:"workspaceId"`
	ReportCategoryID int64  `gorm:"column:report_category_id" json:"reportCategoryId"`
}

// EmbedConfig 前端嵌入报表所需配置
type EmbedConfig struct {
	ReportID         string    `json:"reportId"`
	EmbedToken       string    `json:"embedToken"`
	EmbedURL         string    `json:"embedUrl"`
	ExpiresInMinutes int       `json:"expiresInMinutes"`
	Expiration       time.Time `json:"expiration,omitempty"`
}
