package shop

import "time"

// Shop 门店，归属单个租户
type Shop struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Source      string    `gorm:"size:100" json:"source"`
	PostalCode  string    `gorm:"size:20" json:"postalCode"`
	City        string    `gorm:"size:100;index" json:"city"`
	State       string    `gorm:"size:50;index" json:"state"`
	Country     string    `gorm:"size:50" json:"country"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CustomerID  int64     `gorm:"not null;index" json:"-"`
	BusinessKey *string   `gorm:"size:100" json:"businessKey,omitempty"`
	ParentID    *int64    `json:"parentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Shop) TableName() string {
	return "shops"
}

// Program 门店项目，按租户隔离
type Program struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CustomerID  int64     `gorm:"not null;index" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Program) TableName() string {
	return "programs"
}

// ShopProgram 门店-项目
type ShopProgram struct {
	ShopID     int64     `gorm:"primaryKey;autoIncrement:false"`
	ProgramID  int64     `gorm:"primaryKey;autoIncrement:false"`
	AssignedAt time.Time `gorm:"not null"`
	IsActive   bool      `gorm:"not null"`
}

// TableName 指定表名
func (ShopProgram) TableName() string {
	return "shop_programs"
}

// ShopUser 门店-用户
type ShopUser struct {
	ShopID     int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID     string    `gorm:"primaryKey;size:36"`
	AssignedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ShopUser) TableName() string {
	return "shop_users"
}

// Kpi 门店月度指标，由数据仓库同步写入
type Kpi struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	ShopID        int64      `gorm:"not null;index" json:"shopId"`
	Year          int        `gorm:"column:kpi_year;not null" json:"kpiYear"`
	Month         int        `gorm:"column:kpi_month;not null" json:"kpiMonth"`
	Value         *float64   `gorm:"column:kpi_value" json:"kpiValue"`
	Goal          *float64   `gorm:"column:kpi_goal" json:"kpiGoal"`
	Threshold     *float64   `gorm:"column:kpi_threshold" json:"kpiThreshold"`
	PropertyName  string     `gorm:"size:200" json:"propertyName"`
	CategoryName  string     `gorm:"size:200" json:"categoryName"`
	UnitType      string     `gorm:"size:50" json:"unitType"`
	AttributeName string     `gorm:"size:200" json:"attributeName"`
	SortOrder     int        `json:"attributeSortOrder"`
	RecordedAt    time.Time  `gorm:"not null;index" json:"timestamp"`
	ModifiedAt    *time.Time `json:"rowModifiedOn,omitempty"`
}

// TableName 指定表名
func (Kpi) TableName() string {
	return "shop_kpis"
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&Shop{}, &Program{}, &ShopProgram{}, &ShopUser{}, &Kpi{}}
}

// View 门店输出，附带项目名称与指标
type View struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Source       string   `json:"source"`
	PostalCode   string   `json:"postalCode"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Country      string   `json:"country"`
	IsActive     bool     `json:"isActive"`
	ProgramNames []string `json:"programNames"`
	KPIs         []Kpi    `json:"kpis"`
}

// Input 创建/更新门店参数
type Input struct {
	Name       string `json:"name" validate:"required,max=200"`
	Source     string `json:"source" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"max=20"`
	City       string `json:"city" validate:"max=100"`
	State      string `json:"state" validate:"max=50"`
	Country    string `json:"country" validate:"max=50"`
	IsActive   *bool  `json:"isActive"`
}

// ProgramInput 创建项目参数
type ProgramInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=500"`
}

// SearchFilter 门店搜索条件，日期条件作用于指标时间
type SearchFilter struct {
	SearchText string
	City       string
	State      string
	Program    string
	StartDate  *time.Time
	EndDate    *time.Time
}
