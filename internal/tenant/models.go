package tenant

import "time"

// Customer 租户（客户），子域名全局唯一，停用后仍占用
type Customer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Subdomain string    `gorm:"size:63;not null;uniqueIndex" json:"subdomain"`
	IsActive  bool      `gorm:"not null;index" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Customer) TableName() string {
	return "customers"
}

// CustomerUser 租户成员关系，(customer_id, user_id) 唯一
type CustomerUser struct {
	CustomerID int64     `gorm:"primaryKey;autoIncrement:false" json:"customerId"`
	UserID     string    `gorm:"primaryKey;size:36" json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定表名
func (CustomerUser) TableName() string {
	return "customer_users"
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&Customer{}, &CustomerUser{}}
}
