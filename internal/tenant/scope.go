package tenant

import (
	"context"

	"customerportal/internal/common"

	"gorm.io/gorm"
)

// Scoped 返回限定到当前租户的查询
// column 为实体表中的租户外键列（如 workspaces.customer_id）
// 请求未解析出租户时返回 ErrTenantRequired，绝不退化为全表查询
func Scoped(ctx context.Context, db *gorm.DB, column string) (*gorm.DB, error) {
	id, err := CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx).Scopes(common.ByCustomer(column, id), activeCustomer(id)), nil
}

// activeCustomer 已停用租户的数据对所有租户查询不可见
func activeCustomer(customerID int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("EXISTS (SELECT 1 FROM customers WHERE customers.id = ? AND customers.is_active = ?)", customerID, true)
	}
}
