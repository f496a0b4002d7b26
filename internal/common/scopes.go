package common

import "gorm.io/gorm"

// ByCustomer 按客户（租户）ID过滤
// 使用方法：db.Scopes(common.ByCustomer(tenantID)).Find(&shops)
// 业务代码不要直接调用，统一经由 tenant.Scoped 获取已过滤的查询
func ByCustomer(column string, customerID int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", customerID)
	}
}

// ActiveOnly 仅查询 is_active = true 的记录
// 使用方法：db.Scopes(common.ActiveOnly()).Find(&customers)
func ActiveOnly() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true)
	}
}

// Ordered 按主键升序，保证 First 语义稳定
func Ordered() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}
}
