package tenant

import (
	"context"
	"errors"
	"strings"

	"customerportal/internal/common"
	"customerportal/internal/metrics"

	"gorm.io/gorm"
)

// Directory 租户目录的只读视图，供解析器、授权与登录使用
// 查找不到时返回 (nil, nil)
type Directory interface {
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*Customer, error)
	FirstActive(ctx context.Context) (*Customer, error)
	IsMember(ctx context.Context, customerID int64, userID string) (bool, error)
}

// GormDirectory 基于 gorm 的租户目录
type GormDirectory struct {
	db    *gorm.DB
	cache SubdomainCache
}

// NewDirectory 创建租户目录，cache 可为 nil
func NewDirectory(db *gorm.DB, cache SubdomainCache) *GormDirectory {
	return &GormDirectory{db: db, cache: cache}
}

// NormalizeSubdomain 子域名统一小写、去空白
func NormalizeSubdomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindActiveBySubdomain 按子域名查找活跃租户
func (d *GormDirectory) FindActiveBySubdomain(ctx context.Context, subdomain string) (*Customer, error) {
	subdomain = NormalizeSubdomain(subdomain)
	if subdomain == "" {
		return nil, nil
	}

	if d.cache != nil {
		if c, ok := d.cache.Get(ctx, subdomain); ok {
			metrics.SubdomainCacheTotal.WithLabelValues("hit").Inc()
			return c, nil
		}
		metrics.SubdomainCacheTotal.WithLabelValues("miss").Inc()
	}

	var c Customer
	err := d.db.WithContext(ctx).
		Scopes(common.ActiveOnly()).
		Where("subdomain = ?", subdomain).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if d.cache != nil {
		d.cache.Set(ctx, subdomain, &c)
	}
	return &c, nil
}

// FirstActive 返回 ID 最小的活跃租户
func (d *GormDirectory) FirstActive(ctx context.Context) (*Customer, error) {
	var c Customer
	err := d.db.WithContext(ctx).
		Scopes(common.ActiveOnly(), common.Ordered()).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IsMember 判断用户是否属于租户
func (d *GormDirectory) IsMember(ctx context.Context, customerID int64, userID string) (bool, error) {
	if customerID <= 0 || userID == "" {
		return false, nil
	}
	var count int64
	err := d.db.WithContext(ctx).
		Model(&CustomerUser{}).
		Where("customer_id = ? AND user_id = ?", customerID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MemberIDs 返回租户全部成员的用户 ID
func (d *GormDirectory) MemberIDs(ctx context.Context, customerID int64) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).
		Model(&CustomerUser{}).
		Where("customer_id = ?", customerID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// MembershipsOf 返回用户所属的全部租户 ID
func (d *GormDirectory) MembershipsOf(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	err := d.db.WithContext(ctx).
		Model(&CustomerUser{}).
		Where("user_id = ?", userID).
		Order("customer_id ASC").
		Pluck("customer_id", &ids).Error
	return ids, err
}

// AddMember 添加成员关系，已存在时返回 InvalidOperation
func (d *GormDirectory) AddMember(ctx context.Context, customerID int64, userID string) error {
	return d.AddMemberTx(ctx, d.db, customerID, userID)
}

// AddMemberTx 在调用方事务内添加成员关系
func (d *GormDirectory) AddMemberTx(ctx context.Context, tx *gorm.DB, customerID int64, userID string) error {
	var n int64
	err := tx.WithContext(ctx).Model(&CustomerUser{}).
		Where("customer_id = ? AND user_id = ?", customerID, userID).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return common.InvalidOperation("user %s is already associated with customer %d", userID, customerID)
	}
	err = tx.WithContext(ctx).Create(&CustomerUser{CustomerID: customerID, UserID: userID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.InvalidOperation("user %s is already associated with customer %d", userID, customerID)
	}
	return err
}

// RemoveMember 删除成员关系，不存在时返回 NotFound
func (d *GormDirectory) RemoveMember(ctx context.Context, customerID int64, userID string) error {
	res := d.db.WithContext(ctx).
		Where("customer_id = ? AND user_id = ?", customerID, userID).
		Delete(&CustomerUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound("user %s is not associated with customer %d", userID, customerID)
	}
	return nil
}

func (d *GormDirectory) invalidate(ctx context.Context, subdomains ...string) {
	if d.cache == nil {
		return
	}
	for _, s := range subdomains {
		if s != "" {
			d.cache.Invalidate(ctx, s)
		}
	}
}
