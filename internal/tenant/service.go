package tenant

import (
	"context"
	"errors"
	"strings"

	"customerportal/internal/common"
	"customerportal/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 保留子域名，不能分配给租户
var reservedSubdomains = map[string]struct{}{
	"admin": {},
	"www":   {},
	"api":   {},
}

// CreateCustomerInput 创建租户参数
type CreateCustomerInput struct {
	Name      string
	Subdomain string
}

// UpdateCustomerInput 更新租户参数，nil 字段保持不变
type UpdateCustomerInput struct {
	Name      *string
	Subdomain *string
}

// Service 租户目录管理（仅运营人员使用）
type Service struct {
	db  *gorm.DB
	dir *GormDirectory
}

// NewService 创建租户管理服务
func NewService(db *gorm.DB, dir *GormDirectory) *Service {
	return &Service{db: db, dir: dir}
}

// Directory 返回底层目录
func (s *Service) Directory() *GormDirectory {
	return s.dir
}

// ValidateSubdomain 规范化并校验子域名
func ValidateSubdomain(raw string) (string, error) {
	sub := NormalizeSubdomain(raw)
	if sub == "" {
		return "", common.Validation("subdomain is required")
	}
	if err := common.Validator().Var(sub, "dns_rfc1035_label"); err != nil {
		return "", common.Validation("subdomain %q must be a valid DNS label", sub)
	}
	if _, reserved := reservedSubdomains[sub]; reserved {
		return "", common.Validation("subdomain %q is reserved", sub)
	}
	return sub, nil
}

// List 列出租户，默认仅活跃租户
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Customer, error) {
	q := s.db.WithContext(ctx).Scopes(common.Ordered())
	if !includeInactive {
		q = q.Scopes(common.ActiveOnly())
	}
	var items []Customer
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Get 按 ID 获取租户（包括已停用的）
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("customer %d not found", id)
		}
		return nil, err
	}
	return &c, nil
}

// Create 创建租户，子域名全局唯一（包括已停用租户）
func (s *Service) Create(ctx context.Context, in CreateCustomerInput) (*Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Validation("name is required")
	}
	sub, err := ValidateSubdomain(in.Subdomain)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSubdomainFree(ctx, sub, 0); err != nil {
		return nil, err
	}

	c := &Customer{Name: name, Subdomain: sub, IsActive: true}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateSubdomain(sub)
		}
		return nil, err
	}

	logger.WithContext(ctx).Info("租户已创建",
		zap.Int64("customer_id", c.ID),
		zap.String("subdomain", c.Subdomain),
	)
	return c, nil
}

// Update 更新租户名称或子域名
func (s *Service) Update(ctx context.Context, id int64, in UpdateCustomerInput) (*Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSub := c.Subdomain

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, common.Validation("name is required")
		}
		updates["name"] = name
	}
	if in.Subdomain != nil {
		sub, err := ValidateSubdomain(*in.Subdomain)
		if err != nil {
			return nil, err
		}
		if sub != oldSub {
			if err := s.ensureSubdomainFree(ctx, sub, id); err != nil {
				return nil, err
			}
			updates["subdomain"] = sub
		}
	}
	if len(updates) == 0 {
		return c, nil
	}

	if err := s.db.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateSubdomain(*in.Subdomain)
		}
		return nil, err
	}
	s.dir.invalidate(ctx, oldSub, c.Subdomain)
	return s.Get(ctx, id)
}

// SetStatus 启用或停用租户；停用后所有租户查询不可见
func (s *Service) SetStatus(ctx context.Context, id int64, active bool) (*Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(c).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	c.IsActive = active
	s.dir.invalidate(ctx, c.Subdomain)

	logger.WithContext(ctx).Info("租户状态已变更",
		zap.Int64("customer_id", id),
		zap.Bool("is_active", active),
	)
	return c, nil
}

func (s *Service) ensureSubdomainFree(ctx context.Context, sub string, exceptID int64) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&Customer{}).Where("subdomain = ?", sub)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return duplicateSubdomain(sub)
	}
	return nil
}

func duplicateSubdomain(sub string) error {
	return common.InvalidOperation("a customer with subdomain %q already exists", sub)
}
