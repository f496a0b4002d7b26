package user

import (
	"context"
	"errors"
	"strings"

	"customerportal/internal/auth"
	"customerportal/internal/common"
	"customerportal/internal/logger"
	"customerportal/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Memberships 租户成员关系
type Memberships interface {
	IsMember(ctx context.Context, customerID int64, userID string) (bool, error)
	AddMember(ctx context.Context, customerID int64, userID string) error
	AddMemberTx(ctx context.Context, tx *gorm.DB, customerID int64, userID string) error
	RemoveMember(ctx context.Context, customerID int64, userID string) error
	MemberIDs(ctx context.Context, customerID int64) ([]string, error)
	MembershipsOf(ctx context.Context, userID string) ([]int64, error)
}

// CustomerLookup 校验租户是否存在
type CustomerLookup interface {
	Get(ctx context.Context, id int64) (*tenant.Customer, error)
}

// Caller 当前调用者
type Caller struct {
	UserID    string
	IsCCIUser bool
	Roles     []string
}

// CallerFromClaims 由令牌声明构造调用者
func CallerFromClaims(c *auth.TokenClaims) Caller {
	if c == nil {
		return Caller{}
	}
	return Caller{UserID: c.UserID, IsCCIUser: c.IsCCIUser, Roles: c.Roles}
}

// IsAdmin 是否拥有 Admin 角色
func (c Caller) IsAdmin() bool {
	return containsFold(c.Roles, auth.RoleAdmin)
}

// IsOperator 运营人员或 Admin，可以授予/撤销 Admin 并管理用户类型
func (c Caller) IsOperator() bool {
	return c.IsCCIUser || c.IsAdmin()
}

// ListFilter 用户列表过滤条件
type ListFilter struct {
	IsCustomerUser *bool
	IsCCIUser      *bool
}

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	Email          string
	Name           string
	Password       string
	IsCCIUser      bool
	IsCustomerUser bool
	Roles          []string
}

// UpdateUserInput 更新用户参数，nil 字段保持不变
type UpdateUserInput struct {
	Email          *string
	Name           *string
	Status         *string
	IsCCIUser      *bool
	IsCustomerUser *bool
	Roles          *[]string
}

// Service 用户管理
type Service struct {
	db        *gorm.DB
	members   Memberships
	customers CustomerLookup
}

// NewService 创建用户服务
func NewService(db *gorm.DB, members Memberships, customers CustomerLookup) *Service {
	return &Service{db: db, members: members, customers: customers}
}

// NormalizeEmail 邮箱统一小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate 校验邮箱与密码，失败统一返回 InvalidCredentials
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessError(common.CodeInvalidCredentials, "")
		}
		return nil, err
	}
	if u.Status != StatusActive || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, common.NewBusinessError(common.CodeInvalidCredentials, "")
	}
	return &u, nil
}

// TouchLastLogin 更新最后登录时间
func (s *Service) TouchLastLogin(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		Update("last_login_at", s.db.NowFunc()).Error
}

// RoleNames 用户拥有的角色名
func (s *Service) RoleNames(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Pluck("roles.name", &names).Error
	return names, err
}

// List 列出调用者可见的用户；非运营人员只能看到当前租户的成员
func (s *Service) List(ctx context.Context, caller Caller, f ListFilter) ([]UserView, error) {
	q := s.db.WithContext(ctx).Model(&User{}).Order("email ASC")
	if !caller.IsCCIUser {
		ids, err := s.visibleIDs(ctx)
		if err != nil {
			return nil, err
		}
		q = q.Where("id IN ?", ids)
	}
	if f.IsCustomerUser != nil {
		q = q.Where("is_customer_user = ?", *f.IsCustomerUser)
	}
	if f.IsCCIUser != nil {
		q = q.Where("is_cci_user = ?", *f.IsCCIUser)
	}

	var users []User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return s.views(ctx, users)
}

// ListByCustomer 列出租户的全部成员（运营人员使用）
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]UserView, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	ids, err := s.members.MemberIDs(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []UserView{}, nil
	}
	var users []User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("email ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return s.views(ctx, users)
}

// Get 获取单个用户；不可见的用户与不存在的用户同样返回 NotFound
func (s *Service) Get(ctx context.Context, caller Caller, id string) (*UserView, error) {
	u, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []User{*u})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create 创建用户
// 非运营调用者只能创建租户用户，且不能授予 Admin 角色；租户用户自动加入当前租户
func (s *Service) Create(ctx context.Context, caller Caller, in CreateUserInput) (*UserView, error) {
	email := NormalizeEmail(in.Email)
	if err := common.Validator().Var(email, "required,email"); err != nil {
		return nil, common.Validation("email %q is not valid", in.Email)
	}
	if !caller.IsOperator() {
		if in.IsCCIUser || !in.IsCustomerUser {
			return nil, common.Forbidden("customer administrators can only create customer users")
		}
		if containsFold(in.Roles, auth.RoleAdmin) {
			return nil, common.Forbidden("only operators can grant the Admin role")
		}
	}
	if err := auth.ValidatePasswordPolicy(in.Password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	var customerID int64
	if in.IsCustomerUser {
		if tc, ok := tenant.FromContext(ctx); ok && tc.HasTenant() {
			customerID = tc.TenantID
		} else if !caller.IsCCIUser {
			return nil, common.TenantRequired()
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           strings.TrimSpace(in.Name),
		PasswordHash:   hash,
		IsCCIUser:      in.IsCCIUser,
		IsCustomerUser: in.IsCustomerUser,
		Status:         StatusActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.InvalidOperation("a user with email %q already exists", email)
			}
			return err
		}
		if err := replaceUserRoles(tx, u.ID, in.Roles); err != nil {
			return err
		}
		if customerID > 0 {
			return s.members.AddMemberTx(ctx, tx, customerID, u.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("用户已创建",
		zap.String("user_id", u.ID),
		zap.Bool("is_cci_user", u.IsCCIUser),
		zap.Int64("customer_id", customerID),
	)
	return s.Get(ctx, Caller{IsCCIUser: true}, u.ID)
}

// Update 更新用户及其角色集合
func (s *Service) Update(ctx context.Context, caller Caller, id string, in UpdateUserInput) (*UserView, error) {
	u, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if err := common.Validator().Var(email, "required,email"); err != nil {
			return nil, common.Validation("email %q is not valid", *in.Email)
		}
		if email != u.Email {
			if err := s.ensureEmailFree(ctx, email, u.ID); err != nil {
				return nil, err
			}
			updates["email"] = email
		}
	}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Status != nil {
		switch *in.Status {
		case StatusActive, StatusDisabled:
			updates["status"] = *in.Status
		default:
			return nil, common.Validation("status must be %q or %q", StatusActive, StatusDisabled)
		}
	}
	if in.IsCCIUser != nil || in.IsCustomerUser != nil {
		if !caller.IsOperator() {
			return nil, common.Forbidden("only operators can change user types")
		}
		if in.IsCCIUser != nil {
			updates["is_cci_user"] = *in.IsCCIUser
		}
		if in.IsCustomerUser != nil {
			updates["is_customer_user"] = *in.IsCustomerUser
		}
	}
	if in.Roles != nil && !caller.IsOperator() {
		current, err := s.RoleNames(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if containsFold(current, auth.RoleAdmin) != containsFold(*in.Roles, auth.RoleAdmin) {
			return nil, common.Forbidden("only operators can grant or revoke the Admin role")
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return common.InvalidOperation("a user with this email already exists")
				}
				return err
			}
		}
		if in.Roles != nil {
			return replaceUserRoles(tx, u.ID, *in.Roles)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, caller, u.ID)
}

// Delete 删除用户及其角色、成员关系
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.NewBusinessError(common.CodeUserNotFound, "")
		}
		if err := tx.Where("user_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&tenant.CustomerUser{}).Error
	})
}

// ChangePassword 用户修改自己的密码
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, currentPassword) {
		return common.Validation("current password is incorrect")
	}
	return s.setPassword(ctx, u.ID, newPassword)
}

// ResetPassword 管理员重置密码
func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	u, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u.ID, newPassword)
}

// AddToCustomer 将用户加入租户
func (s *Service) AddToCustomer(ctx context.Context, userID string, customerID int64) error {
	if _, err := s.find(ctx, userID); err != nil {
		return err
	}
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return err
	}
	return s.members.AddMember(ctx, customerID, userID)
}

// RemoveFromCustomer 将用户移出租户
func (s *Service) RemoveFromCustomer(ctx context.Context, userID string, customerID int64) error {
	if _, err := s.find(ctx, userID); err != nil {
		return err
	}
	return s.members.RemoveMember(ctx, customerID, userID)
}

func (s *Service) setPassword(ctx context.Context, userID, password string) error {
	if err := auth.ValidatePasswordPolicy(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("password_hash", hash).Error
}

func (s *Service) find(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessError(common.CodeUserNotFound, "")
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) loadVisible(ctx context.Context, caller Caller, id string) (*User, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsCCIUser {
		return u, nil
	}
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.members.IsMember(ctx, customerID, u.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewBusinessError(common.CodeUserNotFound, "")
	}
	return u, nil
}

func (s *Service) visibleIDs(ctx context.Context) ([]string, error) {
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.members.MemberIDs(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return common.InvalidOperation("a user with email %q already exists", email)
	}
	return nil
}

func (s *Service) views(ctx context.Context, users []User) ([]UserView, error) {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		roles, err := s.RoleNames(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		customers, err := s.members.MembershipsOf(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if roles == nil {
			roles = []string{}
		}
		if customers == nil {
			customers = []int64{}
		}
		out = append(out, UserView{
			ID:             u.ID,
			Email:          u.Email,
			Name:           u.Name,
			IsCCIUser:      u.IsCCIUser,
			IsCustomerUser: u.IsCustomerUser,
			Status:         u.Status,
			Roles:          roles,
			CustomerIDs:    customers,
			CreatedAt:      u.CreatedAt,
			LastLoginAt:    u.LastLoginAt,
		})
	}
	return out, nil
}

// replaceUserRoles 以给定角色名集合替换用户角色，未知角色返回校验错误
func replaceUserRoles(tx *gorm.DB, userID string, names []string) error {
	var roles []Role
	if len(names) > 0 {
		if err := tx.Where("name IN ?", names).Find(&roles).Error; err != nil {
			return err
		}
		if missing := missingNames(names, roles); len(missing) > 0 {
			return common.Validation("unknown roles: %s", strings.Join(missing, ", "))
		}
	}
	if err := tx.Where("user_id = ?", userID).Delete(&UserRole{}).Error; err != nil {
		return err
	}
	for _, r := range roles {
		if err := tx.Create(&UserRole{UserID: userID, RoleID: r.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

func missingNames(names []string, roles []Role) []string {
	found := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		found[r.Name] = struct{}{}
	}
	var missing []string
	for _, n := range names {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
