package user

import (
	"context"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/common"
	"customerportal/internal/logger"
	"customerportal/internal/metrics"
	"customerportal/internal/tenant"

	"go.uber.org/zap"
)

// HostTenantResolver 登录时由主机名确定租户
type HostTenantResolver interface {
	IsAdminPortalHost(host string) bool
	ResolveHostTenant(ctx context.Context, host string) (*tenant.Customer, error)
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"user"`
}

// SessionUser 登录响应中的用户信息
type SessionUser struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	Roles           []string `json:"roles"`
	IsCCIUser       bool     `json:"isCCIUser"`
	IsCustomerUser  bool     `json:"isCustomerUser"`
	TenantID        int64    `json:"tenantId,omitempty"`
	TenantSubdomain string   `json:"tenantSubdomain,omitempty"`
	IsAdminPortal   bool     `json:"isAdminPortal,omitempty"`
}

// LoginService 校验凭据并签发会话令牌
type LoginService struct {
	users    *Service
	resolver HostTenantResolver
	members  Memberships
	tokens   *auth.JWTService
}

// NewLoginService 创建登录服务
func NewLoginService(users *Service, resolver HostTenantResolver, members Memberships, tokens *auth.JWTService) *LoginService {
	return &LoginService{users: users, resolver: resolver, members: members, tokens: tokens}
}

// Login 登录
//
// 管理门户主机上的运营人员获得 IsAdminPortal 令牌；
// 租户用户按主机名解析租户并校验成员关系，租户不存在返回 404，非成员返回 401；
// 只有确认过的租户才写入令牌。
func (s *LoginService) Login(ctx context.Context, email, password, host string) (*LoginResult, error) {
	result, err := s.login(ctx, email, password, host)
	status := "success"
	if err != nil {
		status = "failure"
		logger.WithContext(ctx).Info("登录失败",
			zap.String("email", NormalizeEmail(email)),
			zap.String("host", host),
			zap.Int("code", common.CodeOf(err)),
		)
	}
	metrics.LoginAttemptsTotal.WithLabelValues(status).Inc()
	return result, err
}

func (s *LoginService) login(ctx context.Context, email, password, host string) (*LoginResult, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	roles, err := s.users.RoleNames(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}

	params := auth.IssueParams{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Roles:          roles,
		IsCustomerUser: u.IsCustomerUser,
		IsCCIUser:      u.IsCCIUser,
	}

	switch {
	case u.IsCCIUser && s.resolver.IsAdminPortalHost(host):
		params.IsAdminPortal = true
	case u.IsCustomerUser:
		cust, err := s.resolver.ResolveHostTenant(ctx, host)
		if err != nil {
			return nil, err
		}
		if cust == nil {
			return nil, common.NewBusinessError(common.CodeTenantNotFound, "customer portal not found")
		}
		ok, err := s.members.IsMember(ctx, cust.ID, u.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.NewBusinessError(common.CodeNotTenantMember, "")
		}
		params.TenantID = cust.ID
		params.TenantSubdomain = cust.Subdomain
	}

	issued, err := s.tokens.Issue(params)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		logger.WithContext(ctx).Warn("更新最后登录时间失败", zap.String("user_id", u.ID), zap.Error(err))
	}

	logger.WithContext(ctx).Info("用户登录成功",
		zap.String("user_id", u.ID),
		zap.Int64("tenant_id", params.TenantID),
		zap.Bool("admin_portal", params.IsAdminPortal),
	)

	return &LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User: SessionUser{
			ID:              u.ID,
			Email:           u.Email,
			Name:            u.Name,
			Roles:           roles,
			IsCCIUser:       u.IsCCIUser,
			IsCustomerUser:  u.IsCustomerUser,
			TenantID:        issued.Claims.TenantID,
			TenantSubdomain: issued.Claims.TenantSubdomain,
			IsAdminPortal:   issued.Claims.IsAdminPortal,
		},
	}, nil
}
