package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"customerportal/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService 会话令牌签发与校验（HS256，服务端持有密钥）
// 令牌不可撤销，只依赖过期时间
type JWTService struct {
	secretKey []byte
	issuer    string
	audience  string
	lifetime  time.Duration
	now       func() time.Time
}

// NewJWTService 创建 JWT 服务
func NewJWTService(cfg config.AuthConfig) (*JWTService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret 未配置")
	}
	return &JWTService{
		secretKey: []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		lifetime:  cfg.TokenLifetime(),
		now:       time.Now,
	}, nil
}

// TokenClaims 会话令牌声明
// 客户令牌携带 TenantID + TenantSubdomain；管理门户令牌携带 IsAdminPortal
type TokenClaims struct {
	UserID          string   `json:"uid"`
	Email           string   `json:"email"`
	Name            string   `json:"name,omitempty"`
	Roles           []string `json:"roles"`
	IsCustomerUser  bool     `json:"is_customer_user"`
	IsCCIUser       bool     `json:"is_cci_user"`
	TenantID        int64    `json:"tenant_id,omitempty"`
	TenantSubdomain string   `json:"tenant_subdomain,omitempty"`
	IsAdminPortal   bool     `json:"is_admin_portal,omitempty"`
	jwt.RegisteredClaims
}

// HasTenant 令牌是否携带租户
func (c *TokenClaims) HasTenant() bool {
	return c != nil && c.TenantID > 0
}

// HasRole 是否拥有指定角色（大小写不敏感）
func (c *TokenClaims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole 是否拥有任一角色
func (c *TokenClaims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// IssueParams 签发令牌的输入
type IssueParams struct {
	UserID          string
	Email           string
	Name            string
	Roles           []string
	IsCustomerUser  bool
	IsCCIUser       bool
	TenantID        int64
	TenantSubdomain string
	IsAdminPortal   bool
}

// IssuedToken 签发结果
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	Claims    *TokenClaims
}

// Issue 签发会话令牌
func (s *JWTService) Issue(p IssueParams) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(s.lifetime)

	claims := &TokenClaims{
		UserID:         p.UserID,
		Email:          p.Email,
		Name:           p.Name,
		Roles:          p.Roles,
		IsCustomerUser: p.IsCustomerUser,
		IsCCIUser:      p.IsCCIUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	// 租户与管理门户互斥
	if p.TenantID > 0 {
		claims.TenantID = p.TenantID
		claims.TenantSubdomain = p.TenantSubdomain
	} else if p.IsAdminPortal {
		claims.IsAdminPortal = true
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("签名令牌失败: %w", err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt, Claims: claims}, nil
}

// Validate 校验签名、过期时间、签发者与受众
func (s *JWTService) Validate(tokenString string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("解析令牌失败: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("无效的令牌")
	}
	if claims.UserID == "" {
		return nil, errors.New("令牌缺少用户标识")
	}
	return claims, nil
}

// ExtractTokenFromBearer 从 Bearer 令牌中提取纯令牌字符串
func ExtractTokenFromBearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
