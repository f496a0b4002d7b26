package auth

import (
	"context"

	"customerportal/internal/common"
	"customerportal/internal/logger"
	"customerportal/internal/metrics"
	"customerportal/internal/tenant"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Policy 授权策略
type Policy string

const (
	// PolicyTenantMember 基础多租户判定
	PolicyTenantMember Policy = "TenantMember"
	// PolicyCCIUser 运营人员
	PolicyCCIUser Policy = "CCIUser"
	// PolicyCustomerAdmin 租户管理员：CustomerAdmin（或 Admin）角色且通过基础判定
	PolicyCustomerAdmin Policy = "CustomerAdmin"
)

// 判定原因
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonOperator        = "operator"
	ReasonTokenTenant     = "token_tenant"
	ReasonMembership      = "membership"
	ReasonMissingRole     = "missing_role"
	ReasonDenied          = "denied"
)

// MembershipChecker 成员关系查询
type MembershipChecker interface {
	IsMember(ctx context.Context, customerID int64, userID string) (bool, error)
}

// Decision 授权判定结果
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorizer 按固定顺序执行授权判定
//
//	未认证 -> 拒绝
//	运营人员 -> 通过
//	令牌租户等于当前解析租户 -> 通过
//	(UserID, 当前租户) 存在成员关系 -> 通过
//	否则拒绝
type Authorizer struct {
	members MembershipChecker
	tracer  trace.Tracer
}

// NewAuthorizer 创建授权器
func NewAuthorizer(members MembershipChecker) *Authorizer {
	return &Authorizer{
		members: members,
		tracer:  otel.Tracer("customerportal/auth"),
	}
}

// Authorize 执行基础多租户判定，租户信息取自 ctx 中的请求租户上下文
func (a *Authorizer) Authorize(ctx context.Context, claims *TokenClaims) (Decision, error) {
	ctx, span := a.tracer.Start(ctx, "auth.Authorize")
	defer span.End()

	d, err := a.authorize(ctx, claims)
	span.SetAttributes(
		attribute.Bool("authz.allowed", d.Allowed),
		attribute.String("authz.reason", d.Reason),
	)
	if err != nil {
		span.RecordError(err)
	}
	return d, err
}

func (a *Authorizer) authorize(ctx context.Context, claims *TokenClaims) (Decision, error) {
	if claims == nil || claims.UserID == "" {
		return Decision{Reason: ReasonUnauthenticated}, nil
	}
	if claims.IsCCIUser {
		return Decision{Allowed: true, Reason: ReasonOperator}, nil
	}

	tc, _ := tenant.FromContext(ctx)
	if !tc.HasTenant() {
		return Decision{Reason: ReasonDenied}, nil
	}
	if claims.TenantID == tc.TenantID {
		return Decision{Allowed: true, Reason: ReasonTokenTenant}, nil
	}

	ok, err := a.members.IsMember(ctx, tc.TenantID, claims.UserID)
	if err != nil {
		return Decision{Reason: ReasonDenied}, err
	}
	if ok {
		return Decision{Allowed: true, Reason: ReasonMembership}, nil
	}
	return Decision{Reason: ReasonDenied}, nil
}

// Check 执行策略判定，拒绝时返回 Unauthorized 或 Forbidden
func (a *Authorizer) Check(ctx context.Context, policy Policy, claims *TokenClaims) error {
	var (
		d   Decision
		err error
	)
	switch policy {
	case PolicyCCIUser:
		switch {
		case claims == nil || claims.UserID == "":
			d = Decision{Reason: ReasonUnauthenticated}
		case claims.IsCCIUser:
			d = Decision{Allowed: true, Reason: ReasonOperator}
		default:
			d = Decision{Reason: ReasonDenied}
		}
	case PolicyCustomerAdmin:
		if claims != nil && claims.UserID != "" && !claims.HasAnyRole(RoleCustomerAdmin) {
			d = Decision{Reason: ReasonMissingRole}
			break
		}
		d, err = a.Authorize(ctx, claims)
	default:
		d, err = a.Authorize(ctx, claims)
	}

	if err != nil {
		metrics.RecordAuthorization(string(policy), "error")
		return err
	}
	metrics.RecordAuthorization(string(policy), d.Reason)

	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonUnauthenticated {
		return common.ErrUnauthorized
	}

	fields := []zap.Field{zap.String("policy", string(policy)), zap.String("reason", d.Reason)}
	if claims != nil {
		fields = append(fields, zap.String("user_id", claims.UserID))
	}
	if tc, ok := tenant.FromContext(ctx); ok {
		fields = append(fields, zap.Int64("tenant_id", tc.TenantID))
	}
	logger.WithContext(ctx).Warn("授权被拒绝", fields...)
	return common.Forbidden("access denied")
}

// RequirePolicy 策略检查中间件
func RequirePolicy(a *Authorizer, policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := GetClaims(c)
		if err := a.Check(c.Request.Context(), policy, claims); err != nil {
			common.Fail(c, err)
			return
		}
		c.Next()
	}
}
