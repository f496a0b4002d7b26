package audit

import (
	"context"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/logger"
	"customerportal/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const metadataKey = "audit_metadata"

// Middleware 审计中间件：记录请求者、租户与结果
// 落库在请求结束后异步进行，不阻塞响应
func Middleware(recorder Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		e := BuildEntry(c, start)
		ctx := context.WithoutCancel(c.Request.Context())

		logger.WithContext(ctx).Info("审计",
			zap.String("event", string(e.EventType)),
			zap.String("user_id", e.UserID),
			zap.Bool("cci_user", e.IsCCIUser),
			zap.Int64("tenant_id", e.TenantID),
			zap.String("method", e.Method),
			zap.String("path", e.Path),
			zap.Int("status", e.StatusCode),
			zap.Int64("duration_ms", e.DurationMs),
		)

		if recorder == nil {
			return
		}
		go func() {
			if err := recorder.Record(ctx, e); err != nil {
				logger.WithContext(ctx).Error("审计记录写入失败", zap.Error(err))
			}
		}()
	}
}

// BuildEntry 从请求上下文构建审计记录
func BuildEntry(c *gin.Context, start time.Time) Entry {
	ctx := c.Request.Context()
	e := Entry{
		ID:         uuid.NewString(),
		Timestamp:  start.UTC(),
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		StatusCode: c.Writer.Status(),
		DurationMs: time.Since(start).Milliseconds(),
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		RequestID:  logger.GetRequestID(ctx),
	}
	e.EventType = InferEventType(e.Method, e.Path, e.StatusCode)

	if claims, ok := auth.GetClaims(c); ok {
		e.UserID = claims.UserID
		e.Email = claims.Email
		e.IsCCIUser = claims.IsCCIUser
	}
	if tc, ok := tenant.FromContext(ctx); ok && tc.HasTenant() {
		e.TenantID = tc.TenantID
	}

	metadata := map[string]any{}
	if len(c.Errors) > 0 {
		metadata["errors"] = c.Errors.Errors()
	}
	if v, ok := c.Get(metadataKey); ok {
		if m, ok := v.(map[string]any); ok {
			for k, val := range m {
				metadata[k] = val
			}
		}
	}
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return e
}

// SetMetadata 由 handler 补充审计元数据
func SetMetadata(c *gin.Context, key string, value any) {
	m, _ := c.Get(metadataKey)
	metadata, ok := m.(map[string]any)
	if !ok {
		metadata = map[string]any{}
	}
	metadata[key] = value
	c.Set(metadataKey, metadata)
}

// SetResource 记录被操作的资源
func SetResource(c *gin.Context, resourceType string, resourceID any) {
	SetMetadata(c, "resource_type", resourceType)
	SetMetadata(c, "resource_id", resourceID)
}
