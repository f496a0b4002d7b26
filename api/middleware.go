package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/common"
	"customerportal/internal/logger"
	middlewarepkg "customerportal/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger 请求日志中间件
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if claims, ok := auth.GetClaims(c); ok {
			fields = append(fields, zap.String("user_id", claims.UserID))
		}
		logger.WithContext(ctx).Info("HTTP Request", fields...)
	}
}

// ErrorHandler 统一错误出口：把 c.Errors 中最后一个错误转换为响应
// exposeDetail 为 true 时附带内部错误链（仅开发环境）
func ErrorHandler(exposeDetail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, body := common.BuildErrorResponse(err, exposeDetail)
		if status >= http.StatusInternalServerError {
			logger.WithContext(c.Request.Context()).Error("请求处理失败",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		c.JSON(status, body)
	}
}

// Recovery 捕获 panic 并返回 500，仅开发环境输出堆栈
func Recovery(exposeDetail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			logger.WithContext(c.Request.Context()).Error("请求处理 panic",
				zap.Any("panic", r),
				zap.String("path", c.Request.URL.Path),
				zap.ByteString("stack", stack),
			)
			body := common.ErrorResponse{
				Success: false,
				Code:    common.CodeInternalError,
				Message: common.GetErrorMessage(common.CodeInternalError),
			}
			if exposeDetail {
				body.Detail = fmt.Sprintf("%v\n%s", r, stack)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}

// CORS 跨域中间件
// 允许的来源、头和方法在启动时从 CORS_ALLOW_* 环境变量读取一次；未配置来源时允许任意来源
func CORS() gin.HandlerFunc {
	origins := getEnvList("CORS_ALLOW_ORIGINS")
	headers := strings.Join(defaultIfEmpty(getEnvList("CORS_ALLOW_HEADERS"), []string{
		"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"Accept", "Origin", "Cache-Control", "X-Requested-With", middlewarepkg.HeaderRequestID,
	}), ", ")
	methods := strings.Join(defaultIfEmpty(getEnvList("CORS_ALLOW_METHODS"), []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}), ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case len(origins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			// 携带凭据时只能回显具体来源
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Expose-Headers", middlewarepkg.HeaderRequestID)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
