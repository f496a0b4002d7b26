package common

import (
	"errors"
	"fmt"
)

// ============================================================================
// 通用响应类型
// ============================================================================

// ErrorResponse 统一错误响应格式，message 字段对客户端保持稳定
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // 仅开发环境输出
}

// MessageResponse 仅携带提示信息的成功响应
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// 业务状态码定义
// ============================================================================

const (
	CodeSuccess = 0

	// 通用错误码 (1000-1999)
	CodeInvalidRequest     = 1000 // 请求参数错误
	CodeUnauthorized       = 1001 // 未认证
	CodeForbidden          = 1002 // 禁止访问
	CodeNotFound           = 1003 // 资源不存在
	CodeConflict           = 1004 // 资源冲突（唯一约束）
	CodeInternalError      = 1005 // 内部错误
	CodeServiceUnavailable = 1006 // 服务不可用
	CodeNotImplemented     = 1007 // 功能未配置
	CodeInvalidOperation   = 1008 // 业务规则不允许
	CodeTooManyRequests    = 1009 // 请求过于频繁

	// 租户 / 账号 (2000-2099)
	CodeTenantNotFound     = 2000 // 租户不存在
	CodeTenantRequired     = 2001 // 请求未解析出租户
	CodeUserNotFound       = 2010 // 用户不存在
	CodeInvalidCredentials = 2012 // 凭证无效
	CodeNotTenantMember    = 2013 // 用户不属于当前租户
	CodeRoleNotFound       = 2020 // 角色不存在

	// 报表 / BI (3000-3099)
	CodeEmbedNotConfigured = 3001 // BI 集成未配置
	CodeEmbedFailed        = 3002 // BI 服务调用失败
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[int]string{
	CodeSuccess:            "ok",
	CodeInvalidRequest:     "invalid request",
	CodeUnauthorized:       "authentication required",
	CodeForbidden:          "access denied",
	CodeNotFound:           "resource not found",
	CodeConflict:           "resource already exists",
	CodeInternalError:      "an error occurred while processing your request",
	CodeServiceUnavailable: "service unavailable",
	CodeNotImplemented:     "not implemented",
	CodeInvalidOperation:   "invalid operation",
	CodeTooManyRequests:    "too many requests, please retry later",

	CodeTenantNotFound:     "tenant not found",
	CodeTenantRequired:     "tenant context is not set",
	CodeUserNotFound:       "user not found",
	CodeInvalidCredentials: "invalid email or password",
	CodeNotTenantMember:    "user not authorized for this customer portal",
	CodeRoleNotFound:       "role not found",

	CodeEmbedNotConfigured: "report embedding is not configured",
	CodeEmbedFailed:        "report service request failed",
}

// GetErrorMessage 获取错误码对应的消息
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// ============================================================================
// 业务错误类型
// ============================================================================

// BusinessError 业务错误，领域服务只返回此类型，由边界中间件统一映射 HTTP 状态码
type BusinessError struct {
	Code    int    // 错误码
	Message string // 对外错误信息
	Err     error  // 内部原因，不对外输出
}

// Error 实现 error 接口
func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *BusinessError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is(err, common.ErrNotFound) 这类判断
func (e *BusinessError) Is(target error) bool {
	var t *BusinessError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{Code: code, Message: message}
}

// Wrap 携带内部原因
func (e *BusinessError) Wrap(err error) *BusinessError {
	return &BusinessError{Code: e.Code, Message: e.Message, Err: err}
}

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrNotFound         = NewBusinessError(CodeNotFound, "")
	ErrUnauthorized     = NewBusinessError(CodeUnauthorized, "")
	ErrForbidden        = NewBusinessError(CodeForbidden, "")
	ErrValidation       = NewBusinessError(CodeInvalidRequest, "")
	ErrConflict         = NewBusinessError(CodeConflict, "")
	ErrInvalidOperation = NewBusinessError(CodeInvalidOperation, "")
	ErrTenantNotFound   = NewBusinessError(CodeTenantNotFound, "")
	ErrTenantRequired   = NewBusinessError(CodeTenantRequired, "")
	ErrNotImplemented   = NewBusinessError(CodeNotImplemented, "")
	ErrTooManyRequests  = NewBusinessError(CodeTooManyRequests, "")
)

// NotFound 资源不存在（跨租户访问同样返回此错误）
func NotFound(format string, args ...any) *BusinessError {
	return NewBusinessError(CodeNotFound, fmt.Sprintf(format, args...))
}

// Validation 输入校验失败
func Validation(format string, args ...any) *BusinessError {
	return NewBusinessError(CodeInvalidRequest, fmt.Sprintf(format, args...))
}

// InvalidOperation 业务规则冲突
func InvalidOperation(format string, args ...any) *BusinessError {
	return NewBusinessError(CodeInvalidOperation, fmt.Sprintf(format, args...))
}

// Unauthorized 认证失败
func Unauthorized(message string) *BusinessError {
	return NewBusinessError(CodeUnauthorized, message)
}

// Forbidden 授权失败
func Forbidden(message string) *BusinessError {
	return NewBusinessError(CodeForbidden, message)
}

// CodeOf 提取错误码，非业务错误视为内部错误
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeInternalError
}

// NotImplemented 功能未配置
func NotImplemented(code int, message string) *BusinessError {
	return NewBusinessError(code, message)
}

// TenantRequired 请求未解析出租户时访问租户数据
func TenantRequired() *BusinessError {
	return NewBusinessError(CodeTenantRequired, "")
}
