package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HTTPStatus 业务错误码到 HTTP 状态码的唯一映射
func HTTPStatus(code int) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeUnauthorized, CodeInvalidCredentials, CodeNotTenantMember:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeTenantNotFound, CodeUserNotFound, CodeRoleNotFound:
		return http.StatusNotFound
	case CodeInvalidRequest, CodeConflict, CodeInvalidOperation, CodeTenantRequired:
		return http.StatusBadRequest
	case CodeNotImplemented, CodeEmbedNotConfigured:
		return http.StatusNotImplemented
	case CodeEmbedFailed:
		return http.StatusBadGateway
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fail 记录错误并中断处理链，由 ErrorHandler 中间件统一输出
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// BuildErrorResponse 将错误转换为响应体与状态码
// exposeDetail 为 true 时附带内部错误链（仅开发环境）
func BuildErrorResponse(err error, exposeDetail bool) (int, ErrorResponse) {
	code := CodeOf(err)
	resp := ErrorResponse{Success: false, Code: code}

	var be *BusinessError
	if errors.As(err, &be) && code != CodeInternalError {
		resp.Message = be.Message
	} else {
		resp.Message = GetErrorMessage(CodeInternalError)
	}

	if exposeDetail {
		resp.Detail = err.Error()
	}
	return HTTPStatus(code), resp
}

// ResponseCreated 返回创建成功响应（201）
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// ResponseOK 返回成功响应（200）
func ResponseOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// ResponseMessage 返回仅包含提示信息的成功响应
func ResponseMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// ResponseNoContent 返回无内容响应（204）
func ResponseNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HTTPStatusFor 直接由错误得到 HTTP 状态码
func HTTPStatusFor(err error) int {
	return HTTPStatus(CodeOf(err))
}
