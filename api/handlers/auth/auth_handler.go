package auth

import (
	"customerportal/api/handlers/common"
	"customerportal/internal/audit"
	authpkg "customerportal/internal/auth"
	appcommon "customerportal/internal/common"
	userSvc "customerportal/internal/user"

	"github.com/gin-gonic/gin"
)

// Handler 登录与密码相关 API
type Handler struct {
	login *userSvc.LoginService
	users *userSvc.Service
}

// NewHandler 构造函数
func NewHandler(login *userSvc.LoginService, users *userSvc.Service) *Handler {
	return &Handler{login: login, users: users}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

// Login 用户登录
// @Summary 用户登录
// @Description 按请求主机解析租户并签发会话令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录凭据"
// @Success 200 {object} userSvc.LoginResult
// @Failure 401 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !common.BindJSON(c, &req) {
		return
	}
	audit.SetMetadata(c, "email", userSvc.NormalizeEmail(req.Email))

	result, err := h.login.Login(c.Request.Context(), req.Email, req.Password, c.Request.Host)
	if err != nil {
		appcommon.Fail(c, err)
		return
	}
	audit.SetMetadata(c, "user_id", result.User.ID)
	appcommon.ResponseOK(c, result)
}

// Me 当前会话信息
// @Summary 当前用户
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} authpkg.TokenClaims
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	claims, ok := authpkg.GetClaims(c)
	if !ok {
		appcommon.Fail(c, appcommon.ErrUnauthorized)
		return
	}
	appcommon.ResponseOK(c, claims)
}

// ChangePassword 修改自己的密码
// @Summary 修改密码
// @Tags Auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "新旧密码"
// @Success 200 {object} appcommon.MessageResponse
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/auth/change-password [post]
func (h *Handler) ChangePassword(c *gin.Context) {
	claims, ok := authpkg.GetClaims(c)
	if !ok {
		appcommon.Fail(c, appcommon.ErrUnauthorized)
		return
	}
	var req ChangePasswordRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "password changed")
}

// ResetPassword 管理员重置用户密码
// @Summary 重置密码
// @Tags Auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param userId path string true "用户 ID"
// @Param request body ResetPasswordRequest true "新密码"
// @Success 200 {object} appcommon.MessageResponse
// @Failure 400 {object} appcommon.ErrorResponse
// @Failure 404 {object} appcommon.ErrorResponse
// @Router /api/auth/reset-password/{userId} [post]
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !common.BindJSON(c, &req) {
		return
	}
	userID := c.Param("userId")
	audit.SetResource(c, "users", userID)
	if err := h.users.ResetPassword(c.Request.Context(), userID, req.NewPassword); err != nil {
		appcommon.Fail(c, err)
		return
	}
	appcommon.ResponseMessage(c, "password reset")
}
