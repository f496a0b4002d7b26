// Package common 处理器共用的请求解析辅助函数
package common

import (
	"strconv"
	"strings"

	"customerportal/internal/auth"
	appcommon "customerportal/internal/common"
	"customerportal/internal/user"

	"github.com/gin-gonic/gin"
)

// BindJSON 解析请求体并按 validate 标签校验，失败时写入错误并返回 false
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		appcommon.Fail(c, appcommon.ValidationFrom(err))
		return false
	}
	if err := appcommon.ValidateStruct(dst); err != nil {
		appcommon.Fail(c, err)
		return false
	}
	return true
}

// ParamID 解析路径中的正整数 ID，非法 ID 按资源不存在处理
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		appcommon.Fail(c, appcommon.NotFound("%s %q not found", strings.TrimSuffix(name, "Id"), c.Param(name)))
		return 0, false
	}
	return id, true
}

// QueryBool 解析可选布尔查询参数，缺省返回 nil
func QueryBool(c *gin.Context, name string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		appcommon.Fail(c, appcommon.Validation("query parameter %s must be a boolean", name))
		return nil, false
	}
	return &v, true
}

// Caller 当前调用者
func Caller(c *gin.Context) user.Caller {
	claims, _ := auth.GetClaims(c)
	return user.CallerFromClaims(claims)
}
