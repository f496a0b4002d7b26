package audit

import (
	"net/http"
	"strings"
)

// EventType 审计事件类型
type EventType string

// 认证相关事件
const (
	EventUserLogin       EventType = "user.login"
	EventUserLoginFailed EventType = "user.login.failed"
	EventPasswordChange  EventType = "user.password.change"
)

// 资源事件，格式为 <资源>.<动作>
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionView   = "view"
)

// 其他事件
const (
	EventReportEmbed EventType = "report.embed"
	EventAPIRequest  EventType = "api.request"
)

// resourcePrefixes 路径前缀 -> 资源名
var resourcePrefixes = []struct {
	prefix   string
	resource string
}{
	{"/api/customers", "customer"},
	{"/api/users", "user"},
	{"/api/roles", "role"},
	{"/api/workspaces", "workspace"},
	{"/api/shops", "shop"},
	{"/api/programs", "program"},
	{"/api/report-categories", "report_category"},
	{"/api/reports", "report"},
}

// InferEventType 根据请求路径、方法与状态码推断事件类型
func InferEventType(method, path string, statusCode int) EventType {
	switch {
	case strings.HasPrefix(path, "/api/auth/login"):
		if statusCode >= 200 && statusCode < 300 {
			return EventUserLogin
		}
		return EventUserLoginFailed
	case strings.HasPrefix(path, "/api/auth/change-password"),
		strings.HasPrefix(path, "/api/auth/reset-password"):
		return EventPasswordChange
	case strings.HasPrefix(path, "/api/reports/") && strings.HasSuffix(path, "/embed-config"):
		return EventReportEmbed
	}

	for _, rp := range resourcePrefixes {
		if !strings.HasPrefix(path, rp.prefix) {
			continue
		}
		switch method {
		case http.MethodPost:
			return EventType(rp.resource + "." + ActionCreate)
		case http.MethodPut, http.MethodPatch:
			return EventType(rp.resource + "." + ActionUpdate)
		case http.MethodDelete:
			return EventType(rp.resource + "." + ActionDelete)
		case http.MethodGet:
			return EventType(rp.resource + "." + ActionView)
		}
	}
	return EventAPIRequest
}
