package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Log 审计日志表
type Log struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	EventType  string            `gorm:"size:64;index;not null" json:"eventType"`
	UserID     string            `gorm:"size:36;index" json:"userId,omitempty"`
	Email      string            `gorm:"size:256" json:"email,omitempty"`
	IsCCIUser  bool              `gorm:"not null" json:"isCCIUser"`
	TenantID   *int64            `gorm:"index" json:"tenantId,omitempty"`
	Method     string            `gorm:"size:10;not null" json:"method"`
	Path       string            `gorm:"size:512;not null" json:"path"`
	StatusCode int               `gorm:"not null" json:"statusCode"`
	DurationMs int64             `gorm:"not null" json:"durationMs"`
	ClientIP   string            `gorm:"size:64" json:"clientIp,omitempty"`
	UserAgent  string            `gorm:"size:512" json:"userAgent,omitempty"`
	RequestID  string            `gorm:"size:64" json:"requestId,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt"`
}

// TableName 指定表名
func (Log) TableName() string {
	return "audit_logs"
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&Log{}}
}

// Entry 一次请求的审计信息，同时作为异步任务载荷
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  EventType      `json:"event_type"`
	UserID     string         `json:"user_id,omitempty"`
	Email      string         `json:"email,omitempty"`
	IsCCIUser  bool           `json:"is_cci_user"`
	TenantID   int64          `json:"tenant_id,omitempty"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	StatusCode int            `json:"status_code"`
	DurationMs int64          `json:"duration_ms"`
	ClientIP   string         `json:"client_ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToLog 转换为持久化模型
func (e Entry) ToLog() *Log {
	l := &Log{
		ID:         e.ID,
		EventType:  string(e.EventType),
		UserID:     e.UserID,
		Email:      e.Email,
		IsCCIUser:  e.IsCCIUser,
		Method:     e.Method,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		DurationMs: e.DurationMs,
		ClientIP:   e.ClientIP,
		UserAgent:  e.UserAgent,
		RequestID:  e.RequestID,
		CreatedAt:  e.Timestamp,
	}
	if e.TenantID > 0 {
		id := e.TenantID
		l.TenantID = &id
	}
	if len(e.Metadata) > 0 {
		l.Metadata = datatypes.JSONMap(e.Metadata)
	}
	return l
}
