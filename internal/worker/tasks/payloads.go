package tasks

import (
	"encoding/json"
	"fmt"

	"customerportal/internal/audit"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeAuditRecord = "audit:record"
)

// QueueAudit 审计任务队列名
const QueueAudit = "audit"

// NewAuditRecordTask 构建审计落库任务，载荷为审计记录本身
func NewAuditRecordTask(e audit.Entry) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypeAuditRecord, payload), nil
}

// ParseAuditRecord 解析审计任务载荷
func ParseAuditRecord(t *asynq.Task) (audit.Entry, error) {
	var e audit.Entry
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return e, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return e, nil
}
