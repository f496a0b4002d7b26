package handlers

import (
	"context"
	"fmt"

	"customerportal/internal/audit"
	"customerportal/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AuditHandler 将队列中的审计记录写入数据库
type AuditHandler struct {
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewAuditHandler 创建审计任务处理器
func NewAuditHandler(recorder audit.Recorder, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{recorder: recorder, logger: logger}
}

// HandleAuditRecord 处理 audit:record 任务
func (h *AuditHandler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	e, err := tasks.ParseAuditRecord(t)
	if err != nil {
		// 载荷无法解析时重试没有意义
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := h.recorder.Record(ctx, e); err != nil {
		h.logger.Error("审计记录写入失败",
			zap.String("audit_id", e.ID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Debug("审计记录已写入", zap.String("audit_id", e.ID), zap.String("event", string(e.EventType)))
	return nil
}
