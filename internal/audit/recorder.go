package audit

import (
	"context"
	"errors"
	"time"

	"customerportal/internal/logger"
	"customerportal/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder 审计记录落地方式
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// DBRecorder 直接写入 audit_logs
type DBRecorder struct {
	db *gorm.DB
}

// NewDBRecorder 创建数据库记录器
func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

// Record 写入一条审计日志；重复 ID 视为已写入（任务重试幂等）
func (r *DBRecorder) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Create(e.ToLog()).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = nil
	}
	recordResult("db", err)
	return err
}

// Enqueuer 将审计记录投递到任务队列
type Enqueuer interface {
	EnqueueAuditRecord(ctx context.Context, e Entry) error
}

// QueueRecorder 通过任务队列异步落库，投递失败时回退到直接写库
type QueueRecorder struct {
	queue    Enqueuer
	fallback Recorder
}

// NewQueueRecorder 创建队列记录器
func NewQueueRecorder(queue Enqueuer, fallback Recorder) *QueueRecorder {
	return &QueueRecorder{queue: queue, fallback: fallback}
}

// Record 投递审计记录
func (r *QueueRecorder) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := r.queue.EnqueueAuditRecord(ctx, e)
	recordResult("queue", err)
	if err == nil || r.fallback == nil {
		return err
	}
	logger.WithContext(ctx).Warn("审计任务投递失败，改为直接写库", zap.Error(err))
	return r.fallback.Record(ctx, e)
}

func recordResult(sink string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.AuditRecordsTotal.WithLabelValues(sink, status).Inc()
}
