package infra

import (
	"context"
	"errors"
	"time"

	"customerportal/internal/logger"
	"customerportal/internal/metrics"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// sqlLogger 把 gorm 日志转到 zap，并带上请求与租户字段
type sqlLogger struct {
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

func newSQLLogger(level gormLogger.LogLevel, slowThreshold time.Duration) *sqlLogger {
	return &sqlLogger{level: level, slowThreshold: slowThreshold}
}

func (l *sqlLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *sqlLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		logger.WithContext(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *sqlLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		logger.WithContext(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *sqlLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		logger.WithContext(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace 记录单条 SQL；记录不存在不算错误
func (l *sqlLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	switch {
	case failed:
		metrics.DBQueriesTotal.WithLabelValues("error").Inc()
	case slow:
		metrics.DBQueriesTotal.WithLabelValues("slow").Inc()
	default:
		metrics.DBQueriesTotal.WithLabelValues("ok").Inc()
	}

	if l.level <= gormLogger.Silent {
		return
	}
	if !failed && !slow && l.level < gormLogger.Info {
		return
	}

	sql, rows := fc()
	log := logger.WithContext(ctx).With(
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	)
	switch {
	case failed:
		log.Error("SQL 执行错误", zap.Error(err))
	case slow:
		log.Warn("SQL 慢查询", zap.Duration("threshold", l.slowThreshold))
	default:
		log.Debug("SQL 执行")
	}
}
