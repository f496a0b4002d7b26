package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"customerportal/internal/audit"
	"customerportal/internal/config"
	"customerportal/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端
type Client struct {
	client *asynq.Client
}

// RedisOpt 由配置生成 asynq 连接参数，连接模式与缓存使用的 Redis 一致
func RedisOpt(cfg config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	default:
		return asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

// EnqueueAuditRecord 投递审计落库任务
// 任务 ID 取审计记录 ID，重复投递视为成功
func (c *Client) EnqueueAuditRecord(ctx context.Context, e audit.Entry) error {
	task, err := tasks.NewAuditRecordTask(e)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		asynq.Queue(tasks.QueueAudit),
		asynq.Retention(time.Hour),
	}
	if e.ID != "" {
		opts = append(opts, asynq.TaskID(e.ID))
	}

	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}
