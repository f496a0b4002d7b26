package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"customerportal/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SubdomainCache 子域名到活跃租户的缓存，只缓存命中结果
type SubdomainCache interface {
	Get(ctx context.Context, subdomain string) (*Customer, bool)
	Set(ctx context.Context, subdomain string, c *Customer)
	Invalidate(ctx context.Context, subdomain string)
}

type cacheEntry struct {
	value     Customer
	expiresAt time.Time
}

type inMemorySubdomainCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewInMemorySubdomainCache 创建进程内缓存（单实例部署或未启用 Redis 时使用）
func NewInMemorySubdomainCache(ttl time.Duration) SubdomainCache {
	return &inMemorySubdomainCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *inMemorySubdomainCache) Get(_ context.Context, subdomain string) (*Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[subdomain]
	if !found || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	v := entry.value
	return &v, true
}

func (c *inMemorySubdomainCache) Set(_ context.Context, subdomain string, cust *Customer) {
	if cust == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[subdomain] = cacheEntry{
		value:     *cust,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *inMemorySubdomainCache) Invalidate(_ context.Context, subdomain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, subdomain)
}

const redisSubdomainKeyPrefix = "portal:tenant:subdomain:"

// RedisSubdomainCache 多实例部署共享的子域名缓存
// Redis 故障时按未命中处理，解析回落到数据库
type RedisSubdomainCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSubdomainCache 创建 Redis 子域名缓存
func NewRedisSubdomainCache(client redis.UniversalClient, ttl time.Duration) *RedisSubdomainCache {
	return &RedisSubdomainCache{client: client, ttl: ttl}
}

func (c *RedisSubdomainCache) Get(ctx context.Context, subdomain string) (*Customer, bool) {
	raw, err := c.client.Get(ctx, redisSubdomainKeyPrefix+subdomain).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithContext(ctx).Warn("读取子域名缓存失败", zap.String("subdomain", subdomain), zap.Error(err))
		}
		return nil, false
	}
	var cust Customer
	if err := json.Unmarshal(raw, &cust); err != nil {
		return nil, false
	}
	return &cust, true
}

func (c *RedisSubdomainCache) Set(ctx context.Context, subdomain string, cust *Customer) {
	if cust == nil {
		return
	}
	raw, err := json.Marshal(cust)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisSubdomainKeyPrefix+subdomain, raw, c.ttl).Err(); err != nil {
		logger.WithContext(ctx).Warn("写入子域名缓存失败", zap.String("subdomain", subdomain), zap.Error(err))
	}
}

func (c *RedisSubdomainCache) Invalidate(ctx context.Context, subdomain string) {
	if err := c.client.Del(ctx, redisSubdomainKeyPrefix+subdomain).Err(); err != nil {
		logger.WithContext(ctx).Warn("清除子域名缓存失败", zap.String("subdomain", subdomain), zap.Error(err))
	}
}
