package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// FrozenCache 账户冻结状态缓存（cache-aside）
//
// 每个准入/校验请求都要做冻结门禁检查，用 Redis 挡掉热点账户的重复查库。
// 冻结是单向迁移（false -> true），所以缓存只可能短暂地"把已冻结当成未冻结"，
// TTL 过期后收敛；冻结动作发生时主动写入 true，立即生效。
// Redis 异常一律按缓存未命中处理，门禁以数据库为准。
type FrozenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFrozenCache 创建冻结状态缓存；client 为 nil 时返回 nil，调用方按无缓存运行
func NewFrozenCache(client *redis.Client, ttl time.Duration) *FrozenCache {
	if client == nil {
		return nil
	}
	return &FrozenCache{client: client, ttl: ttl}
}

func frozenKey(accountID string) string {
	return fmt.Sprintf("account:frozen:%s", accountID)
}

// Get 返回 (是否冻结, 是否命中)
func (c *FrozenCache) Get(ctx context.Context, accountID string) (bool, bool) {
	if c == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, frozenKey(accountID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[FrozenCache] 读取失败: account=%s, err=%v", accountID, err)
		}
		return false, false
	}
	return val == "1", true
}

func (c *FrozenCache) Set(ctx context.Context, accountID string, frozen bool) {
	if c == nil {
		return
	}
	val := "0"
	if frozen {
		val = "1"
	}
	if err := c.client.Set(ctx, frozenKey(accountID), val, c.ttl).Err(); err != nil {
		log.Printf("[FrozenCache] 写入失败: account=%s, err=%v", accountID, err)
	}
}

func (c *FrozenCache) Invalidate(ctx context.Context, accountID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, frozenKey(accountID)).Err(); err != nil {
		log.Printf("[FrozenCache] 删除失败: account=%s, err=%v", accountID, err)
	}
}
