package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"omnitip-relay/internal/config"
)

const keyPrefix = "omnitip:msg:"

// RedisDeduplicator 基于 SETNX 认领消息ID，防止 webhook 重投产生重复记录
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(cfg *config.RedisConfig) *RedisDeduplicator {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := time.Duration(cfg.DedupTTL) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (d *RedisDeduplicator) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Claim 首次看到 messageID 时返回 true
func (d *RedisDeduplicator) Claim(ctx context.Context, messageID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+messageID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim message %s: %w", messageID, err)
	}
	return ok, nil
}

// Release 删除认领，用于处理失败后允许重投
func (d *RedisDeduplicator) Release(ctx context.Context, messageID string) error {
	if err := d.client.Del(ctx, keyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("failed to release message %s: %w", messageID, err)
	}
	return nil
}

func (d *RedisDeduplicator) Close() error {
	return d.client.Close()
}
