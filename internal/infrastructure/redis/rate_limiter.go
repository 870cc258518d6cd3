package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter は固定ウィンドウ方式のリクエスト制限
type RateLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, period: period}
}

// Allow は key のリクエスト数が上限以内なら true を返す
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := "rl:" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, l.period)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("レート制限の確認に失敗: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
