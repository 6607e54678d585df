// Package ratelimit 基于 Redis 的按用户计数限流，计数在进程重启和多实例间共享
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimitExceeded 超出窗口内允许的次数
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Decision 一次限流判定
type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int
	ResetIn   time.Duration
	Remaining int
}

// Limiter 固定窗口计数器：key = prefix:userID，INCR 后首次设置过期
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter 创建限流器，limit <= 0 时不限流
func NewLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow 计数一次并判定是否放行
func (l *Limiter) Allow(ctx context.Context, userID string) (*Decision, error) {
	if l.limit <= 0 || l.client == nil {
		return &Decision{Allowed: true, Limit: l.limit}, nil
	}

	key := l.key(userID)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit counter: %w", err)
	}

	count := incr.Val()
	resetIn := ttl.Val()
	// 新建的 key（或丢失过期时间的 key）补设窗口
	if resetIn < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
		resetIn = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{
		Allowed:   count <= int64(l.limit),
		Count:     count,
		Limit:     l.limit,
		ResetIn:   resetIn,
		Remaining: remaining,
	}, nil
}

// Check 超限时返回 ErrLimitExceeded
func (l *Limiter) Check(ctx context.Context, userID string) error {
	d, err := l.Allow(ctx, userID)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %d requests in %s, retry in %s", ErrLimitExceeded, d.Limit, l.window, d.ResetIn.Round(time.Second))
	}
	return nil
}

func (l *Limiter) key(userID string) string {
	return fmt.Sprintf("%s:%s", l.prefix, userID)
}
