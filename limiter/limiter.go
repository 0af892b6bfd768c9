// Package limiter 提供了本地令牌桶与 Redis 滑动窗口两种限流器实现。
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9" // 导入Redis客户端库。
	"golang.org/x/time/rate"       // 导入基于令牌桶算法的限流库。
)

// Limiter 接口定义了限流器的通用行为。
// 任何实现了此接口的类型都可以用作限流器。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error) // 检查是否允许请求通过。
}

// LocalLimiter 是一个基于令牌桶算法的本地限流器。
// 它适用于单个应用程序实例内的限流。
type LocalLimiter struct {
	limiter *rate.Limiter // 底层的令牌桶限流器实例。
}

// NewLocalLimiter 创建并返回一个新的 LocalLimiter 实例。
// r: 每秒生成的令牌数，代表允许的平均请求速率。
// b: 令牌桶的容量，代表允许的瞬时突发请求数。
func NewLocalLimiter(r rate.Limit, b int) *LocalLimiter {
	return &LocalLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

// Allow 检查一个请求是否被 LocalLimiter 允许通过。
// key 参数在本地限流器中未被使用，因为它是实例级的全局限流。
func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(), nil
}

// RedisLimiter 是一个基于 Redis 实现的分布式限流器。
// 它使用Redis的ZSet（有序集合）数据结构实现滑动窗口算法，支持在多个应用程序实例之间共享限流状态。
// 注意：它只用于 HTTP 边缘限流；聚合表的状态始终是进程本地的。
type RedisLimiter struct {
	client *redis.Client // Redis客户端实例。
	limit  int           // 在指定时间窗口内允许的最大请求数。
	window time.Duration // 时间窗口的长度。
}

// NewRedisLimiter 创建并返回一个新的 RedisLimiter 实例。
// client: 已连接的Redis客户端实例。
// limit: 时间窗口内允许的最大请求数。
// window: 时间窗口的持续时间。
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow 检查一个请求是否被 RedisLimiter 允许通过。
// 它实现了基于Redis的滑动窗口算法：
// 1. 移除时间窗口之外的旧请求记录。
// 2. 统计当前时间窗口内的请求数量。
// 3. 如果请求数量未超过限制，则记录当前请求并允许通过。
// key: 请求的唯一标识符，通常用作Redis键（例如客户端 IP）。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - l.window.Nanoseconds()
	redisKey := fmt.Sprintf("rate_limit:%s", key)

	pipe := l.client.TxPipeline()
	// 移除窗口之外的记录。
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart))
	// 统计窗口内的请求数。
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	if countCmd.Val() >= int64(l.limit) {
		return false, nil
	}

	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter record failed: %w", err)
	}

	return true, nil
}
