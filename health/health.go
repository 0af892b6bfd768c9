// Package health 提供服务存活与就绪检查能力。
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/rangesum/cache"
)

// Checker 定义健康检查函数原型。
type Checker func() error

// RedisChecker 返回 Redis 健康检查函数。
func RedisChecker(client redis.UniversalClient) Checker {
	return func() error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// CacheChecker 返回本地缓存健康检查函数。
// 通过一次探活键的写读来确认缓存可用。
func CacheChecker(c cache.Cache) Checker {
	return func() error {
		if c == nil {
			return errors.New("cache is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		const probeKey = "health:probe"
		if err := c.Set(ctx, probeKey, "ok", time.Minute); err != nil {
			return err
		}
		var value string
		return c.Get(ctx, probeKey, &value)
	}
}

// HTTPChecker 返回 HTTP 依赖健康检查函数。
func HTTPChecker(url string, timeout time.Duration) Checker {
	return func() error {
		if url == "" {
			return errors.New("health check url is empty")
		}
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("http health check status: %d", resp.StatusCode)
		}
		return nil
	}
}
