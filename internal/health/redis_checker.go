package health

import (
	"context"
	"fmt"
	"time"

	redisstorage "github.com/taoyao-code/sds011-server/internal/storage/redis"
)

// RedisChecker 读数发布通道：连通性、连接池超时与最新读数缓存是否仍在
type RedisChecker struct {
	client    *redisstorage.Client
	latestKey string
}

// NewRedisChecker latestKey 为空时不检查缓存
func NewRedisChecker(client *redisstorage.Client, latestKey string) *RedisChecker {
	return &RedisChecker{client: client, latestKey: latestKey}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err), Latency: time.Since(start)}
	}

	stats := c.client.Stats()
	details := map[string]any{
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"timeouts":    stats.Timeouts,
	}
	status, message := StatusHealthy, "ok"
	if stats.Timeouts > 0 {
		status, message = StatusDegraded, "connection pool timeouts observed"
	}

	if c.latestKey != "" {
		// -2 键不存在，-1 无过期时间
		ttl, err := c.client.TTL(ctx, c.latestKey).Result()
		switch {
		case err != nil:
			details["latest_error"] = err.Error()
		case ttl == -2:
			details["latest_cached"] = false
			if status == StatusHealthy {
				message = "no reading cached yet"
			}
		default:
			details["latest_cached"] = true
			details["latest_ttl"] = ttl.String()
		}
	}

	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
