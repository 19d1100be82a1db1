package transport

import (
	"golang.org/x/time/rate"
)

// RateLimiter 基于Token Bucket的下行写入限速器
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter 创建速率限流器
// ratePerSec: 每秒允许的写入次数（稳定速率）
// burst: 突发容量（桶的大小）
func NewRateLimiter(ratePerSec int, burst int) *RateLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow 检查是否允许写入（非阻塞）
func (l *RateLimiter) Allow() bool {
	return l.limiter.Allow()
}
