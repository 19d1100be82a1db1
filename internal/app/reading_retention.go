package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// readingPurger 按时间删除历史读数
type readingPurger interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReadingRetention 定期清理超过保留期的历史读数
type ReadingRetention struct {
	repo          readingPurger
	retention     time.Duration
	logger        *zap.Logger
	checkInterval time.Duration
	now           func() time.Time

	statsCleaned int64
}

// NewReadingRetention 创建清理器
func NewReadingRetention(repo readingPurger, retention time.Duration, logger *zap.Logger) *ReadingRetention {
	return &ReadingRetention{
		repo:          repo,
		retention:     retention,
		logger:        logger,
		checkInterval: time.Hour,
		now:           time.Now,
	}
}

// Start 运行直到 ctx 取消
func (c *ReadingRetention) Start(ctx context.Context) {
	c.logger.Info("reading retention started",
		zap.Duration("retention", c.retention),
		zap.Duration("check_interval", c.checkInterval))

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	c.clean(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("reading retention stopped", zap.Int64("total_cleaned", c.statsCleaned))
			return
		case <-ticker.C:
			c.clean(ctx)
		}
	}
}

func (c *ReadingRetention) clean(ctx context.Context) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("purge old readings failed", zap.Error(err))
		return
	}
	if n > 0 {
		c.statsCleaned += n
		c.logger.Info("purged old readings",
			zap.Int64("cleaned", n),
			zap.Time("cutoff", cutoff),
			zap.Int64("total_cleaned", c.statsCleaned))
	}
}

// Stats 获取统计信息
func (c *ReadingRetention) Stats() map[string]any {
	return map[string]any{
		"total_cleaned": c.statsCleaned,
	}
}
