package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
	"github.com/taoyao-code/sds011-server/internal/health"
	redisstorage "github.com/taoyao-code/sds011-server/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewReadingPublisher 创建读数发布器
func NewReadingPublisher(client *redisstorage.Client, cfg cfgpkg.RedisConfig) *redisstorage.ReadingPublisher {
	return redisstorage.NewReadingPublisher(client, cfg.Channel, cfg.LatestKey, cfg.LatestTTL)
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client, cfg cfgpkg.RedisConfig) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient, cfg.LatestKey))
	}
}
