package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/sds011-server/internal/health"
	"github.com/taoyao-code/sds011-server/internal/sensor"
	"github.com/taoyao-code/sds011-server/internal/storage/gormrepo"
)

// NewHealthAggregator 创建健康检查聚合器，初始只含传感器检查
func NewHealthAggregator(client *sensor.Client, staleAfter time.Duration) *health.Aggregator {
	return health.NewAggregator(health.NewSensorChecker(client, staleAfter))
}

// AddDatabaseChecker 添加数据库检查器
func AddDatabaseChecker(aggregator *health.Aggregator, pool *pgxpool.Pool, staleAfter time.Duration) {
	if pool != nil {
		aggregator.AddChecker(health.NewDatabaseChecker(pool, staleAfter))
	}
}

// AddCommandLogChecker 添加命令审计库检查器
func AddCommandLogChecker(aggregator *health.Aggregator, repo *gormrepo.CommandLogRepo) {
	if repo != nil {
		aggregator.AddChecker(health.NewPingChecker("command_log", repo.Ping))
	}
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
