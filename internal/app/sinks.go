package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
	"github.com/taoyao-code/sds011-server/internal/metrics"
	"github.com/taoyao-code/sds011-server/internal/sink"
	"github.com/taoyao-code/sds011-server/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/sds011-server/internal/storage/pg"
	redisstorage "github.com/taoyao-code/sds011-server/internal/storage/redis"
)

// NewDispatcher 按已启用的存储组装 sink 分发器
func NewDispatcher(
	cfg *cfgpkg.Config,
	rdb *redisstorage.Client,
	pool *pgxpool.Pool,
	cmdLog *gormrepo.CommandLogRepo,
	appm *metrics.AppMetrics,
	log *zap.Logger,
) *sink.Dispatcher {
	d := sink.NewDispatcher(cfg.Sensor.ID, log, appm)
	if rdb != nil {
		d.AddReadingSink(sink.RedisReadings{Publisher: NewReadingPublisher(rdb, cfg.Redis)})
	}
	if pool != nil {
		d.AddReadingSink(sink.PostgresReadings{Repo: &pgstorage.ReadingRepo{Pool: pool}})
	}
	if cmdLog != nil {
		d.AddCommandSink(sink.CommandLog{Repo: cmdLog})
	}
	return d
}
