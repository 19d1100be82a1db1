package sink

import (
	"context"

	"github.com/taoyao-code/sds011-server/internal/sensor"
	"github.com/taoyao-code/sds011-server/internal/storage/gormrepo"
	"github.com/taoyao-code/sds011-server/internal/storage/models"
	"github.com/taoyao-code/sds011-server/internal/storage/pg"
	redisstorage "github.com/taoyao-code/sds011-server/internal/storage/redis"
)

// RedisReadings 读数发布到 Redis
type RedisReadings struct {
	Publisher *redisstorage.ReadingPublisher
}

func (RedisReadings) Name() string { return "redis" }

func (s RedisReadings) WriteReading(ctx context.Context, r Reading) error {
	return s.Publisher.Publish(ctx, redisstorage.ReadingPayload{
		SensorID: r.SensorID,
		PM25:     r.PM25,
		PM10:     r.PM10,
		At:       r.At,
	})
}

// PostgresReadings 读数写入 sensor_readings
type PostgresReadings struct {
	Repo *pg.ReadingRepo
}

func (PostgresReadings) Name() string { return "postgres" }

func (s PostgresReadings) WriteReading(ctx context.Context, r Reading) error {
	_, err := s.Repo.Insert(ctx, r.SensorID, r.PM25, r.PM10, r.At)
	return err
}

// CommandLog 命令审计写入 sensor_command_log
type CommandLog struct {
	Repo *gormrepo.CommandLogRepo
}

func (CommandLog) Name() string { return "command_log" }

func (s CommandLog) WriteCommand(ctx context.Context, sensorID string, rec sensor.CommandRecord) error {
	return s.Repo.Record(ctx, &models.CommandLog{
		CommandID:  rec.ID,
		SensorID:   sensorID,
		Name:       rec.Name,
		Result:     rec.Result,
		Attempts:   rec.Attempts,
		DurationMs: rec.Duration.Milliseconds(),
		EnqueuedAt: rec.EnqueuedAt,
	})
}
