package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reading sensor_readings 表的一行
type Reading struct {
	ID         int64     `json:"id"`
	SensorID   string    `json:"sensorId"`
	PM25       float64   `json:"pm2p5"`
	PM10       float64   `json:"pm10"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ReadingRepo 读数历史
type ReadingRepo struct {
	Pool *pgxpool.Pool
}

// Insert 写入一条读数，返回主键
func (r *ReadingRepo) Insert(ctx context.Context, sensorID string, pm25, pm10 float64, at time.Time) (int64, error) {
	const q = `INSERT INTO sensor_readings (sensor_id, pm2p5, pm10, received_at)
               VALUES ($1, $2, $3, $4)
               RETURNING id`
	var id int64
	err := r.Pool.QueryRow(ctx, q, sensorID, pm25, pm10, at).Scan(&id)
	return id, err
}

// Recent 按时间倒序返回最近 limit 条读数；sensorID 为空时不过滤
func (r *ReadingRepo) Recent(ctx context.Context, sensorID string, limit int) ([]Reading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const q = `SELECT id, sensor_id, pm2p5, pm10, received_at
               FROM sensor_readings
               WHERE ($1::text = '' OR sensor_id = $1::text)
               ORDER BY received_at DESC, id DESC
               LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, sensorID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Reading, error) {
		var rd Reading
		err := row.Scan(&rd.ID, &rd.SensorID, &rd.PM25, &rd.PM10, &rd.ReceivedAt)
		return rd, err
	})
}

// DeleteBefore 清理早于 before 的读数，返回删除行数
func (r *ReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM sensor_readings WHERE received_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
