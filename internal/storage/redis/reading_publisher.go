package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadingPayload 发布到 Redis 的读数消息
type ReadingPayload struct {
	SensorID string    `json:"sensorId"`
	PM25     float64   `json:"pm2p5"`
	PM10     float64   `json:"pm10"`
	At       time.Time `json:"at"`
}

// ReadingPublisher 读数发布：PUBLISH 到频道，同时缓存最新一条
type ReadingPublisher struct {
	rdb       redis.Cmdable
	channel   string
	latestKey string
	ttl       time.Duration
}

// NewReadingPublisher 创建发布器；ttl<=0 表示最新读数不过期
func NewReadingPublisher(rdb redis.Cmdable, channel, latestKey string, ttl time.Duration) *ReadingPublisher {
	return &ReadingPublisher{rdb: rdb, channel: channel, latestKey: latestKey, ttl: ttl}
}

// Publish 发布一条读数
func (p *ReadingPublisher) Publish(ctx context.Context, r ReadingPayload) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, data)
		pipe.Set(ctx, p.latestKey, data, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}
	return nil
}

// Latest 读取缓存的最新读数；不存在时返回 nil
func (p *ReadingPublisher) Latest(ctx context.Context) (*ReadingPayload, error) {
	data, err := p.rdb.Get(ctx, p.latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r ReadingPayload
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode latest reading: %w", err)
	}
	return &r, nil
}
