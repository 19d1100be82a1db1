package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/metrics"
	"github.com/taoyao-code/sds011-server/internal/sensor"
)

// Reading 一条需要落地的读数
type Reading struct {
	SensorID string
	PM25     float64
	PM10     float64
	At       time.Time
}

// ReadingSink 读数落地（Redis 发布、Postgres 历史等）
type ReadingSink interface {
	Name() string
	WriteReading(ctx context.Context, r Reading) error
}

// CommandSink 已结束命令的审计落地
type CommandSink interface {
	Name() string
	WriteCommand(ctx context.Context, sensorID string, rec sensor.CommandRecord) error
}

// Dispatcher 消费引擎事件并分发给各 sink
//
// 失败只记录日志与指标，不回灌引擎。
type Dispatcher struct {
	readings []ReadingSink
	commands []CommandSink
	sensorID string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.AppMetrics

	breakers map[string]*Breaker
}

// NewDispatcher 创建分发器；sensorID 为命令审计使用的目标ID
func NewDispatcher(sensorID string, logger *zap.Logger, m *metrics.AppMetrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sensorID == "" {
		sensorID = "ffff"
	}
	return &Dispatcher{
		sensorID: sensorID,
		timeout:  3 * time.Second,
		logger:   logger.With(zap.String("component", "sink")),
		metrics:  m,
		breakers: make(map[string]*Breaker),
	}
}

// AddReadingSink 注册读数 sink
func (d *Dispatcher) AddReadingSink(s ReadingSink) { d.readings = append(d.readings, s) }

// AddCommandSink 注册命令 sink
func (d *Dispatcher) AddCommandSink(s CommandSink) { d.commands = append(d.commands, s) }

// Empty 未注册任何 sink
func (d *Dispatcher) Empty() bool { return len(d.readings) == 0 && len(d.commands) == 0 }

// Run 阻塞消费事件，直到 events 关闭或 ctx 结束
func (d *Dispatcher) Run(ctx context.Context, events <-chan sensor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			d.handle(ctx, e)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, e sensor.Event) {
	switch e.Kind {
	case sensor.EventReading:
		r := Reading{
			SensorID: fmt.Sprintf("%04x", e.DeviceID),
			PM25:     e.Reading.PM25,
			PM10:     e.Reading.PM10,
			At:       e.At,
		}
		for _, s := range d.readings {
			d.do(ctx, s.Name(), func(ctx context.Context) error { return s.WriteReading(ctx, r) })
		}
	case sensor.EventCommandSettled:
		if e.Command == nil {
			return
		}
		for _, s := range d.commands {
			d.do(ctx, s.Name(), func(ctx context.Context) error { return s.WriteCommand(ctx, d.sensorID, *e.Command) })
		}
	}
}

// breaker 每个 sink 一个熔断器，仅由 Run 协程访问
func (d *Dispatcher) breaker(name string) *Breaker {
	b, ok := d.breakers[name]
	if !ok {
		b = NewBreaker(5, 30*time.Second)
		b.onStateChange = func(from, to BreakerState) {
			d.logger.Warn("sink breaker state changed",
				zap.String("sink", name), zap.Stringer("from", from), zap.Stringer("to", to))
		}
		d.breakers[name] = b
	}
	return b
}

func (d *Dispatcher) do(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.breaker(name).Call(func() error { return fn(ctx) })
	if errors.Is(err, ErrBreakerOpen) {
		d.logger.Debug("sink skipped", zap.String("sink", name))
		return
	}
	if err != nil {
		if d.metrics != nil {
			d.metrics.SinkErrors.WithLabelValues(name).Inc()
		}
		d.logger.Warn("sink write failed", zap.String("sink", name), zap.Error(err))
	}
}
