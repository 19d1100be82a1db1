package sensor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/device"
	"github.com/taoyao-code/sds011-server/internal/metrics"
	"github.com/taoyao-code/sds011-server/internal/outbound"
	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
	"github.com/taoyao-code/sds011-server/internal/transport"
)

// Options 客户端参数
type Options struct {
	// SensorID 目标传感器ID（4位十六进制），空表示广播
	SensorID      string
	MaxRetries    int
	RetryInterval time.Duration
	// Warmup Start 时排入一次查询，预热连接与队列
	Warmup bool
	// Now 时间源，测试可替换
	Now func() time.Time
}

// Client SDS011 串口协议引擎
//
// 设备状态、分帧器、调度器均由 run 协程独占：上行数据、重试定时、命令提交、
// 状态快照都以消息形式投递到该协程串行处理，因此内部不需要锁。
type Client struct {
	port    transport.Port
	opts    Options
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	state   *device.State
	decoder *sds011.StreamDecoder
	sched   *outbound.Scheduler
	bus     *eventBus

	timer *time.Timer

	dataC chan []byte
	errC  chan error
	callC chan func()
	stopC chan struct{}
	doneC chan struct{}

	closed  atomic.Bool
	started atomic.Bool
}

// New 创建客户端并启动读协程与事件循环
func New(port transport.Port, opts Options, logger *zap.Logger, m *metrics.AppMetrics) (*Client, error) {
	if _, err := sds011.ParseSensorID(opts.SensorID); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewAppMetrics(prometheus.NewRegistry())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Client{
		port:    port,
		opts:    opts,
		logger:  logger.With(zap.String("component", "sds011")),
		metrics: m,
		state:   device.New(),
		decoder: sds011.NewStreamDecoder(),
		bus:     newEventBus(m.EventsDropped.Inc),
		timer:   time.NewTimer(time.Hour),
		dataC:   make(chan []byte, 16),
		errC:    make(chan error, 1),
		callC:   make(chan func()),
		stopC:   make(chan struct{}),
		doneC:   make(chan struct{}),
	}
	c.timer.Stop()

	c.sched = outbound.New(func(d time.Duration) { c.timer.Reset(d) }, c.logger)
	if opts.MaxRetries > 0 {
		c.sched.MaxRetries = opts.MaxRetries
	}
	if opts.RetryInterval > 0 {
		c.sched.Interval = opts.RetryInterval
	}
	c.sched.SetMetricsCallbacks(c.onAttempt, c.onSettled)

	go c.run()
	go c.readLoop()
	return c, nil
}

// Start 按配置排入预热查询。先 Subscribe 再 Start，订阅者才能收到预热产生的事件。
func (c *Client) Start() {
	if c.opts.Warmup && c.started.CompareAndSwap(false, true) {
		c.warmup()
	}
}

// Subscribe 订阅引擎事件；buffer 满时新事件被丢弃
func (c *Client) Subscribe(buffer int) (<-chan Event, func()) {
	return c.bus.subscribe(buffer)
}

// Snapshot 读取设备状态副本
func (c *Client) Snapshot(ctx context.Context) (device.Snapshot, error) {
	ch := make(chan device.Snapshot, 1)
	if err := c.call(ctx, func() { ch <- c.state.Snapshot() }); err != nil {
		return device.Snapshot{}, err
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return device.Snapshot{}, ctx.Err()
	}
}

// QueueLen 当前排队命令数
func (c *Client) QueueLen(ctx context.Context) (int, error) {
	ch := make(chan int, 1)
	if err := c.call(ctx, func() { ch <- c.sched.Len() }); err != nil {
		return 0, err
	}
	select {
	case n := <-ch:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Closed 是否已关闭
func (c *Client) Closed() bool { return c.closed.Load() }

// Close 关闭连接：清空队列并以 ErrClosed 结束所有未完成命令。重复关闭仅记录提示。
//
// 先关闭传输层，解除事件循环可能卡住的写入与读协程的读取，待事件循环退出后
// 再直接清理其独占的状态。
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		c.logger.Info("sensor connection is already closed")
		return nil
	}

	close(c.stopC)
	err := c.port.Close()
	<-c.doneC

	c.state.MarkClosed()
	c.timer.Stop()
	dropped := c.sched.Clear()
	for _, cmd := range dropped {
		c.onSettled(cmd, outbound.ResultClosed)
		if cmd.OnFailure != nil {
			cmd.OnFailure(ErrClosed)
		}
	}
	c.metrics.QueueDepth.Set(0)
	if len(dropped) > 0 {
		c.logger.Info("pending commands dropped on close", zap.Int("count", len(dropped)))
	}
	c.bus.close()
	return err
}

// call 将 fn 投递到事件循环执行
func (c *Client) call(ctx context.Context, fn func()) error {
	select {
	case c.callC <- fn:
		return nil
	case <-c.doneC:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) run() {
	defer close(c.doneC)
	for {
		// 关闭优先，避免在已关闭的端口上继续处理
		select {
		case <-c.stopC:
			return
		default:
		}
		select {
		case chunk := <-c.dataC:
			c.handleData(chunk)
		case err := <-c.errC:
			c.handleTransportError(err)
		case fn := <-c.callC:
			fn()
		case <-c.timer.C:
			c.sched.Tick()
			c.metrics.QueueDepth.Set(float64(c.sched.Len()))
		case <-c.stopC:
			return
		}
	}
}

// readLoop 将传输层读取转为数据块；出错后不重连
func (c *Client) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.dataC <- chunk:
			case <-c.stopC:
				return
			}
		}
		if err != nil {
			if c.closed.Load() {
				return
			}
			select {
			case c.errC <- err:
			case <-c.stopC:
			}
			return
		}
	}
}

func (c *Client) handleData(chunk []byte) {
	c.metrics.BytesReceived.Add(float64(len(chunk)))
	c.bus.publish(Event{Kind: EventData, Data: chunk})

	for _, r := range c.decoder.Feed(chunk) {
		if r.Err != nil {
			c.metrics.FramesTotal.WithLabelValues("invalid").Inc()
			c.logger.Debug("invalid frame", zap.Binary("bytes", r.Err.Bytes), zap.Error(r.Err.Reason))
			c.bus.publish(Event{Kind: EventMessageError, Data: r.Err.Bytes, Err: r.Err})
			continue
		}
		c.handleFrame(r.Frame)
	}
}

func (c *Client) handleFrame(f sds011.Frame) {
	c.bus.publish(Event{Kind: EventMessage, Data: f.Bytes(), DeviceID: f.DeviceID()})

	msg, err := sds011.Decode(f)
	if err != nil {
		c.metrics.FramesTotal.WithLabelValues("undecodable").Inc()
		c.logger.Warn("cannot handle message", zap.Stringer("frame", f), zap.Error(err))
		c.bus.publish(Event{Kind: EventMessageError, Data: f.Bytes(), Err: err})
		return
	}
	c.metrics.FramesTotal.WithLabelValues("ok").Inc()
	c.state.Touch(c.opts.Now())

	switch {
	case msg.Reading != nil:
		c.state.ApplyReading(*msg.Reading)
		if msg.Reading.Sensible() {
			c.metrics.ReadingsTotal.Inc()
			c.metrics.PM25.Set(msg.Reading.PM25)
			c.metrics.PM10.Set(msg.Reading.PM10)
			c.bus.publish(Event{Kind: EventReading, Reading: *msg.Reading, DeviceID: f.DeviceID()})
		}
	case msg.Config != nil:
		c.state.ApplyConfig(*msg.Config)
		c.logger.Debug("config response",
			zap.String("cmd", sds011.CommandName(msg.Config.Cmd)), zap.Stringer("frame", f))
	}
}

func (c *Client) handleTransportError(err error) {
	c.logger.Error("transport error", zap.Error(err))
	c.bus.publish(Event{Kind: EventTransportError, Err: err})
}

// write 在事件循环内写出下行命令
func (c *Client) write(b []byte) error {
	_, err := c.port.Write(b)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrWriteThrottled):
		c.metrics.WriteThrottled.Inc()
	default:
		c.metrics.WriteErrors.Inc()
	}
	return err
}

func (c *Client) onAttempt(cmd *outbound.Command) {
	c.metrics.CommandAttempts.WithLabelValues(cmd.Name).Inc()
}

func (c *Client) onSettled(cmd *outbound.Command, result string) {
	c.metrics.CommandsTotal.WithLabelValues(cmd.Name, result).Inc()
	c.metrics.QueueDepth.Set(float64(c.sched.Len()))
	c.bus.publish(Event{Kind: EventCommandSettled, Command: &CommandRecord{
		ID:         cmd.ID,
		Name:       cmd.Name,
		Result:     result,
		Attempts:   cmd.Attempts(),
		EnqueuedAt: cmd.EnqueuedAt,
		Duration:   c.opts.Now().Sub(cmd.EnqueuedAt),
	}})
}
