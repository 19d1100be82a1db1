package sensor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/device"
	"github.com/taoyao-code/sds011-server/internal/outbound"
	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// commandSpec 一条目录命令：写出的字节、prepare 清空的字段、完成条件与取值
type commandSpec struct {
	name      string
	frame     []byte
	prepare   func(*device.State)
	fulfilled func(*device.State) bool
	// resolve 在事件循环内取出结果值，随 outcome 交给调用方
	resolve func(*device.State) any
}

// outcome 命令结果；调用方与事件循环之间只通过通道传值
type outcome struct {
	val any
	err error
}

// enqueue 在事件循环内入队，返回结果通道（容量1，事件循环永不阻塞）
func (c *Client) enqueue(ctx context.Context, spec commandSpec) (<-chan outcome, error) {
	done := make(chan outcome, 1)

	cmd := outbound.NewCommand(spec.name)
	cmd.Prepare = func() { spec.prepare(c.state) }
	cmd.Execute = func() error { return c.write(spec.frame) }
	cmd.Fulfilled = func() bool { return spec.fulfilled(c.state) }
	cmd.OnSuccess = func() {
		var v any
		if spec.resolve != nil {
			v = spec.resolve(c.state)
		}
		done <- outcome{val: v}
	}
	cmd.OnFailure = func(err error) { done <- outcome{err: err} }

	if c.closed.Load() {
		return nil, ErrClosed
	}
	// 事件循环退出前入队的命令由 Close 统一以 ErrClosed 结束
	err := c.call(ctx, func() {
		c.sched.Enqueue(cmd)
		c.metrics.QueueDepth.Set(float64(c.sched.Len()))
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

func (c *Client) submit(ctx context.Context, spec commandSpec) (any, error) {
	done, err := c.enqueue(ctx, spec)
	if err != nil {
		return nil, err
	}
	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		// 命令仍留在队列中按序执行，只是调用方不再等待
		return nil, ctx.Err()
	}
}

func (c *Client) querySpec() (commandSpec, error) {
	frame, err := sds011.QueryCommand(c.opts.SensorID)
	if err != nil {
		return commandSpec{}, err
	}
	return commandSpec{
		name:    "query",
		frame:   frame,
		prepare: (*device.State).ResetReading,
		fulfilled: func(s *device.State) bool {
			_, ok := s.Reading()
			return ok
		},
		resolve: func(s *device.State) any {
			r, _ := s.Reading()
			return r
		},
	}, nil
}

// Query 请求一次读数
func (c *Client) Query(ctx context.Context) (sds011.Reading, error) {
	spec, err := c.querySpec()
	if err != nil {
		return sds011.Reading{}, err
	}
	v, err := c.submit(ctx, spec)
	if err != nil {
		return sds011.Reading{}, err
	}
	return v.(sds011.Reading), nil
}

// SetReportingMode 设置上报模式（掉电保存）
func (c *Client) SetReportingMode(ctx context.Context, mode sds011.ReportingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	frame, err := sds011.SetReportingModeCommand(mode == sds011.ReportingActive, c.opts.SensorID)
	if err != nil {
		return err
	}
	_, err = c.submit(ctx, commandSpec{
		name:    "set_reporting_mode",
		frame:   frame,
		prepare: (*device.State).ResetMode,
		fulfilled: func(s *device.State) bool {
			m, ok := s.Mode()
			return ok && m == mode
		},
	})
	return err
}

// ReportingMode 读取上报模式
func (c *Client) ReportingMode(ctx context.Context) (sds011.ReportingMode, error) {
	frame, err := sds011.GetReportingModeCommand(c.opts.SensorID)
	if err != nil {
		return "", err
	}
	v, err := c.submit(ctx, commandSpec{
		name:    "get_reporting_mode",
		frame:   frame,
		prepare: (*device.State).ResetMode,
		fulfilled: func(s *device.State) bool {
			_, ok := s.Mode()
			return ok
		},
		resolve: func(s *device.State) any {
			m, _ := s.Mode()
			return m
		},
	})
	if err != nil {
		return "", err
	}
	return v.(sds011.ReportingMode), nil
}

// SetSleep 休眠（关闭风扇与激光）或唤醒
func (c *Client) SetSleep(ctx context.Context, sleep bool) error {
	frame, err := sds011.SetPowerCommand(!sleep, c.opts.SensorID)
	if err != nil {
		return err
	}
	_, err = c.submit(ctx, commandSpec{
		name:    "set_sleep",
		frame:   frame,
		prepare: (*device.State).ResetSleep,
		fulfilled: func(s *device.State) bool {
			v, ok := s.Sleeping()
			return ok && v == sleep
		},
	})
	return err
}

// FirmwareVersion 读取固件版本（YY-MM-DD）
func (c *Client) FirmwareVersion(ctx context.Context) (string, error) {
	frame, err := sds011.GetFirmwareCommand(c.opts.SensorID)
	if err != nil {
		return "", err
	}
	v, err := c.submit(ctx, commandSpec{
		name:    "get_firmware",
		frame:   frame,
		prepare: (*device.State).ResetFirmware,
		fulfilled: func(s *device.State) bool {
			_, ok := s.Firmware()
			return ok
		},
		resolve: func(s *device.State) any {
			fw, _ := s.Firmware()
			return fw
		},
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetWorkingPeriod 设置工作周期，0 表示连续工作（掉电保存）
func (c *Client) SetWorkingPeriod(ctx context.Context, minutes int) error {
	if minutes < 0 || minutes > sds011.MaxWorkingPeriod {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, minutes)
	}
	frame, err := sds011.SetPeriodCommand(byte(minutes), c.opts.SensorID)
	if err != nil {
		return err
	}
	_, err = c.submit(ctx, commandSpec{
		name:    "set_working_period",
		frame:   frame,
		prepare: (*device.State).ResetPeriod,
		fulfilled: func(s *device.State) bool {
			p, ok := s.WorkingPeriod()
			return ok && p == minutes
		},
	})
	return err
}

// WorkingPeriod 读取工作周期（分钟）
func (c *Client) WorkingPeriod(ctx context.Context) (int, error) {
	frame, err := sds011.GetPeriodCommand(c.opts.SensorID)
	if err != nil {
		return 0, err
	}
	v, err := c.submit(ctx, commandSpec{
		name:    "get_working_period",
		frame:   frame,
		prepare: (*device.State).ResetPeriod,
		fulfilled: func(s *device.State) bool {
			_, ok := s.WorkingPeriod()
			return ok
		},
		resolve: func(s *device.State) any {
			p, _ := s.WorkingPeriod()
			return p
		},
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// warmup 同步入队一次查询，结果只记录日志
func (c *Client) warmup() {
	spec, err := c.querySpec()
	if err != nil {
		return
	}
	done, err := c.enqueue(context.Background(), spec)
	if err != nil {
		return
	}
	go func() {
		o := <-done
		if o.err != nil {
			c.logger.Warn("warm-up query failed", zap.Error(o.err))
			return
		}
		r := o.val.(sds011.Reading)
		c.logger.Info("warm-up query done", zap.Float64("pm2p5", r.PM25), zap.Float64("pm10", r.PM10))
	}()
}
