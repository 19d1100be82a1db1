package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// Device 设备侧状态机：按下行命令更新自身状态并生成应答帧
type Device struct {
	mu       sync.Mutex
	id       uint16
	mode     sds011.ReportingMode
	sleeping bool
	period   int
	firmware [3]byte
	pm25     float64
	pm10     float64
	jitter   float64
	interval time.Duration
	rnd      *rand.Rand
}

// NewDevice 按配置创建设备
func NewDevice(p Profile) (*Device, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id, _ := sds011.ParseSensorID(p.DeviceID)
	fw, _ := p.firmwareBytes()
	mode, _ := sds011.ParseReportingMode(p.Mode)
	return &Device{
		id:       uint16(id[0])<<8 | uint16(id[1]),
		mode:     mode,
		sleeping: p.Sleeping,
		period:   p.Period,
		firmware: fw,
		pm25:     p.PM25,
		pm10:     p.PM10,
		jitter:   p.Jitter,
		interval: p.Interval,
		rnd:      rand.New(rand.NewPCG(p.Seed, p.Seed^0x5d5011)),
	}, nil
}

// ID 设备ID
func (d *Device) ID() uint16 { return d.id }

// Handle 处理一条下行命令，返回需要回写的帧（可能为空）
//
// 非本机且非广播的命令被忽略；休眠时只响应电源命令。
func (d *Device) Handle(cmd sds011.HostCommand) []sds011.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !cmd.Broadcast() && cmd.TargetID != d.id {
		return nil
	}
	if d.sleeping && cmd.Cmd != sds011.CmdPower {
		return nil
	}

	set := cmd.Mode == sds011.ModeSet
	switch cmd.Cmd {
	case sds011.CmdQuery:
		return []sds011.Frame{d.readingLocked()}
	case sds011.CmdReportingMode:
		if set {
			d.mode = sds011.ReportingActive
			if cmd.Arg != 0 {
				d.mode = sds011.ReportingQuery
			}
		}
		var b byte
		if d.mode == sds011.ReportingQuery {
			b = 1
		}
		return []sds011.Frame{d.config(cmd.Cmd, cmd.Mode, b, 0)}
	case sds011.CmdPower:
		if set {
			d.sleeping = cmd.Arg == 0
		}
		var b byte = 1
		if d.sleeping {
			b = 0
		}
		return []sds011.Frame{d.config(cmd.Cmd, cmd.Mode, b, 0)}
	case sds011.CmdFirmware:
		return []sds011.Frame{sds011.EncodeConfigFrame(cmd.Cmd, d.firmware[0], d.firmware[1], d.firmware[2], d.id)}
	case sds011.CmdWorkingPeriod:
		if set && int(cmd.Arg) <= sds011.MaxWorkingPeriod {
			d.period = int(cmd.Arg)
		}
		return []sds011.Frame{d.config(cmd.Cmd, cmd.Mode, byte(d.period), 0)}
	default:
		return nil
	}
}

// Push 主动上报：仅在主动模式且未休眠时返回读数帧
func (d *Device) Push() (sds011.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sleeping || d.mode != sds011.ReportingActive {
		return sds011.Frame{}, false
	}
	return d.readingLocked(), true
}

// PushInterval 下一次主动上报的间隔
func (d *Device) PushInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.period == 0 {
		return d.interval
	}
	return time.Duration(d.period) * time.Minute
}

// State 当前状态（测试与日志使用）
func (d *Device) State() (mode sds011.ReportingMode, sleeping bool, period int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode, d.sleeping, d.period
}

func (d *Device) config(cmd, b3, b4, b5 byte) sds011.Frame {
	return sds011.EncodeConfigFrame(cmd, b3, b4, b5, d.id)
}

func (d *Device) readingLocked() sds011.Frame {
	return sds011.EncodeReadingFrame(d.sample(d.pm25), d.sample(d.pm10), d.id)
}

func (d *Device) sample(base float64) float64 {
	if d.jitter <= 0 {
		return base
	}
	v := base + (d.rnd.Float64()*2-1)*d.jitter
	if v < 0.1 {
		v = 0.1
	}
	return v
}
