package device

import (
	"time"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// State 单个传感器连接的最近观测状态
//
// 只允许两类写入：上行帧解码（Apply*）与命令调度的 prepare 阶段（Reset*）。
// State 不加锁，由 sensor.Client 的事件循环独占；其它协程只能读取 Snapshot。
type State struct {
	pm25, pm10 float64
	hasReading bool

	mode sds011.ReportingMode // 空值表示未观测

	sleeping    bool
	hasSleeping bool

	firmware string

	period    int
	hasPeriod bool

	closed bool

	lastFrameAt time.Time
}

func New() *State { return &State{} }

// ApplyReading 写入读数帧解码结果
func (s *State) ApplyReading(r sds011.Reading) {
	if s.closed {
		return
	}
	s.pm25, s.pm10 = r.PM25, r.PM10
	s.hasReading = true
}

// ApplyConfig 仅覆盖应答命令对应的字段
func (s *State) ApplyConfig(c sds011.Config) {
	if s.closed {
		return
	}
	switch c.Cmd {
	case sds011.CmdReportingMode:
		s.mode = c.Mode
	case sds011.CmdPower:
		s.sleeping, s.hasSleeping = c.Sleeping, true
	case sds011.CmdFirmware:
		s.firmware = c.Firmware
	case sds011.CmdWorkingPeriod:
		s.period, s.hasPeriod = c.Period, true
	}
}

// Touch 记录最近一次收到合法帧的时间
func (s *State) Touch(at time.Time) { s.lastFrameAt = at }

// Reset* 将字段置为未观测，供命令 prepare 阶段使用
func (s *State) ResetReading() { s.pm25, s.pm10, s.hasReading = 0, 0, false }

func (s *State) ResetMode() { s.mode = "" }

func (s *State) ResetSleep() { s.sleeping, s.hasSleeping = false, false }

func (s *State) ResetFirmware() { s.firmware = "" }

func (s *State) ResetPeriod() { s.period, s.hasPeriod = 0, false }

// MarkClosed 连接关闭后不再接受任何更新
func (s *State) MarkClosed() { s.closed = true }

func (s *State) Closed() bool { return s.closed }

// Reading 最近一次读数；ok=false 表示自上次请求后尚未观测
func (s *State) Reading() (sds011.Reading, bool) {
	return sds011.Reading{PM25: s.pm25, PM10: s.pm10}, s.hasReading
}

func (s *State) Mode() (sds011.ReportingMode, bool) { return s.mode, s.mode != "" }

func (s *State) Sleeping() (bool, bool) { return s.sleeping, s.hasSleeping }

func (s *State) Firmware() (string, bool) { return s.firmware, s.firmware != "" }

func (s *State) WorkingPeriod() (int, bool) { return s.period, s.hasPeriod }

// Snapshot 只读副本，未观测字段为 nil
type Snapshot struct {
	PM25          *float64              `json:"pm2p5"`
	PM10          *float64              `json:"pm10"`
	Mode          *sds011.ReportingMode `json:"mode"`
	Sleeping      *bool                 `json:"isSleeping"`
	Firmware      *string               `json:"firmware"`
	WorkingPeriod *int                  `json:"workingPeriod"`
	Closed        bool                  `json:"closed"`
	LastFrameAt   *time.Time            `json:"lastFrameAt,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{Closed: s.closed}
	if s.hasReading {
		pm25, pm10 := s.pm25, s.pm10
		snap.PM25, snap.PM10 = &pm25, &pm10
	}
	if s.mode != "" {
		m := s.mode
		snap.Mode = &m
	}
	if s.hasSleeping {
		v := s.sleeping
		snap.Sleeping = &v
	}
	if s.firmware != "" {
		v := s.firmware
		snap.Firmware = &v
	}
	if s.hasPeriod {
		v := s.period
		snap.WorkingPeriod = &v
	}
	if !s.lastFrameAt.IsZero() {
		v := s.lastFrameAt
		snap.LastFrameAt = &v
	}
	return snap
}
