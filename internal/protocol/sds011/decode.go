package sds011

import (
	"fmt"
)

// ReportingMode 上报模式
type ReportingMode string

const (
	ReportingActive ReportingMode = "active" // 主动上报
	ReportingQuery  ReportingMode = "query"  // 查询时上报
)

// ParseReportingMode 解析上报模式，仅接受 active/query
func ParseReportingMode(s string) (ReportingMode, bool) {
	switch ReportingMode(s) {
	case ReportingActive, ReportingQuery:
		return ReportingMode(s), true
	}
	return "", false
}

// Valid 是否为已知模式
func (m ReportingMode) Valid() bool {
	_, ok := ParseReportingMode(string(m))
	return ok
}

// Reading PM读数（µg/m³，0.1精度）
type Reading struct {
	PM25 float64 `json:"pm2p5"`
	PM10 float64 `json:"pm10"`
}

// Sensible 两项读数均大于0
func (r Reading) Sensible() bool { return r.PM25 > 0 && r.PM10 > 0 }

// Config 配置应答解码结果，仅 Cmd 对应的字段有效
type Config struct {
	Cmd      byte
	Mode     ReportingMode
	Sleeping bool
	Firmware string
	Period   int
}

// Message 解码后的上行消息
type Message struct {
	Sender  byte
	Reading *Reading
	Config  *Config
}

// DecodeReading 解码读数帧，低字节在前，数值放大10倍
func DecodeReading(f Frame) Reading {
	return Reading{
		PM25: float64(int(f[3])*256+int(f[2])) / 10,
		PM10: float64(int(f[5])*256+int(f[4])) / 10,
	}
}

// DecodeConfig 按回显的命令类型解码配置应答
func DecodeConfig(f Frame) (Config, error) {
	c := Config{Cmd: f[2]}
	switch f[2] {
	case CmdReportingMode:
		if f[4] == 0 {
			c.Mode = ReportingActive
		} else {
			c.Mode = ReportingQuery
		}
	case CmdPower:
		c.Sleeping = f[4] == 0
	case CmdFirmware:
		c.Firmware = fmt.Sprintf("%02d-%02d-%02d", f[3], f[4], f[5])
	case CmdWorkingPeriod:
		c.Period = int(f[4])
	default:
		return c, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, f[2])
	}
	return c, nil
}

// Decode 按发送方分发解码
func Decode(f Frame) (Message, error) {
	m := Message{Sender: f.Sender()}
	switch f.Sender() {
	case SenderReading:
		r := DecodeReading(f)
		m.Reading = &r
	case SenderConfig:
		c, err := DecodeConfig(f)
		if err != nil {
			return m, err
		}
		m.Config = &c
	default:
		return m, fmt.Errorf("%w: 0x%02X", ErrUnknownSender, f.Sender())
	}
	return m, nil
}
