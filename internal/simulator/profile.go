package simulator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// Profile 模拟设备配置（YAML）
type Profile struct {
	// DeviceID 设备ID（4位十六进制）
	DeviceID string `yaml:"deviceId"`
	// Firmware 固件日期 YY-MM-DD
	Firmware string `yaml:"firmware"`
	Mode     string `yaml:"mode"`
	Sleeping bool   `yaml:"sleeping"`
	// Period 工作周期（分钟），0 为连续工作
	Period int     `yaml:"period"`
	PM25   float64 `yaml:"pm25"`
	PM10   float64 `yaml:"pm10"`
	// Jitter 每次读数在基准值上的随机浮动幅度
	Jitter float64 `yaml:"jitter"`
	// Interval 连续工作时主动上报间隔
	Interval time.Duration `yaml:"interval"`
	// GarbageRatio 在帧前插入噪声字节的概率 [0,1]
	GarbageRatio float64 `yaml:"garbageRatio"`
	Seed         uint64  `yaml:"seed"`
}

// DefaultProfile 默认配置：查询模式、唤醒、连续工作
func DefaultProfile() Profile {
	return Profile{
		DeviceID: "a1b2",
		Firmware: "18-11-16",
		Mode:     string(sds011.ReportingQuery),
		PM25:     12.3,
		PM10:     20.1,
		Jitter:   0.5,
		Interval: time.Second,
	}
}

// LoadProfile 读取 YAML 配置；path 为空时返回默认配置
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile 解析 YAML，未给出的字段沿用默认值
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate 校验配置
func (p Profile) Validate() error {
	if p.DeviceID == "" {
		return errors.New("profile: deviceId is required")
	}
	if _, err := sds011.ParseSensorID(p.DeviceID); err != nil {
		return fmt.Errorf("profile: deviceId: %w", err)
	}
	if _, err := p.firmwareBytes(); err != nil {
		return err
	}
	if _, ok := sds011.ParseReportingMode(p.Mode); !ok {
		return fmt.Errorf("profile: unknown mode %q", p.Mode)
	}
	if p.Period < 0 || p.Period > sds011.MaxWorkingPeriod {
		return fmt.Errorf("profile: period %d out of range", p.Period)
	}
	if p.PM25 < 0 || p.PM10 < 0 {
		return errors.New("profile: pm values must not be negative")
	}
	if p.GarbageRatio < 0 || p.GarbageRatio > 1 {
		return fmt.Errorf("profile: garbageRatio %v out of range", p.GarbageRatio)
	}
	if p.Interval <= 0 {
		return errors.New("profile: interval must be positive")
	}
	return nil
}

func (p Profile) firmwareBytes() ([3]byte, error) {
	var yy, mm, dd int
	if _, err := fmt.Sscanf(p.Firmware, "%d-%d-%d", &yy, &mm, &dd); err != nil {
		return [3]byte{}, fmt.Errorf("profile: firmware %q: %w", p.Firmware, err)
	}
	if yy < 0 || yy > 99 || mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return [3]byte{}, fmt.Errorf("profile: firmware %q out of range", p.Firmware)
	}
	return [3]byte{byte(yy), byte(mm), byte(dd)}, nil
}
