package sds011

import (
	"encoding/hex"
	"fmt"
)

// ParseSensorID 解析4位十六进制传感器ID，空串表示广播
func ParseSensorID(s string) ([2]byte, error) {
	if s == "" {
		return [2]byte{byte(BroadcastID >> 8), byte(BroadcastID & 0xFF)}, nil
	}
	if len(s) != 4 {
		return [2]byte{}, fmt.Errorf("%w: %q", ErrInvalidSensorID, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [2]byte{}, fmt.Errorf("%w: %q", ErrInvalidSensorID, s)
	}
	return [2]byte{b[0], b[1]}, nil
}

// EncodeCommand 构造19字节下行命令
// AA | sender | type | mode | arg | 00×10 | idHi | idLo | sum(2..16) | AB
func EncodeCommand(sender, cmd, mode, arg byte, sensorID string) ([]byte, error) {
	id, err := ParseSensorID(sensorID)
	if err != nil {
		return nil, err
	}
	b := make([]byte, CommandLen)
	b[0] = FrameHead
	b[1] = sender
	b[2] = cmd
	b[3] = mode
	b[4] = arg
	b[15] = id[0]
	b[16] = id[1]
	b[17] = Checksum(b, 2, 16)
	b[18] = FrameTail
	return b, nil
}

// QueryCommand 查询读数
func QueryCommand(sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdQuery, ModeGet, 0, sensorID)
}

// SetReportingModeCommand 设置上报模式：active=0，query=1
func SetReportingModeCommand(active bool, sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdReportingMode, ModeSet, boolByte(!active), sensorID)
}

// GetReportingModeCommand 读取上报模式
func GetReportingModeCommand(sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdReportingMode, ModeGet, 0, sensorID)
}

// SetPowerCommand on=true 唤醒，on=false 休眠
func SetPowerCommand(on bool, sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdPower, ModeSet, boolByte(on), sensorID)
}

// GetFirmwareCommand 读取固件版本
func GetFirmwareCommand(sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdFirmware, ModeGet, 0, sensorID)
}

// SetPeriodCommand 设置工作周期（分钟）
func SetPeriodCommand(minutes byte, sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdWorkingPeriod, ModeSet, minutes, sensorID)
}

// GetPeriodCommand 读取工作周期
func GetPeriodCommand(sensorID string) ([]byte, error) {
	return EncodeCommand(SenderHost, CmdWorkingPeriod, ModeGet, 0, sensorID)
}

// HostCommand 解析后的下行命令（模拟器使用）
type HostCommand struct {
	Cmd      byte
	Mode     byte
	Arg      byte
	TargetID uint16
}

// Broadcast 是否广播命令
func (c HostCommand) Broadcast() bool { return c.TargetID == BroadcastID }

// ParseCommand 校验并解析19字节下行命令
func ParseCommand(b []byte) (HostCommand, error) {
	var c HostCommand
	if len(b) != CommandLen {
		return c, ErrShortFrame
	}
	if b[0] != FrameHead {
		return c, ErrBadHead
	}
	if b[CommandLen-1] != FrameTail {
		return c, ErrBadTail
	}
	if b[17] != Checksum(b, 2, 16) {
		return c, ErrChecksumMismatch
	}
	c.Cmd = b[2]
	c.Mode = b[3]
	c.Arg = b[4]
	c.TargetID = uint16(b[15])<<8 | uint16(b[16])
	return c, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
