package sds011

import (
	"fmt"
)

// Frame 已通过校验的10字节上行帧
// [0]帧头 [1]发送方 [2..7]数据 [8]校验和 [9]帧尾
type Frame [FrameLen]byte

// Sender 发送方标识
func (f Frame) Sender() byte { return f[1] }

// Data 返回6字节数据区
func (f Frame) Data() []byte { return f[2:8] }

// DeviceID 设备ID（数据区末两字节）
func (f Frame) DeviceID() uint16 { return uint16(f[6])<<8 | uint16(f[7]) }

// Bytes 返回帧的副本
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameLen)
	copy(b, f[:])
	return b
}

func (f Frame) String() string {
	return fmt.Sprintf("% X", f[:])
}

// ValidateFrame 判断是否为合法上行帧
func ValidateFrame(b []byte) bool {
	return VerifyFrame(b) == nil
}

// VerifyFrame 校验上行帧，返回第一个不满足的规则
func VerifyFrame(b []byte) error {
	if len(b) != FrameLen {
		return ErrShortFrame
	}
	if b[0] != FrameHead {
		return ErrBadHead
	}
	if b[FrameLen-1] != FrameTail {
		return ErrBadTail
	}
	if b[8] != Checksum(b, 2, 7) {
		return ErrChecksumMismatch
	}
	return nil
}

// ParseFrame 校验并复制为 Frame
func ParseFrame(b []byte) (Frame, error) {
	var f Frame
	if err := VerifyFrame(b); err != nil {
		return f, &InvalidFrameError{Bytes: append([]byte(nil), b...), Reason: err}
	}
	copy(f[:], b)
	return f, nil
}

// EncodeFrame 构造设备侧上行帧（模拟器与测试使用）
func EncodeFrame(sender byte, data [6]byte) Frame {
	var f Frame
	f[0] = FrameHead
	f[1] = sender
	copy(f[2:8], data[:])
	f[8] = Checksum(f[:], 2, 7)
	f[9] = FrameTail
	return f
}

// EncodeReadingFrame 构造读数帧，数值按0.1精度取整
func EncodeReadingFrame(pm25, pm10 float64, deviceID uint16) Frame {
	p25 := scaleReading(pm25)
	p10 := scaleReading(pm10)
	return EncodeFrame(SenderReading, [6]byte{
		byte(p25), byte(p25 >> 8),
		byte(p10), byte(p10 >> 8),
		byte(deviceID >> 8), byte(deviceID),
	})
}

// EncodeConfigFrame 构造配置应答帧
func EncodeConfigFrame(cmd, b3, b4, b5 byte, deviceID uint16) Frame {
	return EncodeFrame(SenderConfig, [6]byte{cmd, b3, b4, b5, byte(deviceID >> 8), byte(deviceID)})
}

func scaleReading(v float64) uint16 {
	x := v*10 + 0.5
	if x < 0 {
		return 0
	}
	if x > 0xFFFF {
		return 0xFFFF
	}
	return uint16(x)
}
