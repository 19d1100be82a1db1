package sds011

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFrame 帧长度不是10字节
	ErrShortFrame = errors.New("frame length mismatch")
	// ErrBadHead 帧头不是0xAA
	ErrBadHead = errors.New("bad frame head")
	// ErrBadTail 帧尾不是0xAB
	ErrBadTail = errors.New("bad frame tail")
	// ErrChecksumMismatch 校验和错误
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnknownSender 无法识别的发送方
	ErrUnknownSender = errors.New("unknown sender")
	// ErrUnknownCommand 配置应答回显了无法识别的命令类型
	ErrUnknownCommand = errors.New("unknown command echoed")
	// ErrInvalidSensorID 传感器ID格式错误（应为4位十六进制）
	ErrInvalidSensorID = errors.New("invalid sensor id")
)

// InvalidFrameError 携带校验失败的原始字节
type InvalidFrameError struct {
	Bytes  []byte
	Reason error
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("received invalid message % X: %v", e.Bytes, e.Reason)
}

func (e *InvalidFrameError) Unwrap() error { return e.Reason }
