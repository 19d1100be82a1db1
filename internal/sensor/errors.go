package sensor

import "errors"

var (
	// ErrClosed 连接已关闭；关闭时队列中未完成的命令也以此结束
	ErrClosed = errors.New("sensor connection closed")
	// ErrInvalidMode 上报模式只能是 active 或 query
	ErrInvalidMode = errors.New("invalid reporting mode")
	// ErrInvalidPeriod 工作周期必须在 0-30 分钟之间
	ErrInvalidPeriod = errors.New("invalid working period")
)
