package transport

import (
	"fmt"

	"go.bug.st/serial"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
)

// DefaultBaudRate SDS011 固定 9600 8N1
const DefaultBaudRate = 9600

// OpenSerial 打开本地串口
func OpenSerial(cfg cfgpkg.SerialConfig) (Port, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Path, err)
	}
	// 清掉打开前积压的半帧数据
	_ = port.ResetInputBuffer()
	return port, nil
}

// ListSerialPorts 列出本机可用串口
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
