package sds011

// 帧边界
const (
	FrameHead byte = 0xAA
	FrameTail byte = 0xAB

	// FrameLen 设备上行帧长度
	FrameLen = 10
	// CommandLen 主机下行命令长度
	CommandLen = 19
)

// 发送方标识（帧第1字节）
const (
	SenderReading byte = 0xC0 // 传感器读数
	SenderConfig  byte = 0xC5 // 配置应答
	SenderHost    byte = 0xB4 // 主机
)

// 命令类型（下行第2字节，配置应答第2字节回显）
const (
	CmdReportingMode byte = 0x02
	CmdQuery         byte = 0x04
	CmdSetDeviceID   byte = 0x05
	CmdPower         byte = 0x06
	CmdFirmware      byte = 0x07
	CmdWorkingPeriod byte = 0x08
)

// 读写方式
const (
	ModeGet byte = 0x00
	ModeSet byte = 0x01
)

// BroadcastID 未指定传感器ID时使用的广播地址
const BroadcastID uint16 = 0xFFFF

// MaxWorkingPeriod 工作周期上限（分钟），0表示连续工作
const MaxWorkingPeriod = 30

// CommandName 返回命令类型的可读名称（用于日志与指标标签）
func CommandName(cmd byte) string {
	switch cmd {
	case CmdReportingMode:
		return "reporting_mode"
	case CmdQuery:
		return "query"
	case CmdSetDeviceID:
		return "set_device_id"
	case CmdPower:
		return "power"
	case CmdFirmware:
		return "firmware"
	case CmdWorkingPeriod:
		return "working_period"
	default:
		return "unknown"
	}
}
