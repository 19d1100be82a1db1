package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// cmdOf 将编码结果解析回下行命令，编码失败属于测试本身的错误
func cmdOf(b []byte, err error) sds011.HostCommand {
	if err != nil {
		panic(err)
	}
	cmd, err := sds011.ParseCommand(b)
	if err != nil {
		panic(err)
	}
	return cmd
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	p := DefaultProfile()
	p.Jitter = 0
	d, err := NewDevice(p)
	require.NoError(t, err)
	return d
}

func TestDevice_Query(t *testing.T) {
	d := newTestDevice(t)
	frames := d.Handle(cmdOf(sds011.QueryCommand("")))
	require.Len(t, frames, 1)

	msg, err := sds011.Decode(frames[0])
	require.NoError(t, err)
	require.NotNil(t, msg.Reading)
	assert.Equal(t, 12.3, msg.Reading.PM25)
	assert.Equal(t, 20.1, msg.Reading.PM10)
	assert.Equal(t, uint16(0xa1b2), frames[0].DeviceID())
}

func TestDevice_ConfigCommands(t *testing.T) {
	tests := []struct {
		name  string
		build func() ([]byte, error)
		check func(t *testing.T, c sds011.Config)
	}{
		{"设为主动上报", func() ([]byte, error) { return sds011.SetReportingModeCommand(true, "") },
			func(t *testing.T, c sds011.Config) { assert.Equal(t, sds011.ReportingActive, c.Mode) }},
		{"读取上报模式", func() ([]byte, error) { return sds011.GetReportingModeCommand("") },
			func(t *testing.T, c sds011.Config) { assert.Equal(t, sds011.ReportingQuery, c.Mode) }},
		{"读取固件版本", func() ([]byte, error) { return sds011.GetFirmwareCommand("") },
			func(t *testing.T, c sds011.Config) { assert.Equal(t, "18-11-16", c.Firmware) }},
		{"设置工作周期", func() ([]byte, error) { return sds011.SetPeriodCommand(5, "") },
			func(t *testing.T, c sds011.Config) { assert.Equal(t, 5, c.Period) }},
		{"读取工作周期", func() ([]byte, error) { return sds011.GetPeriodCommand("") },
			func(t *testing.T, c sds011.Config) { assert.Equal(t, 0, c.Period) }},
		{"休眠", func() ([]byte, error) { return sds011.SetPowerCommand(false, "") },
			func(t *testing.T, c sds011.Config) { assert.True(t, c.Sleeping) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t)
			frames := d.Handle(cmdOf(tt.build()))
			require.Len(t, frames, 1)
			msg, err := sds011.Decode(frames[0])
			require.NoError(t, err)
			require.NotNil(t, msg.Config)
			tt.check(t, *msg.Config)
		})
	}
}

func TestDevice_SleepIgnoresOtherCommands(t *testing.T) {
	d := newTestDevice(t)
	d.Handle(cmdOf(sds011.SetPowerCommand(false, "")))

	assert.Empty(t, d.Handle(cmdOf(sds011.QueryCommand(""))))
	assert.Empty(t, d.Handle(cmdOf(sds011.GetFirmwareCommand(""))))

	frames := d.Handle(cmdOf(sds011.SetPowerCommand(true, "")))
	require.Len(t, frames, 1)
	msg, err := sds011.Decode(frames[0])
	require.NoError(t, err)
	assert.False(t, msg.Config.Sleeping)
	assert.Len(t, d.Handle(cmdOf(sds011.QueryCommand(""))), 1)
}

func TestDevice_Addressing(t *testing.T) {
	d := newTestDevice(t)
	assert.Empty(t, d.Handle(cmdOf(sds011.QueryCommand("cafe"))), "非本机命令应忽略")
	assert.Len(t, d.Handle(cmdOf(sds011.QueryCommand("a1b2"))), 1)
	assert.Len(t, d.Handle(cmdOf(sds011.QueryCommand(""))), 1)
}

func TestDevice_Push(t *testing.T) {
	d := newTestDevice(t)
	_, ok := d.Push()
	assert.False(t, ok, "查询模式不主动上报")

	d.Handle(cmdOf(sds011.SetReportingModeCommand(true, "")))
	f, ok := d.Push()
	require.True(t, ok)
	assert.Equal(t, sds011.SenderReading, f.Sender())

	d.Handle(cmdOf(sds011.SetPeriodCommand(2, "")))
	assert.Equal(t, 2*60, int(d.PushInterval().Seconds()))

	d.Handle(cmdOf(sds011.SetPowerCommand(false, "")))
	_, ok = d.Push()
	assert.False(t, ok, "休眠时不上报")
}

func TestDevice_Jitter(t *testing.T) {
	p := DefaultProfile()
	p.Jitter = 2
	p.Seed = 7
	d, err := NewDevice(p)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		msg, err := sds011.Decode(d.Handle(cmdOf(sds011.QueryCommand("")))[0])
		require.NoError(t, err)
		assert.InDelta(t, p.PM25, msg.Reading.PM25, 2.1)
		assert.Greater(t, msg.Reading.PM10, 0.0)
	}
}
