package sensor

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/outbound"
	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
	"github.com/taoyao-code/sds011-server/internal/simulator"
)

// pipeDevice 管道另一端的假设备；dev 为 nil 时只记录命令不应答
type pipeDevice struct {
	conn net.Conn
	dev  *simulator.Device
	// delay 每次应答前的等待，模拟慢设备
	delay time.Duration

	mu   sync.Mutex
	cmds []sds011.HostCommand
}

func (p *pipeDevice) serve() {
	buf := make([]byte, sds011.CommandLen)
	for {
		if _, err := io.ReadFull(p.conn, buf); err != nil {
			return
		}
		cmd, err := sds011.ParseCommand(buf)
		if err != nil {
			continue
		}
		p.mu.Lock()
		p.cmds = append(p.cmds, cmd)
		p.mu.Unlock()
		if p.dev == nil {
			continue
		}
		if p.delay > 0 {
			time.Sleep(p.delay)
		}
		for _, f := range p.dev.Handle(cmd) {
			if _, err := p.conn.Write(f.Bytes()); err != nil {
				return
			}
		}
	}
}

func (p *pipeDevice) commands() []sds011.HostCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sds011.HostCommand(nil), p.cmds...)
}

func simDevice(t *testing.T) *simulator.Device {
	t.Helper()
	prof := simulator.DefaultProfile()
	prof.Jitter = 0
	d, err := simulator.NewDevice(prof)
	require.NoError(t, err)
	return d
}

func newTestClient(t *testing.T, dev *simulator.Device, opts Options) (*Client, *pipeDevice) {
	t.Helper()
	return startTestClient(t, &pipeDevice{dev: dev}, opts)
}

func startTestClient(t *testing.T, pd *pipeDevice, opts Options) (*Client, *pipeDevice) {
	t.Helper()
	host, devConn := net.Pipe()
	pd.conn = devConn
	go pd.serve()

	if opts.RetryInterval == 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	c, err := New(host, opts, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		_ = devConn.Close()
	})
	return c, pd
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_Query(t *testing.T) {
	c, pd := newTestClient(t, simDevice(t), Options{})
	ctx := testCtx(t)

	r, err := c.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12.3, r.PM25)
	assert.Equal(t, 20.1, r.PM10)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.PM25)
	assert.Equal(t, 12.3, *snap.PM25)
	assert.NotNil(t, snap.LastFrameAt)

	cmds := pd.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, sds011.CmdQuery, cmds[0].Cmd)
	assert.True(t, cmds[0].Broadcast())
}

func TestClient_CommandCatalogue(t *testing.T) {
	c, pd := newTestClient(t, simDevice(t), Options{})
	ctx := testCtx(t)

	mode, err := c.ReportingMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, sds011.ReportingQuery, mode)

	require.NoError(t, c.SetReportingMode(ctx, sds011.ReportingActive))
	mode, err = c.ReportingMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, sds011.ReportingActive, mode)

	fw, err := c.FirmwareVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "18-11-16", fw)

	require.NoError(t, c.SetWorkingPeriod(ctx, 5))
	period, err := c.WorkingPeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, period)

	require.NoError(t, c.SetSleep(ctx, true))
	require.NoError(t, c.SetSleep(ctx, false))

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Sleeping)
	assert.False(t, *snap.Sleeping)

	// 每条命令一次写入即完成
	assert.Len(t, pd.commands(), 8)
}

func TestClient_SensorIDTargeting(t *testing.T) {
	c, pd := newTestClient(t, simDevice(t), Options{SensorID: "a1b2"})

	_, err := c.Query(testCtx(t))
	require.NoError(t, err)
	cmds := pd.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, uint16(0xa1b2), cmds[0].TargetID)
}

func TestClient_RetryExhausted(t *testing.T) {
	c, pd := newTestClient(t, nil, Options{MaxRetries: 3, RetryInterval: 5 * time.Millisecond})
	events, cancel := c.Subscribe(32)
	defer cancel()

	_, err := c.Query(testCtx(t))
	require.ErrorIs(t, err, outbound.ErrCommandExhausted)
	require.Eventually(t, func() bool { return len(pd.commands()) == 3 }, time.Second, 5*time.Millisecond)

	var rec *CommandRecord
	for rec == nil {
		select {
		case e := <-events:
			if e.Kind == EventCommandSettled {
				rec = e.Command
			}
		case <-time.After(time.Second):
			t.Fatal("未收到命令结束事件")
		}
	}
	assert.Equal(t, "query", rec.Name)
	assert.Equal(t, outbound.ResultExhausted, rec.Result)
	assert.Equal(t, 3, rec.Attempts)

	// 耗尽后队列继续处理下一条
	err = c.SetSleep(testCtx(t), true)
	require.ErrorIs(t, err, outbound.ErrCommandExhausted)
	require.Eventually(t, func() bool { return len(pd.commands()) == 6 }, time.Second, 5*time.Millisecond)
}

func TestClient_InvalidArguments(t *testing.T) {
	c, pd := newTestClient(t, simDevice(t), Options{})
	ctx := testCtx(t)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"未知上报模式", func() error { return c.SetReportingMode(ctx, "push") }, ErrInvalidMode},
		{"空上报模式", func() error { return c.SetReportingMode(ctx, "") }, ErrInvalidMode},
		{"周期为负", func() error { return c.SetWorkingPeriod(ctx, -1) }, ErrInvalidPeriod},
		{"周期超过30", func() error { return c.SetWorkingPeriod(ctx, 31) }, ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}

	require.NoError(t, c.SetWorkingPeriod(ctx, 30))
	require.NoError(t, c.SetWorkingPeriod(ctx, 0))
	// 非法参数不会产生任何写入
	assert.Len(t, pd.commands(), 2)
}

func TestNew_InvalidSensorID(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()
	defer dev.Close()

	for _, id := range []string{"xyz", "12345", "12", "zzzz"} {
		_, err := New(host, Options{SensorID: id}, nil, nil)
		assert.ErrorIs(t, err, sds011.ErrInvalidSensorID, id)
	}
}

func TestClient_Events(t *testing.T) {
	c, pd := newTestClient(t, nil, Options{})
	events, cancel := c.Subscribe(64)
	defer cancel()

	zero := sds011.EncodeReadingFrame(0, 0, 0x1234)
	good := sds011.EncodeReadingFrame(7.5, 8.1, 0x1234)
	unknown := sds011.EncodeFrame(0xC1, [6]byte{1, 2, 3, 4, 5, 6})
	corrupt := good
	corrupt[8] ^= 0xFF

	var stream []byte
	stream = append(stream, 0x00, 0x13)
	for _, f := range []sds011.Frame{zero, good, unknown, corrupt} {
		stream = append(stream, f.Bytes()...)
	}
	_, err := pd.conn.Write(stream)
	require.NoError(t, err)

	want := []EventKind{
		EventMessage,
		EventMessage, EventReading,
		EventMessage, EventMessageError,
		EventMessageError,
	}
	var got []Event
	for len(got) < len(want) {
		select {
		case e := <-events:
			if e.Kind != EventData {
				got = append(got, e)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("事件不足: %d/%d", len(got), len(want))
		}
	}
	kinds := make([]EventKind, len(got))
	for i, e := range got {
		kinds[i] = e.Kind
	}
	assert.Equal(t, want, kinds)

	assert.Equal(t, 7.5, got[2].Reading.PM25)
	assert.Equal(t, 8.1, got[2].Reading.PM10)
	assert.ErrorIs(t, got[4].Err, sds011.ErrUnknownSender)
	assert.Equal(t, unknown.Bytes(), got[4].Data)
	assert.ErrorIs(t, got[5].Err, sds011.ErrChecksumMismatch)
	assert.Equal(t, corrupt.Bytes(), got[5].Data)

	// 状态保留最后一次读数
	snap, err := c.Snapshot(testCtx(t))
	require.NoError(t, err)
	require.NotNil(t, snap.PM25)
	assert.Equal(t, 7.5, *snap.PM25)
}

func TestClient_Close(t *testing.T) {
	c, pd := newTestClient(t, nil, Options{RetryInterval: time.Second})
	events, cancel := c.Subscribe(16)
	defer cancel()

	errC := make(chan error, 1)
	go func() {
		_, err := c.Query(context.Background())
		errC <- err
	}()
	require.Eventually(t, func() bool { return len(pd.commands()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	select {
	case err := <-errC:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("排队中的命令未在关闭时结束")
	}
	assert.True(t, c.Closed())

	// 重复关闭无副作用
	assert.NoError(t, c.Close())

	_, err := c.Query(testCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Snapshot(testCtx(t))
	assert.ErrorIs(t, err, ErrClosed)

	// 订阅通道随关闭结束
	var closedRec *CommandRecord
	for e := range events {
		if e.Kind == EventCommandSettled {
			closedRec = e.Command
		}
	}
	require.NotNil(t, closedRec)
	assert.Equal(t, outbound.ResultClosed, closedRec.Result)
}

func TestClient_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, nil, Options{MaxRetries: 1000, RetryInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Query(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	n, err := c.QueueLen(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "放弃等待的命令仍在队列中")
}

func TestClient_Warmup(t *testing.T) {
	c, pd := newTestClient(t, simDevice(t), Options{Warmup: true})
	events, cancel := c.Subscribe(32)
	defer cancel()

	// 未 Start 前不发任何命令
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, pd.commands())

	c.Start()
	c.Start()

	var gotReading, gotSettled bool
	timeout := time.After(2 * time.Second)
	for !gotReading || !gotSettled {
		select {
		case e := <-events:
			switch e.Kind {
			case EventReading:
				gotReading = true
				assert.Equal(t, 12.3, e.Reading.PM25)
			case EventCommandSettled:
				gotSettled = true
				assert.Equal(t, "query", e.Command.Name)
				assert.Equal(t, outbound.ResultOK, e.Command.Result)
			}
		case <-timeout:
			t.Fatal("订阅者未收到预热查询的事件")
		}
	}

	cmds := pd.commands()
	require.Len(t, cmds, 1, "重复 Start 只预热一次")
	assert.Equal(t, sds011.CmdQuery, cmds[0].Cmd)
}

func TestClient_LateFulfilmentAfterCallerGaveUp(t *testing.T) {
	pd := &pipeDevice{dev: simDevice(t), delay: 80 * time.Millisecond}
	c, _ := startTestClient(t, pd, Options{RetryInterval: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r, err := c.Query(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, sds011.Reading{}, r)

	// 调用方放弃后命令仍会完成，结果只写入设备状态
	require.Eventually(t, func() bool {
		n, err := c.QueueLen(testCtx(t))
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
	snap, err := c.Snapshot(testCtx(t))
	require.NoError(t, err)
	require.NotNil(t, snap.PM25)
	assert.Equal(t, 12.3, *snap.PM25)

	r, err = c.Query(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 12.3, r.PM25)
}

// stallPort 写入一直阻塞到 Close，模拟卡死的串口服务器
type stallPort struct {
	writing   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	enterOnce sync.Once
}

func newStallPort() *stallPort {
	return &stallPort{writing: make(chan struct{}), closed: make(chan struct{})}
}

func (p *stallPort) Read([]byte) (int, error) {
	<-p.closed
	return 0, io.EOF
}

func (p *stallPort) Write([]byte) (int, error) {
	p.enterOnce.Do(func() { close(p.writing) })
	<-p.closed
	return 0, io.ErrClosedPipe
}

func (p *stallPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func TestClient_CloseWhileWriteStalled(t *testing.T) {
	port := newStallPort()
	c, err := New(port, Options{}, zap.NewNop(), nil)
	require.NoError(t, err)

	errC := make(chan error, 1)
	go func() {
		_, err := c.Query(context.Background())
		errC <- err
	}()
	select {
	case <-port.writing:
	case <-time.After(2 * time.Second):
		t.Fatal("命令未写出")
	}

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("写入卡住时 Close 未返回")
	}

	select {
	case err := <-errC:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("排队中的命令未以 ErrClosed 结束")
	}
}
