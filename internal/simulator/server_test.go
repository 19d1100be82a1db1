package simulator

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

func startServer(t *testing.T, p Profile, maxConns int) *Server {
	t.Helper()
	d, err := NewDevice(p)
	require.NoError(t, err)
	s := NewServer("127.0.0.1:0", d, p, maxConns, zap.NewNop())
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestServer_QueryRoundTrip(t *testing.T) {
	p := DefaultProfile()
	p.Jitter = 0
	s := startServer(t, p, 1)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	cmd, err := sds011.QueryCommand("")
	require.NoError(t, err)
	// 命令前的噪声应被跳过
	_, err = conn.Write(append([]byte{0x01, 0x02}, cmd...))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, sds011.FrameLen)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)

	f, err := sds011.ParseFrame(buf)
	require.NoError(t, err)
	r := sds011.DecodeReading(f)
	assert.Equal(t, 12.3, r.PM25)
	assert.Equal(t, 20.1, r.PM10)
}

func TestServer_ActivePush(t *testing.T) {
	p := DefaultProfile()
	p.Mode = "active"
	p.Interval = 20 * time.Millisecond
	s := startServer(t, p, 1)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	d := sds011.NewStreamDecoder()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frames int
	buf := make([]byte, 64)
	for frames < 3 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		for _, r := range d.Feed(buf[:n]) {
			require.Nil(t, r.Err)
			frames++
		}
	}
}

func TestServer_GarbageStillDecodes(t *testing.T) {
	p := DefaultProfile()
	p.Mode = "active"
	p.Interval = 10 * time.Millisecond
	p.GarbageRatio = 1
	s := startServer(t, p, 1)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	d := sds011.NewStreamDecoder()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var valid int
	buf := make([]byte, 64)
	for valid < 5 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		for _, r := range d.Feed(buf[:n]) {
			if r.Err == nil {
				valid++
			}
		}
	}
}

func TestServer_ConnectionLimit(t *testing.T) {
	s := startServer(t, DefaultProfile(), 1)

	first, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool { return s.limiter.Current() == 1 }, time.Second, 5*time.Millisecond)

	second, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = second.Read(make([]byte, 1))
	assert.Error(t, err, "超出上限的连接应被关闭")
	assert.Equal(t, int64(1), s.limiter.RejectedCount())
}
