package transport

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
)

type bufPort struct {
	bytes.Buffer
	closed bool
}

func (b *bufPort) Close() error {
	b.closed = true
	return nil
}

func TestRateLimiter_Burst(t *testing.T) {
	l := NewRateLimiter(1, 3)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())


	// 桶按速率补充
	l = NewRateLimiter(100, 1)
	require.True(t, l.Allow())
	require.False(t, l.Allow())
	assert.Eventually(t, l.Allow, time.Second, 5*time.Millisecond)
}

func TestRateLimiter_Defaults(t *testing.T) {
	l := NewRateLimiter(0, 0)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "默认突发容量为1")
}

func TestThrottledPort(t *testing.T) {
	bp := &bufPort{}
	p := Throttle(bp, NewRateLimiter(1, 1))

	n, err := p.Write([]byte{0xAA})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = p.Write([]byte{0xAB})
	assert.ErrorIs(t, err, ErrWriteThrottled)
	assert.Equal(t, []byte{0xAA}, bp.Bytes())

	require.NoError(t, p.Close())
	assert.True(t, bp.closed)
}

func TestOpen_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 4)
		_, _ = io.ReadFull(c, buf)
		got <- buf
	}()

	p, err := Open(cfgpkg.TransportConfig{
		Kind:            "tcp",
		TCP:             cfgpkg.TCPConfig{Addr: ln.Addr().String(), DialTimeout: time.Second},
		WriteRatePerSec: 10,
		WriteBurst:      2,
	})
	require.NoError(t, err)
	defer p.Close()

	_, isThrottled := p.(*ThrottledPort)
	assert.True(t, isThrottled)

	_, err = p.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	select {
	case b := <-got:
		assert.Equal(t, []byte{1, 2, 3, 4}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(cfgpkg.TransportConfig{Kind: "usb"})
	assert.Error(t, err)
}
