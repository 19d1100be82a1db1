package transport

import (
	"errors"
	"fmt"
	"io"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
)

// Port 有序、可能任意分片的字节通道
type Port interface {
	io.ReadWriteCloser
}

var (
	// ErrWriteThrottled 下行写入被限速拒绝
	ErrWriteThrottled = errors.New("write throttled")
)

// Open 按配置打开传输层，并套上下行限速
func Open(cfg cfgpkg.TransportConfig) (Port, error) {
	var (
		p   Port
		err error
	)
	switch cfg.Kind {
	case "serial":
		p, err = OpenSerial(cfg.Serial)
	case "tcp":
		p, err = DialTCP(cfg.TCP)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	if cfg.WriteRatePerSec > 0 {
		p = Throttle(p, NewRateLimiter(cfg.WriteRatePerSec, cfg.WriteBurst))
	}
	return p, nil
}

// ThrottledPort 写入前经过令牌桶，超速直接拒绝而不阻塞调用方
type ThrottledPort struct {
	Port
	limiter *RateLimiter
}

// Throttle 为 Port 加上写入限速
func Throttle(p Port, l *RateLimiter) *ThrottledPort {
	return &ThrottledPort{Port: p, limiter: l}
}

func (t *ThrottledPort) Write(b []byte) (int, error) {
	if !t.limiter.Allow() {
		return 0, ErrWriteThrottled
	}
	return t.Port.Write(b)
}
