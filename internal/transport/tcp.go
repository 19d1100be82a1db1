package transport

import (
	"fmt"
	"net"
	"time"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
)

// DialTCP 连接串口服务器（ser2net 等），字节流透传
func DialTCP(cfg cfgpkg.TCPConfig) (Port, error) {
	to := cfg.DialTimeout
	if to <= 0 {
		to = 5 * time.Second
	}
	c, err := net.DialTimeout("tcp", cfg.Addr, to)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return c, nil
}
