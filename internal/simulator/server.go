package simulator

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// Server 以 TCP 暴露模拟设备，效果等同串口服务器后面挂一台 SDS011
type Server struct {
	addr    string
	dev     *Device
	garbage float64
	seed    uint64
	logger  *zap.Logger
	limiter *ConnectionLimiter

	ln    net.Listener
	wg    sync.WaitGroup
	stopC chan struct{}

	mu    sync.Mutex
	conns map[*hostConn]struct{}
}

// NewServer 创建模拟器服务
func NewServer(addr string, dev *Device, p Profile, maxConns int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		dev:     dev,
		garbage: p.GarbageRatio,
		seed:    p.Seed,
		logger:  logger.With(zap.String("component", "simulator")),
		limiter: NewConnectionLimiter(maxConns, 0),
		stopC:   make(chan struct{}),
		conns:   make(map[*hostConn]struct{}),
	}
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("simulator listening", zap.String("addr", ln.Addr().String()),
		zap.String("device_id", sensorIDString(s.dev.ID())))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if err := s.limiter.Acquire(context.Background()); err != nil {
				s.logger.Warn("host connection rejected", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
				_ = conn.Close()
				continue
			}
			hc := s.newHostConn(conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.limiter.Release()
				hc.run()
			}()
		}
	}()
	return nil
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown 关闭监听与所有连接并等待退出
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stopC:
	default:
		close(s.stopC)
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Lock()
	for hc := range s.conns {
		_ = hc.c.Close()
	}
	s.mu.Unlock()

	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// hostConn 单个主机连接：读循环解析命令，写循环串行回写，推送循环负责主动上报
type hostConn struct {
	s      *Server
	c      net.Conn
	writeC chan []byte
	doneC  chan struct{}
	rnd    *rand.Rand
}

func (s *Server) newHostConn(c net.Conn) *hostConn {
	hc := &hostConn{
		s:      s,
		c:      c,
		writeC: make(chan []byte, 64),
		doneC:  make(chan struct{}),
		rnd:    rand.New(rand.NewPCG(s.seed, uint64(time.Now().UnixNano()))),
	}
	s.mu.Lock()
	s.conns[hc] = struct{}{}
	s.mu.Unlock()
	return hc
}

// run 阻塞直至连接结束
func (hc *hostConn) run() {
	log := hc.s.logger.With(zap.String("remote", hc.c.RemoteAddr().String()))
	log.Info("host connected")
	defer func() {
		close(hc.doneC)
		_ = hc.c.Close()
		hc.s.mu.Lock()
		delete(hc.s.conns, hc)
		hc.s.mu.Unlock()
		log.Info("host disconnected")
	}()

	// 写循环
	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		for {
			select {
			case msg := <-hc.writeC:
				if _, err := hc.c.Write(msg); err != nil {
					_ = hc.c.Close()
					return
				}
			case <-hc.doneC:
				return
			}
		}
	}()

	go hc.pushLoop()

	// 读循环
	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := hc.c.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = hc.consume(buf, log)
		}
		if err != nil {
			break
		}
	}
}

// consume 从缓冲中切出19字节命令并应答，返回剩余字节
func (hc *hostConn) consume(buf []byte, log *zap.Logger) []byte {
	for {
		i := bytes.IndexByte(buf, sds011.FrameHead)
		if i < 0 {
			return buf[:0]
		}
		buf = buf[i:]
		if len(buf) < sds011.CommandLen {
			return buf
		}
		cmd, err := sds011.ParseCommand(buf[:sds011.CommandLen])
		if err != nil {
			log.Debug("bad host command", zap.Binary("bytes", buf[:sds011.CommandLen]), zap.Error(err))
			buf = buf[1:]
			continue
		}
		buf = buf[sds011.CommandLen:]
		log.Debug("host command", zap.String("cmd", sds011.CommandName(cmd.Cmd)), zap.Uint8("mode", cmd.Mode), zap.Uint8("arg", cmd.Arg))
		for _, f := range hc.s.dev.Handle(cmd) {
			hc.send(f)
		}
	}
}

func (hc *hostConn) pushLoop() {
	t := time.NewTimer(hc.s.dev.PushInterval())
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if f, ok := hc.s.dev.Push(); ok {
				hc.send(f)
			}
			t.Reset(hc.s.dev.PushInterval())
		case <-hc.doneC:
			return
		}
	}
}

// send 按概率在帧前插入噪声字节（不含帧头），用于验证主机侧重同步
func (hc *hostConn) send(f sds011.Frame) {
	out := f.Bytes()
	if hc.s.garbage > 0 && hc.rnd.Float64() < hc.s.garbage {
		junk := make([]byte, 1+hc.rnd.IntN(4))
		for i := range junk {
			b := byte(hc.rnd.IntN(256))
			if b == sds011.FrameHead {
				b = 0x00
			}
			junk[i] = b
		}
		out = append(junk, out...)
	}
	select {
	case hc.writeC <- out:
	case <-hc.doneC:
	}
}

func sensorIDString(id uint16) string { return fmt.Sprintf("%04x", id) }
