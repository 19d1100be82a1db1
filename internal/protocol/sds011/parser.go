package sds011

import "bytes"

// Result 一个候选帧的处理结果：Err 为 nil 时 Frame 有效
type Result struct {
	Frame Frame
	Err   *InvalidFrameError
}

// StreamDecoder 从任意分片的字节流中切出10字节帧，遇到脏数据自动重同步
// 非并发安全，由调用方串行调用
type StreamDecoder struct{ buf []byte }

func NewStreamDecoder() *StreamDecoder { return &StreamDecoder{} }

// Buffered 当前缓存的未消费字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Reset 丢弃缓存
func (d *StreamDecoder) Reset() { d.buf = nil }

// Feed 追加数据并切出所有可用候选帧，缓存不足10字节时返回
func (d *StreamDecoder) Feed(p []byte) []Result {
	d.buf = append(d.buf, p...)
	var out []Result
	for len(d.buf) >= FrameLen {
		start := bytes.IndexByte(d.buf, FrameHead)
		if start == -1 {
			// 无帧头，整段丢弃
			d.trim(len(d.buf))
			continue
		}
		if start > 0 {
			d.trim(start)
			continue
		}
		end := -1
		if i := bytes.IndexByte(d.buf[FrameLen-1:], FrameTail); i >= 0 {
			end = i + FrameLen - 1
		}
		if end == -1 {
			// 窗口内无帧尾，丢弃一个最小重同步单元
			d.trim(FrameLen)
			continue
		}
		if end-start != FrameLen-1 {
			d.trim(start + FrameLen)
			continue
		}
		raw := append([]byte(nil), d.buf[start:end+1]...)
		d.trim(start + FrameLen)
		if err := VerifyFrame(raw); err != nil {
			out = append(out, Result{Err: &InvalidFrameError{Bytes: raw, Reason: err}})
			continue
		}
		var f Frame
		copy(f[:], raw)
		out = append(out, Result{Frame: f})
	}
	d.compact()
	return out
}

func (d *StreamDecoder) trim(n int) {
	if n >= len(d.buf) {
		d.buf = d.buf[:0]
		return
	}
	d.buf = d.buf[n:]
}

// compact 前端切走过多时复制到新底层数组，避免长期持有大缓冲
func (d *StreamDecoder) compact() {
	if cap(d.buf) > 4*FrameLen && len(d.buf) < cap(d.buf)/4 {
		d.buf = append([]byte(nil), d.buf...)
	}
}
