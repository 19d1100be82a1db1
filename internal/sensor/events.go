package sensor

import (
	"sync"
	"time"

	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
)

// EventKind 事件类型
type EventKind string

const (
	EventData           EventKind = "serial_data"   // 原始字节透传
	EventMessage        EventKind = "message"       // 通过校验的帧
	EventMessageError   EventKind = "message_error" // 校验或解码失败，Data 为出错字节
	EventReading        EventKind = "reading"       // 两项读数均大于0
	EventTransportError EventKind = "error"         // 传输层错误透传
	EventCommandSettled EventKind = "command"       // 命令结束（成功/耗尽/关闭）
)

// CommandRecord 已结束命令的摘要
type CommandRecord struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Result     string        `json:"result"`
	Attempts   int           `json:"attempts"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
	Duration   time.Duration `json:"duration"`
}

// Event 引擎对外事件
type Event struct {
	Kind    EventKind
	At      time.Time
	Data    []byte
	Reading sds011.Reading
	// DeviceID 帧内设备ID（Message/Reading 事件）
	DeviceID uint16
	Err      error
	Command  *CommandRecord
}

type subscriber struct {
	ch chan Event
}

// eventBus 将引擎事件扇出给订阅者，慢消费者直接丢弃，不阻塞事件循环
type eventBus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	onDrop func()
}

func newEventBus(onDrop func()) *eventBus {
	return &eventBus{subs: make(map[*subscriber]struct{}), onDrop: onDrop}
}

func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[s]; ok {
				delete(b.subs, s)
				close(s.ch)
			}
		})
	}
	return s.ch, unsub
}

func (b *eventBus) publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// close 关闭所有订阅通道
func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}
