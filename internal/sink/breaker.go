package sink

import (
	"errors"
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常写入
	BreakerOpen                         // 跳过写入
	BreakerHalfOpen                     // 放行少量写入试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen sink 熔断中，本次写入被跳过
var ErrBreakerOpen = errors.New("sink circuit breaker is open")

// Breaker 单个 sink 的熔断器：连续失败达到阈值后暂停写入，冷却后半开试探
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failureCount int
	successCount int
	lastFailTime time.Time
	tripCount    int64

	threshold   int
	cooldown    time.Duration
	halfOpenMax int
	now         func() time.Time

	onStateChange func(from, to BreakerState)
}

// NewBreaker 创建熔断器
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		state:       BreakerClosed,
		threshold:   threshold,
		cooldown:    cooldown,
		halfOpenMax: 2,
		now:         time.Now,
	}
}

// Call 执行 fn，熔断期间直接返回 ErrBreakerOpen
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.lastFailTime) >= b.cooldown {
			b.transitionTo(BreakerHalfOpen)
			b.failureCount = 0
			b.successCount = 0
			return nil
		}
		return ErrBreakerOpen
	case BreakerHalfOpen:
		if b.successCount+b.failureCount >= b.halfOpenMax {
			return ErrBreakerOpen
		}
		return nil
	default:
		return ErrBreakerOpen
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailTime = b.now()
		switch b.state {
		case BreakerClosed:
			if b.failureCount >= b.threshold {
				b.transitionTo(BreakerOpen)
				b.tripCount++
			}
		case BreakerHalfOpen:
			b.transitionTo(BreakerOpen)
			b.tripCount++
		}
		return
	}

	b.successCount++
	switch b.state {
	case BreakerHalfOpen:
		if b.successCount >= b.halfOpenMax {
			b.transitionTo(BreakerClosed)
			b.failureCount = 0
			b.successCount = 0
		}
	case BreakerClosed:
		// 只统计连续失败
		b.failureCount = 0
	}
}

// transitionTo 调用方持有锁
func (b *Breaker) transitionTo(s BreakerState) {
	if b.state == s {
		return
	}
	from := b.state
	b.state = s
	if b.onStateChange != nil {
		b.onStateChange(from, s)
	}
}

// State 当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// TripCount 累计熔断次数
func (b *Breaker) TripCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripCount
}
