package outbound

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries 单条命令允许的最大执行次数
	DefaultMaxRetries = 10
	// DefaultRetryInterval 两次执行之间的间隔
	DefaultRetryInterval = 150 * time.Millisecond
)

// 命令结束结果（指标标签）
const (
	ResultOK        = "ok"
	ResultExhausted = "exhausted"
	ResultClosed    = "closed"
)

// Scheduler 单飞 FIFO 重试调度器
//
// 队首命令独占执行：prepare 一次，随后每个间隔 检查完成条件 -> 未完成则写出，
// 直到完成或超出重试次数。调度器本身不加锁也不睡眠，所有方法必须由同一串行
// 上下文调用；需要等待时通过 schedule 回调请求所有者在 Interval 后调用 Tick。
type Scheduler struct {
	MaxRetries int
	Interval   time.Duration

	queue      []*Command
	retries    int
	processing bool
	schedule   func(time.Duration)
	logger     *zap.Logger

	onAttempt func(c *Command)
	onSettled func(c *Command, result string)
}

// New 创建调度器；schedule 由所有者实现为“延迟后回到串行上下文调用 Tick”
func New(schedule func(time.Duration), logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		MaxRetries: DefaultMaxRetries,
		Interval:   DefaultRetryInterval,
		schedule:   schedule,
		logger:     logger,
	}
}

// SetMetricsCallbacks 设置指标回调
func (s *Scheduler) SetMetricsCallbacks(onAttempt func(*Command), onSettled func(*Command, string)) {
	s.onAttempt, s.onSettled = onAttempt, onSettled
}

// Len 队列长度（含正在执行的队首）
func (s *Scheduler) Len() int { return len(s.queue) }

// Processing 是否有命令在执行
func (s *Scheduler) Processing() bool { return s.processing }

// Enqueue 追加到队尾；空闲时立即开始处理
func (s *Scheduler) Enqueue(c *Command) {
	s.queue = append(s.queue, c)
	s.logger.Debug("command enqueued",
		zap.String("id", c.ID), zap.String("cmd", c.Name), zap.Int("queue", len(s.queue)))
	if !s.processing {
		s.process()
	}
}

// Tick 重试定时到期
func (s *Scheduler) Tick() {
	s.process()
}

// Clear 清空队列并返回被丢弃的命令（不调用其回调）
func (s *Scheduler) Clear() []*Command {
	dropped := s.queue
	s.queue = nil
	s.retries = 0
	return dropped
}

func (s *Scheduler) process() {
	for {
		if len(s.queue) == 0 {
			s.processing = false
			s.retries = 0
			return
		}
		s.processing = true
		cmd := s.queue[0]

		if s.retries == 0 {
			cmd.prepare()
		}

		s.retries++
		if s.retries > s.MaxRetries {
			s.pop()
			s.logger.Warn("command exhausted",
				zap.String("id", cmd.ID), zap.String("cmd", cmd.Name), zap.Int("attempts", cmd.attempts))
			s.settled(cmd, ResultExhausted)
			cmd.fail(ErrCommandExhausted)
			continue
		}

		if cmd.fulfilled() {
			s.pop()
			s.logger.Debug("command fulfilled",
				zap.String("id", cmd.ID), zap.String("cmd", cmd.Name), zap.Int("attempts", cmd.attempts))
			s.settled(cmd, ResultOK)
			cmd.succeed()
			continue
		}

		cmd.attempts++
		if s.onAttempt != nil {
			s.onAttempt(cmd)
		}
		if cmd.Execute != nil {
			if err := cmd.Execute(); err != nil {
				// 写失败同样消耗一次重试
				s.logger.Warn("command write failed",
					zap.String("id", cmd.ID), zap.String("cmd", cmd.Name), zap.Error(err))
			}
		}
		if s.schedule != nil {
			s.schedule(s.Interval)
		}
		return
	}
}

func (s *Scheduler) pop() {
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.retries = 0
}

func (s *Scheduler) settled(c *Command, result string) {
	if s.onSettled != nil {
		s.onSettled(c, result)
	}
}
