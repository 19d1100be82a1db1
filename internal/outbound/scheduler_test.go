package outbound

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer 记录调度请求，测试中手动驱动 Tick
type fakeTimer struct {
	pending int
	delays  []time.Duration
}

func (f *fakeTimer) schedule(d time.Duration) {
	f.pending++
	f.delays = append(f.delays, d)
}

func (f *fakeTimer) fire(s *Scheduler) bool {
	if f.pending == 0 {
		return false
	}
	f.pending--
	s.Tick()
	return true
}

type probe struct {
	log       *[]string
	name      string
	done      bool
	prepares  int
	executes  int
	succeeded bool
	failed    error
}

func newProbe(name string, log *[]string) *probe { return &probe{name: name, log: log} }

func (p *probe) command() *Command {
	c := NewCommand(p.name)
	c.Prepare = func() {
		p.prepares++
		*p.log = append(*p.log, p.name+":prepare")
	}
	c.Execute = func() error {
		p.executes++
		*p.log = append(*p.log, p.name+":execute")
		return nil
	}
	c.Fulfilled = func() bool { return p.done }
	c.OnSuccess = func() {
		p.succeeded = true
		*p.log = append(*p.log, p.name+":ok")
	}
	c.OnFailure = func(err error) {
		p.failed = err
		*p.log = append(*p.log, p.name+":fail")
	}
	return c
}

func TestScheduler_ExhaustsAfterExactlyMaxRetries(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	p := newProbe("a", &log)

	s.Enqueue(p.command())
	for ft.fire(s) {
	}

	assert.Equal(t, DefaultMaxRetries, p.executes)
	assert.Equal(t, 1, p.prepares)
	assert.ErrorIs(t, p.failed, ErrCommandExhausted)
	assert.False(t, p.succeeded)
	assert.False(t, s.Processing())
	assert.Equal(t, 0, s.Len())
	for _, d := range ft.delays {
		assert.Equal(t, DefaultRetryInterval, d)
	}
}

func TestScheduler_CustomBudget(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	s.MaxRetries = 3
	p := newProbe("a", &log)

	s.Enqueue(p.command())
	for ft.fire(s) {
	}
	assert.Equal(t, 3, p.executes)
	assert.Error(t, p.failed)
}

func TestScheduler_FulfilledAfterResponse(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	p := newProbe("a", &log)

	s.Enqueue(p.command())
	require.Equal(t, 1, p.executes, "首次检查在写出前必然未完成")

	// 设备应答被解码
	p.done = true
	require.True(t, ft.fire(s))

	assert.True(t, p.succeeded)
	assert.Equal(t, 1, p.executes)
	assert.Nil(t, p.failed)
	assert.Equal(t, []string{"a:prepare", "a:execute", "a:ok"}, log)
	assert.False(t, s.Processing())
}

func TestScheduler_FIFO(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	a := newProbe("a", &log)
	b := newProbe("b", &log)

	s.Enqueue(a.command())
	s.Enqueue(b.command())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 0, b.prepares, "队首未结束前不处理后续命令")

	for a.failed == nil {
		assert.Equal(t, 0, b.executes)
		require.True(t, ft.fire(s))
	}
	assert.Equal(t, DefaultMaxRetries, a.executes)

	// A 失败后同一个 tick 内立即开始 B
	assert.Equal(t, 1, b.prepares)
	assert.Equal(t, 1, b.executes)

	idxFail := indexOf(log, "a:fail")
	idxB := indexOf(log, "b:execute")
	require.True(t, idxFail >= 0 && idxB >= 0)
	assert.Less(t, idxFail, idxB)
	assert.Equal(t, "a:execute", log[idxFail-1])
}

func TestScheduler_AlreadyFulfilledSkipsWrite(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	p := newProbe("a", &log)
	p.done = true

	s.Enqueue(p.command())
	assert.True(t, p.succeeded)
	assert.Equal(t, 0, p.executes)
	assert.Equal(t, 0, ft.pending)
}

func TestScheduler_EnqueueFromCallback(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	a := newProbe("a", &log)
	b := newProbe("b", &log)
	a.done = true

	ca := a.command()
	ca.OnSuccess = func() {
		a.succeeded = true
		s.Enqueue(b.command())
	}
	s.Enqueue(ca)

	assert.True(t, a.succeeded)
	assert.Equal(t, 1, b.executes)
	assert.Equal(t, 1, ft.pending)
}

func TestScheduler_ClearDropsWithoutCallbacks(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	a := newProbe("a", &log)
	b := newProbe("b", &log)

	s.Enqueue(a.command())
	s.Enqueue(b.command())

	dropped := s.Clear()
	require.Len(t, dropped, 2)
	assert.Equal(t, "a", dropped[0].Name)
	assert.Equal(t, 1, dropped[0].Attempts())

	// 残留的定时到期后回到空闲
	for ft.fire(s) {
	}
	assert.False(t, s.Processing())
	assert.Nil(t, a.failed)
	assert.False(t, a.succeeded)
	assert.Nil(t, b.failed)
}

func TestScheduler_MetricsCallbacks(t *testing.T) {
	var log []string
	ft := &fakeTimer{}
	s := New(ft.schedule, nil)
	s.MaxRetries = 2

	attempts := 0
	results := map[string]int{}
	s.SetMetricsCallbacks(
		func(*Command) { attempts++ },
		func(_ *Command, r string) { results[r]++ },
	)

	s.Enqueue(newProbe("a", &log).command())
	for ft.fire(s) {
	}
	ok := newProbe("b", &log)
	ok.done = true
	s.Enqueue(ok.command())

	assert.Equal(t, 2, attempts)
	assert.Equal(t, map[string]int{ResultExhausted: 1, ResultOK: 1}, results)
}

func TestNewCommand_UniqueIDs(t *testing.T) {
	a := NewCommand("query")
	b := NewCommand("query")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
