package outbound

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCommandExhausted 超过重试次数仍未满足完成条件
	ErrCommandExhausted = errors.New("command failed: retry budget exhausted")
)

// Command 一条待执行的传感器命令
//
// 协议没有请求ID，命令是否完成只能通过 Fulfilled 观察共享状态判断。
// 所有回调都在调度器所有者的串行上下文中调用。
type Command struct {
	ID   string
	Name string

	// Prepare 首次调度时调用一次，将观察字段置为未观测
	Prepare func()
	// Execute 编码并写出下行命令
	Execute func() error
	// Fulfilled 完成条件
	Fulfilled func() bool

	OnSuccess func()
	OnFailure func(error)

	EnqueuedAt time.Time
	attempts   int
}

// NewCommand 创建命令并分配唯一ID
func NewCommand(name string) *Command {
	return &Command{ID: uuid.NewString(), Name: name, EnqueuedAt: time.Now()}
}

// Attempts 已执行（写出）的次数
func (c *Command) Attempts() int { return c.attempts }

func (c *Command) prepare() {
	if c.Prepare != nil {
		c.Prepare()
	}
}

func (c *Command) fulfilled() bool {
	return c.Fulfilled != nil && c.Fulfilled()
}

func (c *Command) succeed() {
	if c.OnSuccess != nil {
		c.OnSuccess()
	}
}

func (c *Command) fail(err error) {
	if c.OnFailure != nil {
		c.OnFailure(err)
	}
}
