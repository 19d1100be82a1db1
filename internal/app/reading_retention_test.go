package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePurger struct {
	before time.Time
	n      int64
	err    error
}

func (f *fakePurger) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.n, f.err
}

func TestReadingRetention_Clean(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		n    int64
		err  error
		want int64
	}{
		{"清理若干条", 3, nil, 3},
		{"无过期数据", 0, nil, 0},
		{"删除失败不累计", 5, errors.New("db down"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePurger{n: tt.n, err: tt.err}
			c := NewReadingRetention(p, 24*time.Hour, zap.NewNop())
			c.now = func() time.Time { return now }

			c.clean(context.Background())
			assert.Equal(t, now.Add(-24*time.Hour), p.before)
			assert.Equal(t, tt.want, c.Stats()["total_cleaned"])
		})
	}
}

func TestReadingRetention_StartStops(t *testing.T) {
	p := &fakePurger{n: 1}
	c := NewReadingRetention(p, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention did not stop")
	}
}
