package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseChecker 读数历史库：连通性、连接池占用与最近一次写入时间
type DatabaseChecker struct {
	pool       *pgxpool.Pool
	staleAfter time.Duration
}

// NewDatabaseChecker staleAfter<=0 时不检查写入新鲜度
func NewDatabaseChecker(pool *pgxpool.Pool, staleAfter time.Duration) *DatabaseChecker {
	return &DatabaseChecker{pool: pool, staleAfter: staleAfter}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err), Latency: time.Since(start)}
	}

	st := c.pool.Stat()
	details := map[string]any{
		"acquired_conns": st.AcquiredConns(),
		"max_conns":      st.MaxConns(),
	}
	status, message := StatusHealthy, "ok"
	if st.MaxConns() > 0 && st.AcquiredConns() >= st.MaxConns() {
		status, message = StatusDegraded, "connection pool saturated"
	}

	var last *time.Time
	err := c.pool.QueryRow(ctx, `SELECT max(received_at) FROM sensor_readings`).Scan(&last)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("query readings: %v", err), Details: details, Latency: time.Since(start)}
	case last != nil:
		age := start.Sub(*last)
		details["last_reading_age"] = age.Round(time.Second).String()
		if c.staleAfter > 0 && age > c.staleAfter && status == StatusHealthy {
			status, message = StatusDegraded, "no readings stored recently"
		}
	}

	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
