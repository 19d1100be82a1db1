package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/sds011-server/internal/device"
)

// SensorProbe 传感器引擎的只读视图
type SensorProbe interface {
	Closed() bool
	Snapshot(ctx context.Context) (device.Snapshot, error)
	QueueLen(ctx context.Context) (int, error)
}

// SensorChecker 传感器连接检查：已关闭为不健康，长时间无合法帧为降级
type SensorChecker struct {
	probe      SensorProbe
	staleAfter time.Duration
	now        func() time.Time
}

// NewSensorChecker 创建检查器；staleAfter<=0 时不判断帧间隔
func NewSensorChecker(probe SensorProbe, staleAfter time.Duration) *SensorChecker {
	return &SensorChecker{probe: probe, staleAfter: staleAfter, now: time.Now}
}

func (c *SensorChecker) Name() string { return "sensor" }

func (c *SensorChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if c.probe.Closed() {
		return CheckResult{Status: StatusUnhealthy, Message: "connection closed", Latency: time.Since(start)}
	}
	snap, err := c.probe.Snapshot(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("snapshot failed: %v", err), Latency: time.Since(start)}
	}
	queued, _ := c.probe.QueueLen(ctx)

	details := map[string]any{"queue_len": queued}
	status, message := StatusHealthy, "ok"
	switch {
	case snap.LastFrameAt == nil:
		status, message = StatusDegraded, "no frame received yet"
	default:
		age := c.now().Sub(*snap.LastFrameAt)
		details["last_frame_age"] = age.Round(time.Millisecond).String()
		if c.staleAfter > 0 && age > c.staleAfter {
			status, message = StatusDegraded, "no frame within "+c.staleAfter.String()
		}
	}
	if snap.PM25 != nil && snap.PM10 != nil {
		details["pm2p5"] = *snap.PM25
		details["pm10"] = *snap.PM10
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
