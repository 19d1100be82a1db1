package health

import "sync/atomic"

// Readiness 启动阶段的就绪标记（传感器连接、落地组件）
type Readiness struct {
	sensorReady atomic.Bool
	sinksReady  atomic.Bool
}

func NewReadiness() *Readiness { return &Readiness{} }

func (r *Readiness) SetSensorReady(v bool) { r.sensorReady.Store(v) }
func (r *Readiness) SetSinksReady(v bool)  { r.sinksReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.sensorReady.Load() && r.sinksReady.Load()
}
