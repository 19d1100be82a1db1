package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 传感器协议引擎指标
type AppMetrics struct {
	BytesReceived   prometheus.Counter
	FramesTotal     *prometheus.CounterVec // labels: result=ok|invalid|undecodable
	ReadingsTotal   prometheus.Counter
	PM25            prometheus.Gauge
	PM10            prometheus.Gauge
	CommandsTotal   *prometheus.CounterVec // labels: cmd, result=ok|exhausted|closed
	CommandAttempts *prometheus.CounterVec // labels: cmd
	QueueDepth      prometheus.Gauge
	WriteErrors     prometheus.Counter
	WriteThrottled  prometheus.Counter
	SinkErrors      *prometheus.CounterVec // labels: sink
	EventsDropped   prometheus.Counter
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sds011_bytes_received_total",
			Help: "Total bytes received from the sensor transport.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sds011_frames_total",
			Help: "Candidate frames by processing result.",
		}, []string{"result"}),
		ReadingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sds011_readings_total",
			Help: "Sensible readings emitted.",
		}),
		PM25: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sds011_pm2p5_ugm3",
			Help: "Last PM2.5 reading in µg/m³.",
		}),
		PM10: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sds011_pm10_ugm3",
			Help: "Last PM10 reading in µg/m³.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sds011_commands_total",
			Help: "Settled commands by name and result.",
		}, []string{"cmd", "result"}),
		CommandAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sds011_command_attempts_total",
			Help: "Command writes by name, retries included.",
		}, []string{"cmd"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sds011_command_queue_depth",
			Help: "Commands waiting in the scheduler queue.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sds011_write_errors_total",
			Help: "Failed transport writes.",
		}),
		WriteThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sds011_write_throttled_total",
			Help: "Transport writes rejected by the rate limiter.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sds011_sink_errors_total",
			Help: "Reading/command sink failures by sink.",
		}, []string{"sink"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sds011_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		}),
	}
	reg.MustRegister(m.BytesReceived, m.FramesTotal, m.ReadingsTotal, m.PM25, m.PM10,
		m.CommandsTotal, m.CommandAttempts, m.QueueDepth, m.WriteErrors, m.WriteThrottled, m.SinkErrors, m.EventsDropped)
	return m
}
