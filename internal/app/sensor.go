package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
	"github.com/taoyao-code/sds011-server/internal/metrics"
	"github.com/taoyao-code/sds011-server/internal/sensor"
	"github.com/taoyao-code/sds011-server/internal/transport"
)

// NewSensorClient 打开传输层并启动协议引擎
func NewSensorClient(cfg *cfgpkg.Config, log *zap.Logger, appm *metrics.AppMetrics) (*sensor.Client, error) {
	port, err := transport.Open(cfg.Transport)
	if err != nil {
		log.Error("open transport failed", zap.String("kind", cfg.Transport.Kind), zap.Error(err))
		return nil, err
	}
	client, err := sensor.New(port, sensor.Options{
		SensorID:      cfg.Sensor.ID,
		MaxRetries:    cfg.Sensor.RetryMax,
		RetryInterval: cfg.Sensor.RetryInterval,
		Warmup:        cfg.Sensor.Warmup,
	}, log, appm)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	log.Info("sensor client started",
		zap.String("transport", cfg.Transport.Kind),
		zap.String("sensor_id", cfg.Sensor.ID))
	return client, nil
}
