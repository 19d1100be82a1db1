package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/api/middleware"
)

// RegisterSensorRoutes 注册传感器路由；写操作受 API Key 保护
func RegisterSensorRoutes(r gin.IRouter, h *SensorHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := r.Group("/api/sensor")
	g.GET("/state", h.GetState)
	g.GET("/mode", h.GetMode)
	g.GET("/firmware", h.GetFirmware)
	g.GET("/period", h.GetPeriod)
	if h.readings != nil {
		g.GET("/readings", h.ListReadings)
	}
	if h.commands != nil {
		g.GET("/commands", h.ListCommands)
	}
	if h.latest != nil {
		g.GET("/latest", h.GetLatest)
	}

	w := g.Group("")
	if authCfg.Enabled {
		w.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("sensor api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("sensor api authentication disabled - only for development!")
	}
	w.POST("/query", h.Query)
	w.PUT("/mode", h.SetMode)
	w.PUT("/sleep", h.SetSleep)
	w.PUT("/period", h.SetPeriod)
}
