package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/sds011-server/internal/device"
	"github.com/taoyao-code/sds011-server/internal/outbound"
	"github.com/taoyao-code/sds011-server/internal/protocol/sds011"
	"github.com/taoyao-code/sds011-server/internal/sensor"
	"github.com/taoyao-code/sds011-server/internal/storage/models"
	"github.com/taoyao-code/sds011-server/internal/storage/pg"
	redisstorage "github.com/taoyao-code/sds011-server/internal/storage/redis"
)

// SensorService 传感器命令目录（*sensor.Client 实现）
type SensorService interface {
	Query(ctx context.Context) (sds011.Reading, error)
	SetReportingMode(ctx context.Context, mode sds011.ReportingMode) error
	ReportingMode(ctx context.Context) (sds011.ReportingMode, error)
	SetSleep(ctx context.Context, sleep bool) error
	FirmwareVersion(ctx context.Context) (string, error)
	SetWorkingPeriod(ctx context.Context, minutes int) error
	WorkingPeriod(ctx context.Context) (int, error)
	Snapshot(ctx context.Context) (device.Snapshot, error)
}

// ReadingHistory 读数历史查询
type ReadingHistory interface {
	Recent(ctx context.Context, sensorID string, limit int) ([]pg.Reading, error)
}

// CommandHistory 命令审计查询
type CommandHistory interface {
	Recent(ctx context.Context, result string, limit int) ([]models.CommandLog, error)
}

// LatestReading Redis 缓存的最新读数
type LatestReading interface {
	Latest(ctx context.Context) (*redisstorage.ReadingPayload, error)
}

// SensorHandler 传感器API处理器
type SensorHandler struct {
	svc      SensorService
	timeout  time.Duration
	logger   *zap.Logger
	readings ReadingHistory
	commands CommandHistory
	latest   LatestReading
}

// NewSensorHandler 创建处理器；timeout 为单次命令等待上限
func NewSensorHandler(svc SensorService, timeout time.Duration, logger *zap.Logger) *SensorHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensorHandler{svc: svc, timeout: timeout, logger: logger}
}

// WithReadingHistory 启用读数历史接口
func (h *SensorHandler) WithReadingHistory(r ReadingHistory) *SensorHandler {
	h.readings = r
	return h
}

// WithCommandHistory 启用命令审计接口
func (h *SensorHandler) WithCommandHistory(c CommandHistory) *SensorHandler {
	h.commands = c
	return h
}

// WithLatestReading 启用缓存读数接口
func (h *SensorHandler) WithLatestReading(l LatestReading) *SensorHandler {
	h.latest = l
	return h
}

func (h *SensorHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// GetState 查询设备状态快照
// @Summary 设备状态快照
// @Description 返回最近一次观测到的读数与配置，未观测字段为 null
// @Tags 传感器
// @Produce json
// @Success 200 {object} device.Snapshot
// @Router /api/sensor/state [get]
func (h *SensorHandler) GetState(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	snap, err := h.svc.Snapshot(ctx)
	if err != nil {
		h.fail(c, "state", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Query 请求一次读数
// @Summary 查询读数
// @Tags 传感器
// @Produce json
// @Success 200 {object} sds011.Reading
// @Failure 504 {object} map[string]interface{} "重试耗尽或超时"
// @Router /api/sensor/query [post]
func (h *SensorHandler) Query(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.svc.Query(ctx)
	if err != nil {
		h.fail(c, "query", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetMode 读取上报模式
// @Summary 读取上报模式
// @Tags 传感器
// @Produce json
// @Router /api/sensor/mode [get]
func (h *SensorHandler) GetMode(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	mode, err := h.svc.ReportingMode(ctx)
	if err != nil {
		h.fail(c, "get_mode", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

type setModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SetMode 设置上报模式
// @Summary 设置上报模式
// @Tags 传感器
// @Accept json
// @Produce json
// @Param body body setModeRequest true "active | query"
// @Router /api/sensor/mode [put]
func (h *SensorHandler) SetMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.SetReportingMode(ctx, sds011.ReportingMode(req.Mode)); err != nil {
		h.fail(c, "set_mode", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

type setSleepRequest struct {
	Sleep *bool `json:"sleep" binding:"required"`
}

// SetSleep 休眠或唤醒
// @Summary 休眠/唤醒
// @Tags 传感器
// @Accept json
// @Produce json
// @Param body body setSleepRequest true "sleep=true 休眠"
// @Router /api/sensor/sleep [put]
func (h *SensorHandler) SetSleep(c *gin.Context) {
	var req setSleepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.SetSleep(ctx, *req.Sleep); err != nil {
		h.fail(c, "set_sleep", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isSleeping": *req.Sleep})
}

// GetFirmware 读取固件版本
// @Summary 固件版本
// @Tags 传感器
// @Produce json
// @Router /api/sensor/firmware [get]
func (h *SensorHandler) GetFirmware(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.svc.FirmwareVersion(ctx)
	if err != nil {
		h.fail(c, "firmware", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"firmware": v})
}

// GetPeriod 读取工作周期
// @Summary 读取工作周期
// @Tags 传感器
// @Produce json
// @Router /api/sensor/period [get]
func (h *SensorHandler) GetPeriod(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	minutes, err := h.svc.WorkingPeriod(ctx)
	if err != nil {
		h.fail(c, "get_period", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workingPeriod": minutes})
}

type setPeriodRequest struct {
	Minutes *int `json:"minutes" binding:"required"`
}

// SetPeriod 设置工作周期
// @Summary 设置工作周期
// @Description 0 表示连续工作，1-30 表示每 N 分钟工作一次
// @Tags 传感器
// @Accept json
// @Produce json
// @Param body body setPeriodRequest true "分钟"
// @Router /api/sensor/period [put]
func (h *SensorHandler) SetPeriod(c *gin.Context) {
	var req setPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.SetWorkingPeriod(ctx, *req.Minutes); err != nil {
		h.fail(c, "set_period", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workingPeriod": *req.Minutes})
}

// ListReadings 读数历史
// @Summary 读数历史
// @Tags 传感器
// @Produce json
// @Param sensor_id query string false "传感器ID"
// @Param limit query int false "条数(默认100)"
// @Router /api/sensor/readings [get]
func (h *SensorHandler) ListReadings(c *gin.Context) {
	list, err := h.readings.Recent(c.Request.Context(), c.Query("sensor_id"), queryLimit(c, 100))
	if err != nil {
		h.fail(c, "readings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": list})
}

// ListCommands 命令审计
// @Summary 命令审计记录
// @Tags 传感器
// @Produce json
// @Param result query string false "ok | exhausted | closed"
// @Param limit query int false "条数(默认50)"
// @Router /api/sensor/commands [get]
func (h *SensorHandler) ListCommands(c *gin.Context) {
	list, err := h.commands.Recent(c.Request.Context(), c.Query("result"), queryLimit(c, 50))
	if err != nil {
		h.fail(c, "commands", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": list})
}

// GetLatest 缓存的最新读数
// @Summary 最新读数（Redis 缓存）
// @Tags 传感器
// @Produce json
// @Router /api/sensor/latest [get]
func (h *SensorHandler) GetLatest(c *gin.Context) {
	r, err := h.latest.Latest(c.Request.Context())
	if err != nil {
		h.fail(c, "latest", err)
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no reading cached"})
		return
	}
	c.JSON(http.StatusOK, r)
}

// fail 按错误类型映射 HTTP 状态码
func (h *SensorHandler) fail(c *gin.Context, op string, err error) {
	code, kind := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Warn("sensor api failed", zap.String("op", op), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": kind, "message": err.Error()})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sensor.ErrInvalidMode), errors.Is(err, sensor.ErrInvalidPeriod),
		errors.Is(err, sds011.ErrInvalidSensorID):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, sensor.ErrClosed):
		return http.StatusServiceUnavailable, "sensor_closed"
	case errors.Is(err, outbound.ErrCommandExhausted):
		return http.StatusGatewayTimeout, "no_response"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
