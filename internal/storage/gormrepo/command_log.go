package gormrepo

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taoyao-code/sds011-server/internal/storage/models"
)

// Open 使用 postgres 驱动打开 GORM 连接，日志写入 zap
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newZapLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("open command log db: %w", err)
	}
	return db, nil
}

// CommandLogRepo 命令审计日志
type CommandLogRepo struct {
	db *gorm.DB
}

// NewCommandLogRepo 返回使用给定 *gorm.DB 的仓库
func NewCommandLogRepo(db *gorm.DB) *CommandLogRepo {
	return &CommandLogRepo{db: db}
}

// AutoMigrate 创建/更新 sensor_command_log 表
func (r *CommandLogRepo) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.CommandLog{})
}

// Record 写入一条命令记录；相同 command_id 重复写入时忽略
func (r *CommandLogRepo) Record(ctx context.Context, rec *models.CommandLog) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "command_id"}}, DoNothing: true}).
		Create(rec).Error
}

// Recent 最近的命令记录，可按结果过滤
func (r *CommandLogRepo) Recent(ctx context.Context, result string, limit int) ([]models.CommandLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if result != "" {
		q = q.Where("result = ?", result)
	}
	var rows []models.CommandLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Ping 数据库探活
func (r *CommandLogRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接
func (r *CommandLogRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
