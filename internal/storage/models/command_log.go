package models

import "time"

// CommandLog 映射 sensor_command_log 表，每条已结束的传感器命令一行
//
// 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt
type CommandLog struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 命令唯一ID（uuid）
	CommandID string `gorm:"column:command_id;type:varchar(36);not null;uniqueIndex"`
	SensorID  string `gorm:"column:sensor_id;type:varchar(8);not null;index"`
	Name      string `gorm:"column:name;type:varchar(32);not null"`
	// ok | exhausted | closed
	Result     string    `gorm:"column:result;type:varchar(16);not null;index"`
	Attempts   int       `gorm:"column:attempts;not null"`
	DurationMs int64     `gorm:"column:duration_ms;not null"`
	EnqueuedAt time.Time `gorm:"column:enqueued_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CommandLog) TableName() string { return "sensor_command_log" }
