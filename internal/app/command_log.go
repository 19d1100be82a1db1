package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
	"github.com/taoyao-code/sds011-server/internal/storage/gormrepo"
)

// NewCommandLogRepo 打开命令审计库；未启用时返回 nil
func NewCommandLogRepo(ctx context.Context, cfg cfgpkg.CommandLogConfig, log *zap.Logger) (*gormrepo.CommandLogRepo, error) {
	if !cfg.Enabled {
		log.Info("command log is disabled, skipping initialization")
		return nil, nil
	}
	db, err := gormrepo.Open(cfg.DSN, log)
	if err != nil {
		return nil, err
	}
	repo := gormrepo.NewCommandLogRepo(db)
	if cfg.AutoMigrate {
		if err := repo.AutoMigrate(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}
	log.Info("command log ready")
	return repo, nil
}
