// sds011-sim 在 TCP 端口上模拟一台 SDS011，供无硬件时联调
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/sds011-server/internal/config"
	"github.com/taoyao-code/sds011-server/internal/logging"
	"github.com/taoyao-code/sds011-server/internal/simulator"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	addr := flag.String("addr", "", "监听地址，覆盖 simulator.addr")
	profilePath := flag.String("profile", "", "设备配置 YAML，覆盖 simulator.profile")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if *addr == "" {
		*addr = cfg.Simulator.Addr
	}
	if *profilePath == "" {
		*profilePath = cfg.Simulator.Profile
	}

	profile, err := simulator.LoadProfile(*profilePath)
	if err != nil {
		logger.Fatal("load profile failed", zap.String("path", *profilePath), zap.Error(err))
	}
	dev, err := simulator.NewDevice(profile)
	if err != nil {
		logger.Fatal("create device failed", zap.Error(err))
	}

	srv := simulator.NewServer(*addr, dev, profile, cfg.Simulator.MaxConns, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("simulator start failed", zap.Error(err))
	}
	logger.Info("simulator ready",
		zap.Stringer("addr", srv.Addr()),
		zap.String("device_id", profile.DeviceID),
		zap.String("mode", profile.Mode))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("simulator stopped")
}
