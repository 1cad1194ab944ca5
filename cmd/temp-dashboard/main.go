package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"temp-dashboard/common/logger"
	"temp-dashboard/internal/config"
	"temp-dashboard/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "temp-dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 创建服务
	dashboard, err := service.NewDashboardService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create dashboard service", zap.Error(err))
	}

	// 5. 启动服务（在 goroutine 中）
	serviceErrChan := make(chan error, 1)
	go func() {
		serviceErrChan <- dashboard.Start(ctx)
	}()

	// 6. 等待信号；SIGUSR1 切换主题
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	running := true
	for running {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGUSR1 {
				theme, err := dashboard.ToggleTheme(ctx)
				if err != nil {
					log.Warn("Failed to persist theme preference", zap.Error(err))
				}
				log.Info("Theme toggled", zap.String("theme", string(theme)))
				continue
			}
			log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			running = false
		case err := <-serviceErrChan:
			if err != nil {
				log.Error("Service error", zap.Error(err))
			}
			serviceErrChan = nil
			running = false
		}
	}

	cancel()
	if serviceErrChan != nil {
		<-serviceErrChan
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := dashboard.Stop(stopCtx); err != nil {
		log.Error("Failed to stop dashboard service", zap.Error(err))
	}
}
