package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-heartbeat/internal/common/logger"
	"wisefido-heartbeat/internal/config"
	httpapi "wisefido-heartbeat/internal/http"
	"wisefido-heartbeat/internal/service"
	"wisefido-heartbeat/internal/viewer"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load(os.Getenv("HEARTBEAT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ServiceName = "wisefido-heartbeat-viewer"
	if err := cfg.ValidateViewer(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid viewer config: %v\n", err)
		os.Exit(2)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, closeSource, err := openSource(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open heart rate source", zap.String("source", cfg.Viewer.Source), zap.Error(err))
	}
	defer closeSource()

	history := viewer.NewHistoryCache(source, cfg.RefreshInterval(), cfg.CacheTTL(), cfg.Viewer.MaxSamples, log)

	router := httpapi.NewRouter(
		httpapi.NewUsersHandler(viewer.NewUserTable(), log),
		httpapi.NewHeartbeatHandler(history, cfg.RefreshInterval(), log),
	)
	srv := service.NewServer(cfg.Viewer.HTTPAddr, httpapi.Wrap(router, log), log)

	// 定期淘汰长时间未读取的用户缓存
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := history.Evict(); n > 0 {
					log.Debug("Evicted idle history entries", zap.Int("evicted", n))
				}
			}
		}
	}()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Server error", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping server", zap.Error(err))
	}

	log.Info("Service stopped")
}
