package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-heartbeat/internal/common/logger"
	"wisefido-heartbeat/internal/config"
	"wisefido-heartbeat/internal/generator"
	"wisefido-heartbeat/internal/service"
	"wisefido-heartbeat/internal/sink"
	"wisefido-heartbeat/internal/users"

	"go.uber.org/zap"
)

// runner 批量与实时服务的共同接口
type runner interface {
	Run(ctx context.Context) (*service.Report, error)
	Stop() error
}

func main() {
	// 加载配置（默认值 < YAML < 环境变量 < 命令行）
	cfg, err := config.FromArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 用户表不合法时在生成前退出
	table, err := users.Load(cfg.Generator.Input)
	if err != nil {
		log.Fatal("Failed to load user table", zap.String("input", cfg.Generator.Input), zap.Error(err))
	}
	log.Info("User table loaded",
		zap.String("input", cfg.Generator.Input),
		zap.Int("users", table.Len()),
		zap.Int("elderly_users", table.ElderlyCount()),
	)

	opts := []generator.Option{generator.WithLogger(log)}
	if cfg.Generator.Seed != 0 {
		opts = append(opts, generator.WithSeed(cfg.Generator.Seed))
	}
	gen := generator.New(opts...)

	mode := sink.Batch
	if cfg.Generator.Realtime {
		mode = sink.Realtime
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := sink.Build(ctx, cfg, log, mode)
	if err != nil {
		log.Fatal("Failed to build sinks", zap.Error(err))
	}

	var svc runner
	if mode == sink.Realtime {
		svc = service.NewRealtimeService(cfg, table, gen, out, log)
	} else {
		svc = service.NewBatchService(cfg, table, gen, out, log)
	}

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("Starting wisefido-heartbeat", zap.String("mode", mode.String()), zap.Strings("sinks", out.Names()))

	report, runErr := svc.Run(ctx)

	// 停止服务（关闭全部输出）
	if err := svc.Stop(); err != nil {
		log.Error("Error closing sinks", zap.Error(err))
	}

	if runErr != nil {
		log.Fatal("Generation failed", zap.Error(runErr))
	}

	log.Info("Generation finished",
		zap.String("run_id", report.RunID),
		zap.String("mode", report.Mode),
		zap.Int("users", report.Users),
		zap.Int("elderly_users", report.ElderlyUsers),
		zap.Int64s("high_risk_users", report.HighRiskUsers),
		zap.Int64("samples", report.Samples),
		zap.Int64("risk_samples", report.RiskSamples),
		zap.Any("sinks", report.Sinks),
		zap.Bool("interrupted", report.Interrupted),
		zap.Duration("elapsed", report.Elapsed),
	)
	for _, r := range report.RiskSummaries {
		log.Info("Risk sample",
			zap.String("user_id", r.UserID),
			zap.Time("timestamp", r.Timestamp),
			zap.Int("heartbeat_avg", r.HeartbeatAvg),
		)
	}
}
