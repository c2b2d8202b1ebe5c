package service

import (
	"context"
	"time"

	"wisefido-heartbeat/internal/config"
	"wisefido-heartbeat/internal/generator"
	"wisefido-heartbeat/internal/sink"
	"wisefido-heartbeat/internal/users"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RealtimeService 实时心率生成：每个间隔为每个用户写出一条记录
type RealtimeService struct {
	config   *config.Config
	table    *users.Table
	gen      *generator.Generator
	stream   *generator.Stream
	out      *sink.Fanout
	logger   *zap.Logger
	interval time.Duration
}

// NewRealtimeService 创建实时生成服务
func NewRealtimeService(cfg *config.Config, table *users.Table, gen *generator.Generator, out *sink.Fanout, logger *zap.Logger) *RealtimeService {
	return &RealtimeService{
		config:   cfg,
		table:    table,
		gen:      gen,
		stream:   generator.NewStream(gen),
		out:      out,
		logger:   logger,
		interval: time.Duration(cfg.Generator.Interval) * time.Second,
	}
}

// Run 运行直到 ctx 取消（SIGINT / SIGTERM）
func (s *RealtimeService) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:        uuid.NewString(),
		Mode:         sink.Realtime.String(),
		Users:        s.table.Len(),
		ElderlyUsers: s.table.ElderlyCount(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	highRisk := users.SelectHighRisk(s.table.Profiles, s.config.Generator.Risk, s.gen.Rand())
	report.HighRiskUsers = sortedIDs(highRisk)

	now := s.gen.Now()
	for _, id := range report.HighRiskUsers {
		s.stream.Schedule(id, now)
	}

	logger.Info("Starting realtime generation",
		zap.Int("users", report.Users),
		zap.Int("high_risk_users", len(report.HighRiskUsers)),
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx, report, logger)
	for {
		select {
		case <-ctx.Done():
			report.Interrupted = true
			report.Sinks = s.out.Stats()
			report.Elapsed = time.Since(started)
			logger.Info("Realtime generation stopped",
				zap.Int64("ticks", report.Ticks),
				zap.Int64("samples", report.Samples),
				zap.Int64("risk_samples", report.RiskSamples),
				zap.Any("sinks", report.Sinks),
			)
			return report, nil
		case <-ticker.C:
			s.tick(ctx, report, logger)
		}
	}
}

// tick 为全部用户各写出一条当前时刻的记录
func (s *RealtimeService) tick(ctx context.Context, report *Report, logger *zap.Logger) {
	now := s.gen.Now()
	report.Ticks++

	for _, u := range s.table.Profiles {
		if ctx.Err() != nil {
			return
		}

		sample := s.stream.Next(u, now)
		s.out.Write(ctx, &sample)
		report.record(&sample)

		if sample.IsRisk {
			logger.Warn("Risk heart rate detected",
				zap.Int64("user_id", u.UserID),
				zap.Int("age", u.Age),
				zap.Int("heartbeat_avg", sample.HeartbeatAvg),
				zap.String("timestamp", sample.TimestampString()),
			)
		}
	}

	logger.Debug("Tick written",
		zap.Int64("tick", report.Ticks),
		zap.Int("users", s.table.Len()),
	)
}

// Stop 关闭全部输出
func (s *RealtimeService) Stop() error {
	s.logger.Info("Stopping realtime service")
	return s.out.Close()
}
