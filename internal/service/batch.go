package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-heartbeat/internal/config"
	"wisefido-heartbeat/internal/generator"
	"wisefido-heartbeat/internal/sink"
	"wisefido-heartbeat/internal/users"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchService 历史数据批量生成
type BatchService struct {
	config *config.Config
	table  *users.Table
	gen    *generator.Generator
	out    *sink.Fanout
	logger *zap.Logger
}

// NewBatchService 创建批量生成服务
func NewBatchService(cfg *config.Config, table *users.Table, gen *generator.Generator, out *sink.Fanout, logger *zap.Logger) *BatchService {
	return &BatchService{
		config: cfg,
		table:  table,
		gen:    gen,
		out:    out,
		logger: logger,
	}
}

// Run 为每个用户生成整个时间窗口并逐条写出
// ctx 取消时在记录之间停止，返回已完成部分的报告
func (s *BatchService) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:        uuid.NewString(),
		Mode:         sink.Batch.String(),
		Users:        s.table.Len(),
		ElderlyUsers: s.table.ElderlyCount(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	highRisk := users.SelectHighRisk(s.table.Profiles, s.config.Generator.Risk, s.gen.Rand())
	report.HighRiskUsers = sortedIDs(highRisk)

	logger.Info("Starting batch generation",
		zap.Int("users", report.Users),
		zap.Int("elderly_users", report.ElderlyUsers),
		zap.Int("high_risk_users", len(report.HighRiskUsers)),
		zap.Int("days", s.config.Generator.Days),
		zap.Int("interval", s.config.Generator.Interval),
	)

	defer func() {
		report.Sinks = s.out.Stats()
		report.Elapsed = time.Since(started)
	}()

	for _, u := range s.table.Profiles {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		samples, ep, err := s.gen.Generate(u.UserID, u.Age, s.config.Generator.Days, s.config.Generator.Interval, highRisk[u.UserID])
		if err != nil {
			return report, fmt.Errorf("failed to generate user %d: %w", u.UserID, err)
		}
		if ep != nil {
			logger.Info("Risk episode injected",
				zap.Int64("user_id", u.UserID),
				zap.Int("age", u.Age),
				zap.Time("start", ep.Start),
				zap.Duration("duration", ep.Duration()),
			)
		}

		for i := range samples {
			if ctx.Err() != nil {
				report.Interrupted = true
				break
			}
			s.out.Write(ctx, &samples[i])
			report.record(&samples[i])
		}

		logger.Debug("User generated",
			zap.Int64("user_id", u.UserID),
			zap.Int("samples", len(samples)),
		)
	}

	if report.Interrupted {
		logger.Warn("Batch generation interrupted",
			zap.Int64("samples", report.Samples),
		)
	}

	logger.Info("Batch generation completed",
		zap.Int64("samples", report.Samples),
		zap.Int64("risk_samples", report.RiskSamples),
		zap.Any("sinks", s.out.Stats()),
	)
	return report, nil
}

// Stop 关闭全部输出
func (s *BatchService) Stop() error {
	s.logger.Info("Stopping batch service")
	return s.out.Close()
}
