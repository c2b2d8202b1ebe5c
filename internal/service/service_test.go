package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"wisefido-heartbeat/internal/config"
	"wisefido-heartbeat/internal/generator"
	"wisefido-heartbeat/internal/models"
	"wisefido-heartbeat/internal/sink"
	"wisefido-heartbeat/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []models.HeartRateSample
	onWrite func(n int)
	closed  bool
}

func (r *recordingSink) Name() string { return "memory" }

func (r *recordingSink) Write(_ context.Context, s *models.HeartRateSample) error {
	r.mu.Lock()
	r.samples = append(r.samples, *s)
	n := len(r.samples)
	r.mu.Unlock()
	if r.onWrite != nil {
		r.onWrite(n)
	}
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func testTable() *users.Table {
	return &users.Table{
		Profiles: []models.UserProfile{
			{UserID: 1, Age: 82},
			{UserID: 2, Age: 30},
		},
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)
	return func() time.Time { return t }
}

func TestBatchService_Run(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Interval = 60
	cfg.Generator.Days = 1
	cfg.Generator.Risk = 1

	rec := &recordingSink{}
	out := sink.NewFanout(zap.NewNop(), rec)
	gen := generator.New(generator.WithSeed(11), generator.WithClock(fixedClock()))

	svc := NewBatchService(cfg, testTable(), gen, out, zap.NewNop())
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 1, report.ElderlyUsers)
	assert.Equal(t, []int64{1}, report.HighRiskUsers)
	assert.Equal(t, int64(2*1440), report.Samples)
	assert.Len(t, rec.samples, 2*1440)
	assert.GreaterOrEqual(t, report.RiskSamples, int64(2))
	assert.LessOrEqual(t, len(report.RiskSummaries), 10)
	assert.Equal(t, sink.Stats{Success: 2 * 1440}, report.Sinks["memory"])
	assert.False(t, report.Interrupted)
	assert.NotEmpty(t, report.RunID)

	for _, s := range rec.samples {
		if s.IsRisk {
			assert.Equal(t, "1", s.UserID)
		}
	}

	require.NoError(t, svc.Stop())
	assert.True(t, rec.closed)
}

func TestBatchService_Deterministic(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Interval = 300
	cfg.Generator.Risk = 1

	run := func() []models.HeartRateSample {
		rec := &recordingSink{}
		gen := generator.New(generator.WithSeed(5), generator.WithClock(fixedClock()))
		svc := NewBatchService(cfg, testTable(), gen, sink.NewFanout(zap.NewNop(), rec), zap.NewNop())
		_, err := svc.Run(context.Background())
		require.NoError(t, err)
		return rec.samples
	}

	assert.Equal(t, run(), run())
}

func TestBatchService_Interrupted(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Interval = 30

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recordingSink{onWrite: func(n int) {
		if n == 100 {
			cancel()
		}
	}}
	gen := generator.New(generator.WithSeed(1), generator.WithClock(fixedClock()))
	svc := NewBatchService(cfg, testTable(), gen, sink.NewFanout(zap.NewNop(), rec), zap.NewNop())

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, int64(100), report.Samples)
	assert.Len(t, rec.samples, 100)
}

func TestBatchService_NoElderlyUsers(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Interval = 600
	cfg.Generator.Risk = 1

	table := &users.Table{Profiles: []models.UserProfile{{UserID: 9, Age: 40}}}
	rec := &recordingSink{}
	gen := generator.New(generator.WithSeed(3), generator.WithClock(fixedClock()))
	svc := NewBatchService(cfg, table, gen, sink.NewFanout(zap.NewNop(), rec), zap.NewNop())

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.HighRiskUsers)
	assert.Equal(t, int64(0), report.RiskSamples)
	assert.Equal(t, int64(144), report.Samples)
}

func TestRealtimeService_Run(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Risk = 1

	// 每次取时间推进 30 秒，100 个 tick 覆盖约 50 分钟
	var mu sync.Mutex
	clock := time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(30 * time.Second)
		return clock
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingSink{onWrite: func(n int) {
		if n == 200 {
			cancel()
		}
	}}

	gen := generator.New(generator.WithSeed(21), generator.WithClock(now))
	svc := NewRealtimeService(cfg, testTable(), gen, sink.NewFanout(zap.NewNop(), rec), zap.NewNop())
	svc.interval = time.Millisecond

	report, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(200), report.Samples)
	assert.True(t, report.Interrupted)
	assert.Equal(t, []int64{1}, report.HighRiskUsers)

	ep, ok := svc.stream.Episode(1)
	require.True(t, ok)
	assert.GreaterOrEqual(t, ep.Duration(), 2*time.Minute)
	assert.LessOrEqual(t, ep.Duration(), 10*time.Minute)

	var risk int
	for _, s := range rec.samples {
		if s.IsRisk {
			risk++
			assert.Equal(t, "1", s.UserID)
			assert.True(t, ep.Contains(s.Timestamp))
		}
		assert.True(t, s.Valid())
	}
	assert.GreaterOrEqual(t, risk, 4)
	assert.Equal(t, int64(risk), report.RiskSamples)

	require.NoError(t, svc.Stop())
	assert.True(t, rec.closed)
}
