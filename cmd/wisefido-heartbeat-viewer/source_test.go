package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wisefido-heartbeat/internal/common/database"
	"wisefido-heartbeat/internal/config"
	"wisefido-heartbeat/internal/models"
	"wisefido-heartbeat/internal/repository"
	"wisefido-heartbeat/internal/viewer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenSource_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Viewer.Source = config.SinkSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "heart_rate_data.db")

	// 生成器写入的数据
	db, err := database.NewSQLiteDB(cfg.SQLite.Path)
	require.NoError(t, err)
	repo := repository.NewHeartbeatRepository(db, repository.SQLite, zap.NewNop())
	require.NoError(t, repo.EnsureSchema(ctx))
	t0 := time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)
	for i, avg := range []int{70, 9, 72} {
		require.NoError(t, repo.Upsert(ctx, &models.HeartRateSample{
			UserID:       "3",
			Timestamp:    t0.Add(time.Duration(i) * 30 * time.Second),
			HeartbeatMax: avg + 2,
			HeartbeatMin: avg - 2,
			HeartbeatAvg: avg,
			IsRisk:       avg < 50,
		}))
	}
	require.NoError(t, db.Close())

	src, closeSource, err := openSource(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeSource()

	history := viewer.NewHistoryCache(src, time.Minute, time.Minute, 0, zap.NewNop())
	got, err := history.Get(ctx, "3")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[1].IsRisk)
	assert.Equal(t, 72, got[2].HeartbeatAvg)

	users, err := history.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, users)
}

func TestOpenSource_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Viewer.Source = "kafka"
	_, _, err := openSource(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
