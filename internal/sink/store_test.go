package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wisefido-heartbeat/internal/common/database"
	commonredis "wisefido-heartbeat/internal/common/redis"
	"wisefido-heartbeat/internal/models"
	"wisefido-heartbeat/internal/repository"
	"wisefido-heartbeat/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewHeartbeatStore(store.NewRedisKV(client), 0, zap.NewNop())
	s := NewRedisSink(st, client)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, testSample("42", 0, 70, false)))
	require.NoError(t, s.Write(ctx, testSample("42", 0, 75, false)))

	got, err := st.Get(ctx, "42", testTime)
	require.NoError(t, err)
	assert.Equal(t, 75, got.HeartbeatAvg)

	require.NoError(t, s.Close())
}

func TestStreamSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewStreamSink(client, "heartbeat:stream", 100, false)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, testSample("7", 0, 8, true)))

	msgs, err := client.XRange(ctx, "heartbeat:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got models.HeartRateSample
	assert.Equal(t, "7#2025-03-14T09:00:00", msgs[0].Values[commonredis.FieldKey])
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values[commonredis.FieldData].(string)), &got))
	assert.Equal(t, "7", got.UserID)
	assert.True(t, got.IsRisk)

	// 非持有者关闭后客户端仍可用
	require.NoError(t, s.Close())
	assert.NoError(t, client.Ping(ctx).Err())
}

func TestSQLSink_SQLite(t *testing.T) {
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)

	repo := repository.NewHeartbeatRepository(db, repository.SQLite, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	s := NewSQLSink("sqlite", db, repo)
	assert.Equal(t, "sqlite", s.Name())

	require.NoError(t, s.Write(ctx, testSample("9", 0, 60, false)))
	require.NoError(t, s.Write(ctx, testSample("9", 0, 61, false)))
	require.NoError(t, s.Write(ctx, testSample("9", time.Minute, 9, true)))

	rows, err := repo.ListSince(ctx, "9", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 61, rows[0].HeartbeatAvg)
	assert.True(t, rows[1].IsRisk)

	require.NoError(t, s.Close())
}
