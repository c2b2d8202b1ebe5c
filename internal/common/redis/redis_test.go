package redis

import (
	"context"
	"testing"

	"wisefido-heartbeat/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, Close(client))

	mr.Close()
	_, err = Connect(ctx, &config.RedisConfig{Addr: mr.Addr(), DialTimeout: 1})
	assert.Error(t, err)

	assert.NoError(t, Close(nil))
}

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := Connect(ctx, &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		_, err := PublishJSONToStream(ctx, client, "heartbeat:stream", 0, "1#2025-03-14T09:00:00", map[string]int{"heartbeat_avg": 70 + i})
		require.NoError(t, err)
	}

	msgs, err := client.XRange(ctx, "heartbeat:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "1#2025-03-14T09:00:00", msgs[0].Values[FieldKey])
	assert.JSONEq(t, `{"heartbeat_avg":72}`, msgs[2].Values[FieldData].(string))
	assert.NotEmpty(t, msgs[0].ID)
}

func TestPublishJSONToStream_TrimsToMaxLen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := Connect(ctx, &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 20; i++ {
		_, err := PublishJSONToStream(ctx, client, "heartbeat:stream", 5, "k", i)
		require.NoError(t, err)
	}

	n, err := client.XLen(ctx, "heartbeat:stream").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(20))
	assert.GreaterOrEqual(t, n, int64(5))
}
