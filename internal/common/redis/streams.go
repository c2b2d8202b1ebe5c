package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// 流消息字段
const (
	FieldKey  = "key"
	FieldData = "data"
)

// PublishJSONToStream 以 {key, data(JSON)} 追加一条消息
// maxLen > 0 时按近似长度裁剪，实时模式下流不会无限增长
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, key string, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: []interface{}{FieldKey, key, FieldData, string(payload)},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	id, err := client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}
