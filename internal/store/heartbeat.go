package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"wisefido-heartbeat/internal/models"

	"go.uber.org/zap"
)

const (
	keyPrefix = "heartbeat"
	usersKey  = "heartbeat:users"
)

// SampleKey 单条记录键 heartbeat:{user_id}:{timestamp}
func SampleKey(userID, ts string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, ts)
}

// IndexKey 用户时间索引键
func IndexKey(userID string) string {
	return fmt.Sprintf("%s:%s:index", keyPrefix, userID)
}

// HeartbeatStore 以 (user_id, timestamp) 为自然键的心率键值存储
// 同一自然键重复写入覆盖旧值
type HeartbeatStore struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewHeartbeatStore ttl 为 0 表示不过期
func NewHeartbeatStore(kv KV, ttl time.Duration, logger *zap.Logger) *HeartbeatStore {
	return &HeartbeatStore{kv: kv, ttl: ttl, logger: logger}
}

// Put 写入一条记录
func (s *HeartbeatStore) Put(ctx context.Context, sample *models.HeartRateSample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	ts := sample.TimestampString()
	if err := s.kv.Set(ctx, SampleKey(sample.UserID, ts), string(payload), s.ttl); err != nil {
		return fmt.Errorf("failed to set sample: %w", err)
	}
	if err := s.kv.Index(ctx, IndexKey(sample.UserID), float64(sample.Timestamp.Unix()), ts, usersKey, sample.UserID); err != nil {
		return fmt.Errorf("failed to index sample: %w", err)
	}
	return nil
}

// Get 读取一条记录，不存在时返回 ErrMiss
func (s *HeartbeatStore) Get(ctx context.Context, userID string, ts time.Time) (*models.HeartRateSample, error) {
	raw, err := s.kv.Get(ctx, SampleKey(userID, ts.Format(models.TimestampLayout)))
	if err != nil {
		return nil, err
	}

	var sample models.HeartRateSample
	if err := json.Unmarshal([]byte(raw), &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
	}
	return &sample, nil
}

// Since 读取 checkpoint 之后（不含）的记录，按时间升序
// checkpoint 为零值时从头读取；limit <= 0 不限制
func (s *HeartbeatStore) Since(ctx context.Context, userID string, checkpoint time.Time, limit int64) ([]models.HeartRateSample, error) {
	lower := "-inf"
	if !checkpoint.IsZero() {
		lower = "(" + strconv.FormatInt(checkpoint.Unix(), 10)
	}

	members, err := s.kv.RangeByScore(ctx, IndexKey(userID), lower, "+inf", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to range index: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = SampleKey(userID, m)
	}
	vals, err := s.kv.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}

	out := make([]models.HeartRateSample, 0, len(vals))
	for i, v := range vals {
		if v == nil {
			// 记录已过期，索引残留
			continue
		}
		var sample models.HeartRateSample
		if err := json.Unmarshal([]byte(*v), &sample); err != nil {
			s.logger.Warn("Skipping malformed sample", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// Users 已写入记录的用户 ID（升序）
func (s *HeartbeatStore) Users(ctx context.Context) ([]string, error) {
	ids, err := s.kv.Members(ctx, usersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids, nil
}
