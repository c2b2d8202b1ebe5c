package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 心率存储所需的键值操作
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Index 维护时间索引（有序集合）与用户集合
	Index(ctx context.Context, indexKey string, score float64, member string, setKey string, setMember string) error
	RangeByScore(ctx context.Context, key string, min, max string, limit int64) ([]string, error)
	Members(ctx context.Context, key string) ([]string, error)
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

// MGet 缺失的键对应 nil
func (r *RedisKV) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = &s
		}
	}
	return out, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Index(ctx context.Context, indexKey string, score float64, member string, setKey string, setMember string) error {
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, indexKey, &redis.Z{Score: score, Member: member})
		p.SAdd(ctx, setKey, setMember)
		return nil
	})
	return err
}

func (r *RedisKV) RangeByScore(ctx context.Context, key string, min, max string, limit int64) ([]string, error) {
	opt := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		opt.Count = limit
	}
	return r.c.ZRangeByScore(ctx, key, opt).Result()
}

func (r *RedisKV) Members(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}
