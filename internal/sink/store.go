package sink

import (
	"context"
	"database/sql"

	commonredis "wisefido-heartbeat/internal/common/redis"
	"wisefido-heartbeat/internal/models"
	"wisefido-heartbeat/internal/repository"
	"wisefido-heartbeat/internal/store"
)

// SQLSink 写入 heartbeat_records 表（PostgreSQL / SQLite），按主键覆盖
type SQLSink struct {
	name string
	repo *repository.HeartbeatRepository
	db   *sql.DB
}

// NewSQLSink db 由 sink 持有并在 Close 时关闭
func NewSQLSink(name string, db *sql.DB, repo *repository.HeartbeatRepository) *SQLSink {
	return &SQLSink{name: name, repo: repo, db: db}
}

func (s *SQLSink) Name() string { return s.name }

func (s *SQLSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	return s.repo.Upsert(ctx, sample)
}

func (s *SQLSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RedisSink 键值输出：SET heartbeat:{user}:{ts}，并维护时间索引与用户集合
type RedisSink struct {
	store  *store.HeartbeatStore
	client *commonredis.Client
}

// NewRedisSink client 为 nil 时 Close 不做任何事
func NewRedisSink(st *store.HeartbeatStore, client *commonredis.Client) *RedisSink {
	return &RedisSink{store: st, client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	return s.store.Put(ctx, sample)
}

func (s *RedisSink) Close() error {
	if s.client == nil {
		return nil
	}
	return commonredis.Close(s.client)
}

// StreamSink 发布到 Redis Streams，供下游消费者订阅
type StreamSink struct {
	client *commonredis.Client
	stream string
	maxLen int64
	owned  bool
}

// NewStreamSink owned 为 true 时 Close 关闭 client
func NewStreamSink(client *commonredis.Client, stream string, maxLen int64, owned bool) *StreamSink {
	return &StreamSink{client: client, stream: stream, maxLen: maxLen, owned: owned}
}

func (s *StreamSink) Name() string { return "redis-stream" }

func (s *StreamSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	_, err := commonredis.PublishJSONToStream(ctx, s.client, s.stream, s.maxLen, sample.Key(), sample)
	return err
}

func (s *StreamSink) Close() error {
	if !s.owned {
		return nil
	}
	return commonredis.Close(s.client)
}
