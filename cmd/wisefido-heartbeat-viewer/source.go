package main

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-heartbeat/internal/common/database"
	commonredis "wisefido-heartbeat/internal/common/redis"
	"wisefido-heartbeat/internal/config"
	"wisefido-heartbeat/internal/repository"
	"wisefido-heartbeat/internal/store"
	"wisefido-heartbeat/internal/viewer"

	"go.uber.org/zap"
)

// openSource 按 viewer.source 打开心率历史来源，返回的 close 释放底层连接
func openSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (viewer.Source, func(), error) {
	switch cfg.Viewer.Source {
	case config.SinkSQLite:
		return openSQLSource(ctx, repository.SQLite, log, func() (*sql.DB, error) {
			return database.NewSQLiteDB(cfg.SQLite.Path)
		})
	case config.SinkPostgres:
		return openSQLSource(ctx, repository.Postgres, log, func() (*sql.DB, error) {
			return database.NewPostgresDB(&cfg.Database)
		})
	case config.SinkRedis:
		// Redis 不可用时仍可使用用户表功能，心率曲线为空
		rdb := commonredis.NewRedisClient(&cfg.Redis)
		if err := commonredis.Ping(ctx, rdb); err != nil {
			log.Warn("Redis unavailable, heart rate series will be empty", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		closeFn := func() { _ = commonredis.Close(rdb) }
		return store.NewHeartbeatStore(store.NewRedisKV(rdb), 0, log), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown viewer source %q", config.ErrInvalidConfig, cfg.Viewer.Source)
	}
}

func openSQLSource(ctx context.Context, dialect repository.Dialect, log *zap.Logger, open func() (*sql.DB, error)) (viewer.Source, func(), error) {
	db, err := open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	repo := repository.NewHeartbeatRepository(db, dialect, log)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("Heart rate history from database", zap.String("dialect", dialect.String()))
	return repo, func() { db.Close() }, nil
}
