package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"wisefido-heartbeat/internal/common/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	defaultSQLitePath = "heart_rate_data.db"
	connMaxLifetime   = 30 * time.Minute
)

// NewPostgresDB 打开 PostgreSQL 并验证连接
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	return open(driverPostgres, cfg.GetDSN(), func(db *sql.DB) {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
		db.SetConnMaxLifetime(connMaxLifetime)
	})
}

// NewSQLiteDB 打开本地 SQLite 文件（离线生成用），path 为空时使用 heart_rate_data.db
func NewSQLiteDB(path string) (*sql.DB, error) {
	return open(driverSQLite, sqliteDSN(path), func(db *sql.DB) {
		// 单写者
		db.SetMaxOpenConns(1)
	})
}

func sqliteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn + "?_pragma=busy_timeout(5000)"
}

func open(driver, dsn string, tune func(*sql.DB)) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	tune(db)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}
