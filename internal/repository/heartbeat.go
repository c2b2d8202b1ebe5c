package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wisefido-heartbeat/internal/models"

	"go.uber.org/zap"
)

// Dialect SQL 方言
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// HeartbeatRepository 心率记录仓库（heartbeat_records 表）
// 主键 (user_id, timestamp)，重复写入按主键覆盖
type HeartbeatRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewHeartbeatRepository 创建心率记录仓库
func NewHeartbeatRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *HeartbeatRepository {
	return &HeartbeatRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *HeartbeatRepository) EnsureSchema(ctx context.Context) error {
	tsType := "TIMESTAMP"
	boolType := "BOOLEAN"
	if r.dialect == SQLite {
		tsType = "TEXT"
		boolType = "INTEGER"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS heartbeat_records (
			user_id       TEXT NOT NULL,
			timestamp     %s NOT NULL,
			heartbeat_max INTEGER NOT NULL,
			heartbeat_min INTEGER NOT NULL,
			heartbeat_avg INTEGER NOT NULL,
			is_risk       %s NOT NULL,
			PRIMARY KEY (user_id, timestamp)
		)
	`, tsType, boolType)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create heartbeat_records: %w", err)
	}
	return nil
}

// Upsert 写入一条记录
func (r *HeartbeatRepository) Upsert(ctx context.Context, s *models.HeartRateSample) error {
	query := r.rebind(`
		INSERT INTO heartbeat_records (
			user_id,
			timestamp,
			heartbeat_max,
			heartbeat_min,
			heartbeat_avg,
			is_risk
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, timestamp) DO UPDATE SET
			heartbeat_max = excluded.heartbeat_max,
			heartbeat_min = excluded.heartbeat_min,
			heartbeat_avg = excluded.heartbeat_avg,
			is_risk = excluded.is_risk
	`)

	_, err := r.db.ExecContext(ctx, query,
		s.UserID,
		s.TimestampString(),
		s.HeartbeatMax,
		s.HeartbeatMin,
		s.HeartbeatAvg,
		s.IsRisk,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert heartbeat_records: %w", err)
	}
	return nil
}

// ListSince 查询 since 之后（不含）的记录，按时间升序；limit <= 0 不限制
func (r *HeartbeatRepository) ListSince(ctx context.Context, userID string, since time.Time, limit int) ([]models.HeartRateSample, error) {
	query := `
		SELECT user_id, timestamp, heartbeat_max, heartbeat_min, heartbeat_avg, is_risk
		FROM heartbeat_records
		WHERE user_id = ? AND timestamp > ?
		ORDER BY timestamp ASC
	`
	args := []interface{}{userID, since.Format(models.TimestampLayout)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query heartbeat_records: %w", err)
	}
	defer rows.Close()

	var out []models.HeartRateSample
	for rows.Next() {
		var (
			s    models.HeartRateSample
			ts   interface{}
			risk interface{}
		)
		if err := rows.Scan(&s.UserID, &ts, &s.HeartbeatMax, &s.HeartbeatMin, &s.HeartbeatAvg, &risk); err != nil {
			return nil, fmt.Errorf("failed to scan heartbeat_records: %w", err)
		}
		if s.Timestamp, err = scanTime(ts); err != nil {
			return nil, err
		}
		s.IsRisk = scanBool(risk)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate heartbeat_records: %w", err)
	}
	return out, nil
}

// Since 看板历史来源：checkpoint 之后的记录，limit <= 0 不限制
func (r *HeartbeatRepository) Since(ctx context.Context, userID string, checkpoint time.Time, limit int64) ([]models.HeartRateSample, error) {
	return r.ListSince(ctx, userID, checkpoint, int(limit))
}

// Users 有记录的用户，数字 id 按数值升序
func (r *HeartbeatRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM heartbeat_records
		GROUP BY user_id
		ORDER BY LENGTH(user_id), user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rebind 将 ? 占位符转换为 PostgreSQL 的 $n
func (r *HeartbeatRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// scanTime TIMESTAMP 列按墙上时间还原为本地时间；TEXT 列按记录格式解析
func scanTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local), nil
	case string:
		return models.ParseTimestamp(t)
	case []byte:
		return models.ParseTimestamp(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func scanBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case []byte:
		return string(b) == "1" || string(b) == "t" || string(b) == "true"
	case string:
		return b == "1" || b == "t" || b == "true"
	default:
		return false
	}
}
