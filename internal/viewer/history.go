package viewer

import (
	"context"
	"sync"
	"time"

	"wisefido-heartbeat/internal/models"

	"go.uber.org/zap"
)

// Source 心率记录来源（store.HeartbeatStore 满足）
type Source interface {
	Since(ctx context.Context, userID string, checkpoint time.Time, limit int64) ([]models.HeartRateSample, error)
	Users(ctx context.Context) ([]string, error)
}

type historyEntry struct {
	samples     []models.HeartRateSample
	checkpoint  time.Time
	lastRefresh time.Time
	lastRead    time.Time
}

// HistoryCache 每个用户的心率历史缓存
// 距上次刷新达到 interval 才从 Source 拉取 checkpoint 之后的新记录；
// 超过 ttl 未读取的用户被淘汰；每个用户最多保留 maxSamples 条
type HistoryCache struct {
	src        Source
	interval   time.Duration
	ttl        time.Duration
	maxSamples int
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*historyEntry
}

// NewHistoryCache 创建历史缓存
func NewHistoryCache(src Source, interval, ttl time.Duration, maxSamples int, logger *zap.Logger) *HistoryCache {
	return &HistoryCache{
		src:        src,
		interval:   interval,
		ttl:        ttl,
		maxSamples: maxSamples,
		logger:     logger,
		now:        time.Now,
		entries:    make(map[string]*historyEntry),
	}
}

// Get 返回用户的缓存历史（按时间升序），必要时先刷新
// 刷新失败时返回已缓存的数据和错误
func (c *HistoryCache) Get(ctx context.Context, userID string) ([]models.HeartRateSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictLocked(now)

	e, ok := c.entries[userID]
	if !ok {
		e = &historyEntry{}
		c.entries[userID] = e
	}
	e.lastRead = now

	var err error
	if e.lastRefresh.IsZero() || now.Sub(e.lastRefresh) >= c.interval {
		err = c.refreshLocked(ctx, userID, e, now)
	}

	out := make([]models.HeartRateSample, len(e.samples))
	copy(out, e.samples)
	return out, err
}

// After 返回缓存中 after 之后的记录（实时推送使用）
func (c *HistoryCache) After(ctx context.Context, userID string, after time.Time) ([]models.HeartRateSample, error) {
	all, err := c.Get(ctx, userID)
	i := len(all)
	for i > 0 && all[i-1].Timestamp.After(after) {
		i--
	}
	return all[i:], err
}

// Users 有心率数据的用户
func (c *HistoryCache) Users(ctx context.Context) ([]string, error) {
	return c.src.Users(ctx)
}

// Len 缓存中的用户数
func (c *HistoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evict 淘汰过期用户，返回淘汰数量
func (c *HistoryCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(c.now())
}

func (c *HistoryCache) evictLocked(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}
	n := 0
	for id, e := range c.entries {
		if now.Sub(e.lastRead) >= c.ttl {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

func (c *HistoryCache) refreshLocked(ctx context.Context, userID string, e *historyEntry, now time.Time) error {
	fresh, err := c.src.Since(ctx, userID, e.checkpoint, 0)
	if err != nil {
		c.logger.Warn("Failed to refresh heart rate history",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	e.lastRefresh = now

	if len(fresh) == 0 {
		return nil
	}
	e.samples = append(e.samples, fresh...)
	e.checkpoint = fresh[len(fresh)-1].Timestamp
	if c.maxSamples > 0 && len(e.samples) > c.maxSamples {
		e.samples = append([]models.HeartRateSample(nil), e.samples[len(e.samples)-c.maxSamples:]...)
	}

	c.logger.Debug("Heart rate history refreshed",
		zap.String("user_id", userID),
		zap.Int("new_samples", len(fresh)),
		zap.Int("cached", len(e.samples)),
	)
	return nil
}
