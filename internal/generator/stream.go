package generator

import (
	"strconv"
	"time"

	"wisefido-heartbeat/internal/models"

	"go.uber.org/zap"
)

const (
	streamLeadMinMinutes = 5
	streamLeadMaxMinutes = 30
	streamMinDuration    = 2
	streamMaxDuration    = 10
	streamFloor          = 40
	baselineSlack        = 15
)

// Stream 实时模式的逐 tick 生成器
// 每个用户的基线与风险事件只由该用户自己的 Next 读写
type Stream struct {
	g         *Generator
	baselines map[int64]float64
	episodes  map[int64]models.RiskEpisode
}

// NewStream 基于生成器创建实时流
func NewStream(g *Generator) *Stream {
	return &Stream{
		g:         g,
		baselines: make(map[int64]float64),
		episodes:  make(map[int64]models.RiskEpisode),
	}
}

// Schedule 为用户安排一次未来的风险事件（5-30 分钟后开始，持续 2-10 分钟）
func (s *Stream) Schedule(userID int64, now time.Time) models.RiskEpisode {
	rng := s.g.rng
	lead := time.Duration(streamLeadMinMinutes+rng.Intn(streamLeadMaxMinutes-streamLeadMinMinutes+1)) * time.Minute
	d := time.Duration(streamMinDuration+rng.Intn(streamMaxDuration-streamMinDuration+1)) * time.Minute

	start := now.Add(lead)
	ep := models.RiskEpisode{Start: start, End: start.Add(d)}
	s.episodes[userID] = ep

	s.g.logger.Info("Risk episode scheduled",
		zap.Int64("user_id", userID),
		zap.Time("start", ep.Start),
		zap.Duration("duration", d),
	)
	return ep
}

// Episode 返回用户已安排的风险事件
func (s *Stream) Episode(userID int64) (models.RiskEpisode, bool) {
	ep, ok := s.episodes[userID]
	return ep, ok
}

// Next 生成用户在 now 时刻的一条记录
func (s *Stream) Next(u models.UserProfile, now time.Time) models.HeartRateSample {
	now = now.Truncate(time.Second)

	var out models.HeartRateSample
	if ep, ok := s.episodes[u.UserID]; ok && ep.Contains(now) {
		out = riskSample(s.g.rng, BandFor(u.Age).BaseRate, ep.Progress(now))
	} else {
		out = s.drift(u, now)
	}

	out.UserID = strconv.FormatInt(u.UserID, 10)
	out.Timestamp = now
	return out
}

// drift 基线随机游走；时段系数只作用于输出，不回写基线
func (s *Stream) drift(u models.UserProfile, now time.Time) models.HeartRateSample {
	rng := s.g.rng
	lo, hi := streamRange(u.Age)

	base, ok := s.baselines[u.UserID]
	if !ok {
		base = lo + rng.Float64()*(hi-lo)
	} else {
		base += rng.NormFloat64() * 2
	}
	base = clip(base, lo-baselineSlack, hi+baselineSlack)
	s.baselines[u.UserID] = base

	ceiling := 220 - u.Age
	if ceiling < streamFloor {
		ceiling = streamFloor
	}

	avg := clampInt(int(base*streamTimeFactor(now.Hour())), streamFloor, ceiling)

	low := avg - int(1+rng.Float64()*3)
	if low < streamFloor {
		low = streamFloor
	}
	high := avg + int(1+rng.Float64()*3)
	if high > ceiling {
		high = ceiling
	}

	return models.HeartRateSample{
		HeartbeatMax: high,
		HeartbeatMin: low,
		HeartbeatAvg: avg,
	}
}
