package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"wisefido-heartbeat/internal/models"

	"go.uber.org/zap"
)

// ErrInvalidArgument 生成参数非法
var ErrInvalidArgument = errors.New("invalid argument")

const (
	minEpisodeMinutes = 2
	maxEpisodeMinutes = 15
	riskFloor         = 25
	exerciseChance    = 0.3
)

// Generator 心率信号生成器
// 同一 seed 与 clock 下输出完全确定；不做并发控制
type Generator struct {
	rng    *rand.Rand
	now    func() time.Time
	logger *zap.Logger
}

// Option 生成器选项
type Option func(*Generator)

// WithSeed 固定随机种子
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand 使用外部随机源（与用户抽样共享同一序列）
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New 创建生成器
func New(opts ...Option) *Generator {
	g := &Generator{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// Now 当前时间（秒精度）
func (g *Generator) Now() time.Time {
	return g.now().Truncate(time.Second)
}

// Rand 生成器使用的随机源
func (g *Generator) Rand() *rand.Rand {
	return g.rng
}

// Generate 生成 [now-durationDays, now) 区间内的心率序列
// 高风险且年龄 >= 70 的用户恰好插入一次风险事件
func (g *Generator) Generate(userID int64, age, durationDays, intervalSeconds int, highRisk bool) ([]models.HeartRateSample, *models.RiskEpisode, error) {
	if durationDays <= 0 {
		return nil, nil, fmt.Errorf("%w: duration days must be positive, got %d", ErrInvalidArgument, durationDays)
	}
	if intervalSeconds <= 0 {
		return nil, nil, fmt.Errorf("%w: interval seconds must be positive, got %d", ErrInvalidArgument, intervalSeconds)
	}
	if age < 0 {
		return nil, nil, fmt.Errorf("%w: age must be non-negative, got %d", ErrInvalidArgument, age)
	}

	// 窗口按墙上时间步进：固定为 now 的时区偏移，夏令时切换日也不会出现重复或缺失的时间戳
	end := g.Now()
	name, offset := end.Zone()
	end = end.In(time.FixedZone(name, offset))
	start := end.Add(-time.Duration(durationDays) * 24 * time.Hour)
	step := time.Duration(intervalSeconds) * time.Second
	band := BandFor(age)
	uid := strconv.FormatInt(userID, 10)

	var episode *models.RiskEpisode
	if highRisk && age >= 70 {
		episode = g.scheduleEpisode(start, end)
		g.logger.Debug("Risk episode scheduled",
			zap.Int64("user_id", userID),
			zap.Time("start", episode.Start),
			zap.Time("end", episode.End),
		)
	}

	samples := make([]models.HeartRateSample, 0, int(end.Sub(start)/step)+1)
	for t := start; t.Before(end); t = t.Add(step) {
		var s models.HeartRateSample
		if episode != nil && episode.Contains(t) {
			s = riskSample(g.rng, band.BaseRate, episode.Progress(t))
		} else {
			s = g.normalSample(band, t)
		}
		s.UserID = uid
		s.Timestamp = t
		samples = append(samples, s)
	}

	return samples, episode, nil
}

// scheduleEpisode 在窗口内随机放置一个完整的风险事件
func (g *Generator) scheduleEpisode(windowStart, windowEnd time.Time) *models.RiskEpisode {
	d := time.Duration(minEpisodeMinutes+g.rng.Intn(maxEpisodeMinutes-minEpisodeMinutes+1)) * time.Minute
	slack := int64(windowEnd.Sub(windowStart)-d) / int64(time.Second)
	var offset time.Duration
	if slack > 0 {
		offset = time.Duration(g.rng.Int63n(slack+1)) * time.Second
	}
	s := windowStart.Add(offset)
	return &models.RiskEpisode{Start: s, End: s.Add(d)}
}

// riskSample 风险期三阶段：快速下降、危险低位、恢复失败
func riskSample(rng *rand.Rand, base int, p float64) models.HeartRateSample {
	var avg int
	switch {
	case p < 0.2:
		avg = base - int(float64(base)*p*4)
		if avg < riskFloor {
			avg = riskFloor
		}
	case p < 0.7:
		avg = 5 + rng.Intn(6)
	default:
		avg = 5 + rng.Intn(11)
	}

	lo := avg - 2
	if lo < 0 {
		lo = 0
	}
	return models.HeartRateSample{
		HeartbeatMax: avg + 2,
		HeartbeatMin: lo,
		HeartbeatAvg: avg,
		IsRisk:       true,
	}
}

// normalSample 正常时段：时段/周末系数、晨晚运动、5 分钟扰动
func (g *Generator) normalSample(b Band, t time.Time) models.HeartRateSample {
	hour := t.Hour()
	adjusted := float64(b.BaseRate) * timeFactor(hour) * dayFactor(t.Weekday())
	minRate := float64(b.MinRate)
	maxEx := float64(b.MaxExerciseRate)

	exercising := false
	var rate float64
	if exerciseHour(hour) && g.rng.Float64() < exerciseChance {
		exercising = true
		intensity := 0.6 + g.rng.Float64()*0.3
		rate = adjusted + (maxEx-adjusted)*intensity + g.rng.NormFloat64()*5
		rate = clip(rate, minRate, maxEx)
	} else {
		rate = adjusted + g.rng.NormFloat64()*float64(b.Variance)/3
		rate = clip(rate, minRate, float64(b.BaseRate+b.Variance))
	}

	avg := int(rate)
	if t.Minute()%5 == 0 && !exercising {
		avg += int(g.rng.NormFloat64() * 5)
	}
	avg = clampInt(avg, b.MinRate, b.MaxExerciseRate)

	lo := avg - int(1+g.rng.Float64()*4)
	if lo < b.MinRate {
		lo = b.MinRate
	}
	hi := avg + int(1+g.rng.Float64()*4)
	if hi > b.MaxExerciseRate {
		hi = b.MaxExerciseRate
	}

	return models.HeartRateSample{
		HeartbeatMax: hi,
		HeartbeatMin: lo,
		HeartbeatAvg: avg,
	}
}
