package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout 心率记录时间戳格式（ISO-8601，秒精度，无时区）
const TimestampLayout = "2006-01-02T15:04:05"

// CSVHeader 平铺表格输出的列顺序（顺序有意义，下游按位置解析）
var CSVHeader = []string{"user_id", "timestamp", "heartbeat_max", "heartbeat_min", "heartbeat_avg", "is_risk"}

// UserProfile 用户基础信息（只读输入）
type UserProfile struct {
	UserID     int64             `json:"user_id"`
	Age        int               `json:"age"`
	Attributes map[string]string `json:"attributes,omitempty"` // 其余列（姓名、地区等），仅供看板展示
}

// IsElderly 是否为 70 岁及以上用户（高风险候选）
func (u UserProfile) IsElderly() bool {
	return u.Age >= 70
}

// RiskEpisode 风险事件区间 [Start, End)
type RiskEpisode struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 事件持续时长
func (e RiskEpisode) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Contains t 是否落在事件区间内（左闭右开）
func (e RiskEpisode) Contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// Progress t 在事件区间内的进度，取值 [0,1]
func (e RiskEpisode) Progress(t time.Time) float64 {
	total := e.End.Sub(e.Start).Seconds()
	if total <= 0 {
		return 1
	}
	p := t.Sub(e.Start).Seconds() / total
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// HeartRateSample 单个时间点的心率记录
// 不变量: 0 <= HeartbeatMin <= HeartbeatAvg <= HeartbeatMax
type HeartRateSample struct {
	UserID       string    `json:"user_id"`
	Timestamp    time.Time `json:"timestamp"`
	HeartbeatMax int       `json:"heartbeat_max"`
	HeartbeatMin int       `json:"heartbeat_min"`
	HeartbeatAvg int       `json:"heartbeat_avg"`
	IsRisk       bool      `json:"is_risk"`
}

// sampleJSON 线上 JSON 结构（timestamp 为字符串）
type sampleJSON struct {
	UserID       string `json:"user_id"`
	Timestamp    string `json:"timestamp"`
	HeartbeatMax int    `json:"heartbeat_max"`
	HeartbeatMin int    `json:"heartbeat_min"`
	HeartbeatAvg int    `json:"heartbeat_avg"`
	IsRisk       bool   `json:"is_risk"`
}

// TimestampString 格式化后的时间戳
func (s *HeartRateSample) TimestampString() string {
	return s.Timestamp.Format(TimestampLayout)
}

// Key 自然键 (user_id, timestamp)
func (s *HeartRateSample) Key() string {
	return s.UserID + "#" + s.TimestampString()
}

// Valid 检查 min/avg/max 不变量
func (s *HeartRateSample) Valid() bool {
	return s.HeartbeatMin >= 0 && s.HeartbeatMin <= s.HeartbeatAvg && s.HeartbeatAvg <= s.HeartbeatMax
}

func (s HeartRateSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		UserID:       s.UserID,
		Timestamp:    s.TimestampString(),
		HeartbeatMax: s.HeartbeatMax,
		HeartbeatMin: s.HeartbeatMin,
		HeartbeatAvg: s.HeartbeatAvg,
		IsRisk:       s.IsRisk,
	})
}

func (s *HeartRateSample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*s = HeartRateSample{
		UserID:       raw.UserID,
		Timestamp:    ts,
		HeartbeatMax: raw.HeartbeatMax,
		HeartbeatMin: raw.HeartbeatMin,
		HeartbeatAvg: raw.HeartbeatAvg,
		IsRisk:       raw.IsRisk,
	}
	return nil
}

// ParseTimestamp 按本地时区解析记录时间戳
func ParseTimestamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts, nil
}

// CSVRecord 转换为表格行（is_risk 为 0/1）
func CSVRecord(s *HeartRateSample) []string {
	risk := "0"
	if s.IsRisk {
		risk = "1"
	}
	return []string{
		s.UserID,
		s.TimestampString(),
		strconv.Itoa(s.HeartbeatMax),
		strconv.Itoa(s.HeartbeatMin),
		strconv.Itoa(s.HeartbeatAvg),
		risk,
	}
}

// ParseCSVRecord 从表格行解析心率记录
func ParseCSVRecord(record []string) (*HeartRateSample, error) {
	if len(record) != len(CSVHeader) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(CSVHeader), len(record))
	}

	ts, err := ParseTimestamp(record[1])
	if err != nil {
		return nil, err
	}

	ints := make([]int, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(record[2+i])
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", CSVHeader[2+i], record[2+i], err)
		}
		ints[i] = v
	}

	var risk bool
	switch record[5] {
	case "1", "true", "True":
		risk = true
	case "0", "false", "False":
		risk = false
	default:
		return nil, fmt.Errorf("invalid is_risk %q", record[5])
	}

	return &HeartRateSample{
		UserID:       record[0],
		Timestamp:    ts,
		HeartbeatMax: ints[0],
		HeartbeatMin: ints[1],
		HeartbeatAvg: ints[2],
		IsRisk:       risk,
	}, nil
}
