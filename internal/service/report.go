package service

import (
	"sort"
	"time"

	"wisefido-heartbeat/internal/models"
	"wisefido-heartbeat/internal/sink"
)

// maxRiskSummaries 报告中保留的风险记录条数
const maxRiskSummaries = 10

// RiskSummary 风险记录摘要
type RiskSummary struct {
	UserID       string    `json:"user_id"`
	Timestamp    time.Time `json:"timestamp"`
	HeartbeatAvg int       `json:"heartbeat_avg"`
}

// Report 一次运行的统计
type Report struct {
	RunID         string                `json:"run_id"`
	Mode          string                `json:"mode"`
	Users         int                   `json:"users"`
	ElderlyUsers  int                   `json:"elderly_users"`
	HighRiskUsers []int64               `json:"high_risk_users"`
	Samples       int64                 `json:"samples"`
	RiskSamples   int64                 `json:"risk_samples"`
	Ticks         int64                 `json:"ticks,omitempty"`
	Sinks         map[string]sink.Stats `json:"sinks"`
	RiskSummaries []RiskSummary         `json:"risk_summaries"`
	Interrupted   bool                  `json:"interrupted"`
	Elapsed       time.Duration         `json:"elapsed"`
}

func (r *Report) record(s *models.HeartRateSample) {
	r.Samples++
	if !s.IsRisk {
		return
	}
	r.RiskSamples++
	if len(r.RiskSummaries) < maxRiskSummaries {
		r.RiskSummaries = append(r.RiskSummaries, RiskSummary{
			UserID:       s.UserID,
			Timestamp:    s.Timestamp,
			HeartbeatAvg: s.HeartbeatAvg,
		})
	}
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
