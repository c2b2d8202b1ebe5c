package httpapi

import (
	"context"
	"net/http"
	"time"

	"wisefido-heartbeat/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// History 心率历史读取（viewer.HistoryCache 满足）
type History interface {
	Get(ctx context.Context, userID string) ([]models.HeartRateSample, error)
	After(ctx context.Context, userID string, after time.Time) ([]models.HeartRateSample, error)
	Users(ctx context.Context) ([]string, error)
}

// Series 单个用户的心率曲线数据
type Series struct {
	UserID    string                   `json:"user_id"`
	Samples   []models.HeartRateSample `json:"samples"`
	RiskCount int                      `json:"risk_count"`
	Latest    *models.HeartRateSample  `json:"latest,omitempty"`
}

// FeedMessage 实时推送消息：首条为 history，之后为 update
type FeedMessage struct {
	Type    string                   `json:"type"`
	UserID  string                   `json:"user_id"`
	Samples []models.HeartRateSample `json:"samples"`
}

const (
	writeWait      = 10 * time.Second
	defaultRefresh = 30 * time.Second
)

// HeartbeatHandler 心率曲线与实时推送
type HeartbeatHandler struct {
	history  History
	refresh  time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHeartbeatHandler refresh <= 0 时使用 30 秒
func NewHeartbeatHandler(history History, refresh time.Duration, logger *zap.Logger) *HeartbeatHandler {
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	return &HeartbeatHandler{
		history: history,
		refresh: refresh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Users 有心率数据的用户
func (h *HeartbeatHandler) Users(w http.ResponseWriter, r *http.Request) {
	ids, err := h.history.Users(r.Context())
	if err != nil {
		h.logger.Error("Failed to list heartbeat users", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, Fail("failed to list users"))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, Ok(ids))
}

// Series 用户心率曲线
func (h *HeartbeatHandler) Series(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	samples, err := h.history.Get(r.Context(), userID)
	if err != nil && len(samples) == 0 {
		writeJSON(w, http.StatusBadGateway, Fail("failed to load heart rate history"))
		return
	}

	series := Series{UserID: userID, Samples: samples}
	for i := range samples {
		if samples[i].IsRisk {
			series.RiskCount++
		}
	}
	if n := len(samples); n > 0 {
		series.Latest = &samples[n-1]
	}
	writeJSON(w, http.StatusOK, Ok(series))
}

// Feed websocket 实时推送：连接后先发送缓存历史，之后每个刷新周期推送新记录
func (h *HeartbeatHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 读循环只用于感知客户端断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	samples, _ := h.history.Get(ctx, userID)
	if err := h.send(conn, FeedMessage{Type: "history", UserID: userID, Samples: samples}); err != nil {
		return
	}
	var last time.Time
	if n := len(samples); n > 0 {
		last = samples[n-1].Timestamp
	}

	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := h.history.After(ctx, userID, last)
			if err != nil {
				h.logger.Debug("Feed refresh failed", zap.String("user_id", userID), zap.Error(err))
			}
			if len(fresh) == 0 {
				continue
			}
			if err := h.send(conn, FeedMessage{Type: "update", UserID: userID, Samples: fresh}); err != nil {
				return
			}
			last = fresh[len(fresh)-1].Timestamp
		}
	}
}

func (h *HeartbeatHandler) send(conn *websocket.Conn, msg FeedMessage) error {
	if msg.Samples == nil {
		msg.Samples = []models.HeartRateSample{}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("Feed write failed", zap.String("user_id", msg.UserID), zap.Error(err))
		return err
	}
	return nil
}
