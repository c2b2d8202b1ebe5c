package sink

import (
	"context"
	"errors"
	"sync"

	"wisefido-heartbeat/internal/models"

	"go.uber.org/zap"
)

// Mode 生成模式，决定文件类输出的命名与写入方式
type Mode int

const (
	Batch Mode = iota
	Realtime
)

func (m Mode) String() string {
	if m == Realtime {
		return "realtime"
	}
	return "batch"
}

// Sink 心率记录输出；每次 Write 写入一条完整记录
type Sink interface {
	Name() string
	Write(ctx context.Context, s *models.HeartRateSample) error
	Close() error
}

// Stats 单个输出的成功/失败计数
type Stats struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// Fanout 将每条记录写入全部输出
// 单个输出失败只记录日志和计数，不影响其他输出
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewFanout 创建扇出写入器
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	stats := make(map[string]*Stats, len(sinks))
	for _, s := range sinks {
		stats[s.Name()] = &Stats{}
	}
	return &Fanout{
		sinks:  sinks,
		logger: logger,
		stats:  stats,
	}
}

// Len 输出数量
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Names 输出名称（按注册顺序）
func (f *Fanout) Names() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Write 写入一条记录，返回成功写入的输出数量
func (f *Fanout) Write(ctx context.Context, s *models.HeartRateSample) int {
	ok := 0
	for _, sk := range f.sinks {
		err := sk.Write(ctx, s)

		f.mu.Lock()
		st := f.stats[sk.Name()]
		if err != nil {
			st.Failure++
		} else {
			st.Success++
			ok++
		}
		f.mu.Unlock()

		if err != nil {
			f.logger.Error("Failed to write sample",
				zap.String("sink", sk.Name()),
				zap.String("user_id", s.UserID),
				zap.String("timestamp", s.TimestampString()),
				zap.Error(err),
			)
		}
	}
	return ok
}

// Stats 计数快照
func (f *Fanout) Stats() map[string]Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]Stats, len(f.stats))
	for name, st := range f.stats {
		out[name] = *st
	}
	return out
}

// Close 关闭全部输出，返回合并后的错误
func (f *Fanout) Close() error {
	var errs []error
	for _, sk := range f.sinks {
		if err := sk.Close(); err != nil {
			f.logger.Error("Failed to close sink", zap.String("sink", sk.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
