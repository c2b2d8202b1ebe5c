package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wisefido-heartbeat/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	batchBaseName = "heart_rate_all_users"
	xlsxMaxRows   = 1048576
	xlsxSheetName = "Heartbeat"
)

// FilePath 输出文件路径
// 批量模式写 heart_rate_all_users.<ext>；实时模式按日期写 heart_rate_data_YYYYMMDD.<ext>
func FilePath(dir string, mode Mode, ext string, now time.Time) string {
	if mode == Realtime {
		return filepath.Join(dir, fmt.Sprintf("heart_rate_data_%s.%s", now.Format("20060102"), ext))
	}
	return filepath.Join(dir, batchBaseName+"."+ext)
}

// CSVSink 平铺表格输出
// 批量模式覆盖写；实时模式追加写，文件为空时才写表头
type CSVSink struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// NewCSVSink 创建 CSV 输出
func NewCSVSink(path string, mode Mode) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == Realtime {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(models.CSVHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
		w.Flush()
	}

	return &CSVSink{path: path, f: f, w: w}, nil
}

func (s *CSVSink) Name() string { return "csv" }

// Path 输出文件路径
func (s *CSVSink) Path() string { return s.path }

// Write 每条记录写完即 flush，中断时不会留下半行
func (s *CSVSink) Write(_ context.Context, sample *models.HeartRateSample) error {
	if err := s.w.Write(models.CSVRecord(sample)); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// JSONSink JSON 输出
// 批量模式为流式写出的 JSON 数组，Close 时补齐结尾；实时模式为 JSON Lines 追加写
type JSONSink struct {
	path  string
	mode  Mode
	f     *os.File
	w     *bufio.Writer
	count int
}

// NewJSONSink 创建 JSON 输出
func NewJSONSink(path string, mode Mode) (*JSONSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == Realtime {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open json file: %w", err)
	}

	s := &JSONSink{path: path, mode: mode, f: f, w: bufio.NewWriter(f)}
	if mode == Batch {
		if _, err := s.w.WriteString("[\n"); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write json header: %w", err)
		}
	}
	return s, nil
}

func (s *JSONSink) Name() string { return "json" }

// Path 输出文件路径
func (s *JSONSink) Path() string { return s.path }

func (s *JSONSink) Write(_ context.Context, sample *models.HeartRateSample) error {
	line, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	if s.mode == Batch && s.count > 0 {
		if _, err := s.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if s.mode == Realtime {
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
		if err := s.w.Flush(); err != nil {
			return err
		}
	}
	s.count++
	return nil
}

func (s *JSONSink) Close() error {
	if s.mode == Batch {
		if _, err := s.w.WriteString("\n]\n"); err != nil {
			s.f.Close()
			return err
		}
	}
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// XLSXSink Excel 输出（StreamWriter），Close 时保存
// 单个工作表超过行数上限时自动新建工作表
type XLSXSink struct {
	path  string
	f     *excelize.File
	sw    *excelize.StreamWriter
	sheet int
	row   int
}

// NewXLSXSink 创建 Excel 输出
func NewXLSXSink(path string) (*XLSXSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	s := &XLSXSink{path: path, f: excelize.NewFile()}
	if err := s.f.SetSheetName("Sheet1", xlsxSheetName); err != nil {
		s.f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := s.openSheet(xlsxSheetName); err != nil {
		s.f.Close()
		return nil, err
	}
	return s, nil
}

func (s *XLSXSink) openSheet(name string) error {
	sw, err := s.f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	header := make([]interface{}, len(models.CSVHeader))
	for i, h := range models.CSVHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	s.sw = sw
	s.sheet++
	s.row = 1
	return nil
}

func (s *XLSXSink) Name() string { return "xlsx" }

// Path 输出文件路径
func (s *XLSXSink) Path() string { return s.path }

func (s *XLSXSink) Write(_ context.Context, sample *models.HeartRateSample) error {
	if s.row >= xlsxMaxRows {
		if err := s.sw.Flush(); err != nil {
			return fmt.Errorf("failed to flush sheet: %w", err)
		}
		name := fmt.Sprintf("%s_%d", xlsxSheetName, s.sheet+1)
		if _, err := s.f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := s.openSheet(name); err != nil {
			return err
		}
	}

	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	risk := 0
	if sample.IsRisk {
		risk = 1
	}
	return s.sw.SetRow(cell, []interface{}{
		sample.UserID,
		sample.TimestampString(),
		sample.HeartbeatMax,
		sample.HeartbeatMin,
		sample.HeartbeatAvg,
		risk,
	})
}

func (s *XLSXSink) Close() error {
	defer s.f.Close()

	if err := s.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := s.f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save xlsx: %w", err)
	}
	return nil
}
