package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wisefido-heartbeat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFilePath(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)

	assert.Equal(t, filepath.Join("out", "heart_rate_all_users.csv"), FilePath("out", Batch, "csv", now))
	assert.Equal(t, filepath.Join("out", "heart_rate_data_20250314.json"), FilePath("out", Realtime, "json", now))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink_Batch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "hr.csv")
	ctx := context.Background()

	s, err := NewCSVSink(path, Batch)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, testSample("1", 0, 70, false)))
	require.NoError(t, s.Write(ctx, testSample("1", 30*time.Second, 8, true)))
	require.NoError(t, s.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, []string{"1", "2025-03-14T09:00:30", "10", "6", "8", "1"}, rows[2])

	got, err := models.ParseCSVRecord(rows[1])
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(testTime))
	assert.Equal(t, 70, got.HeartbeatAvg)

	// 批量模式重新运行会覆盖
	s, err = NewCSVSink(path, Batch)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Len(t, readCSV(t, path), 1)
}

func TestCSVSink_RealtimeAppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.csv")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := NewCSVSink(path, Realtime)
		require.NoError(t, err)
		require.NoError(t, s.Write(ctx, testSample("5", time.Duration(i)*time.Minute, 72, false)))
		require.NoError(t, s.Close())
	}

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, "2025-03-14T09:01:00", rows[2][1])
}

func TestJSONSink_BatchArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.json")
	ctx := context.Background()

	s, err := NewJSONSink(path, Batch)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, testSample("1", 0, 70, false)))
	require.NoError(t, s.Write(ctx, testSample("2", 0, 9, true)))
	require.NoError(t, s.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []models.HeartRateSample
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].UserID)
	assert.True(t, got[1].IsRisk)
	assert.True(t, got[0].Timestamp.Equal(testTime))
}

func TestJSONSink_EmptyBatchIsValidArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.json")

	s, err := NewJSONSink(path, Batch)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []models.HeartRateSample
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Empty(t, got)
}

func TestJSONSink_RealtimeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.json")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := NewJSONSink(path, Realtime)
		require.NoError(t, err)
		require.NoError(t, s.Write(ctx, testSample("3", time.Duration(i)*time.Minute, 66, false)))
		require.NoError(t, s.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var got models.HeartRateSample
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		assert.Equal(t, "3", got.UserID)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.xlsx")
	ctx := context.Background()

	s, err := NewXLSXSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, testSample("1", 0, 70, false)))
	require.NoError(t, s.Write(ctx, testSample("1", 30*time.Second, 7, true)))
	require.NoError(t, s.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Heartbeat")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, []string{"1", "2025-03-14T09:00:30", "9", "5", "7", "1"}, rows[2])
}
