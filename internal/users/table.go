package users

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wisefido-heartbeat/internal/models"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat 不支持的用户表格式
	ErrUnsupportedFormat = errors.New("unsupported user table format")
	// ErrMissingColumn 缺少必需列
	ErrMissingColumn = errors.New("missing required column")
)

// RequiredColumns 用户表必需列
var RequiredColumns = []string{"user_id", "age"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table 用户表
// Columns 保持输入列顺序，Rows 为原始字符串值，Profiles 与 Rows 一一对应
type Table struct {
	Columns  []string
	Rows     []map[string]string
	Profiles []models.UserProfile
}

// Len 用户数量
func (t *Table) Len() int {
	return len(t.Profiles)
}

// ElderlyCount 70 岁及以上用户数量
func (t *Table) ElderlyCount() int {
	n := 0
	for _, p := range t.Profiles {
		if p.IsElderly() {
			n++
		}
	}
	return n
}

// Load 按扩展名加载用户表（.csv / .json / .xlsx）
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user table: %w", err)
	}
	defer f.Close()

	return LoadReader(path, f)
}

// LoadReader 从 reader 加载用户表，name 仅用于判断格式
func LoadReader(name string, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		t, err = readCSV(r)
	case ".json":
		t, err = readJSON(r)
	case ".xlsx":
		t, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, err
	}

	if err := t.buildProfiles(); err != nil {
		return nil, err
	}
	return t, nil
}

func readCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromGrid(records), nil
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return fromGrid(rows), nil
}

// fromGrid 首行为表头
func fromGrid(grid [][]string) *Table {
	t := &Table{}
	if len(grid) == 0 {
		return t
	}

	for _, h := range grid[0] {
		t.Columns = append(t.Columns, strings.TrimSpace(h))
	}

	for _, rec := range grid[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readJSON 支持对象数组，或以 user_id 为键的对象
func readJSON(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	var objects []map[string]interface{}
	switch v := raw.(type) {
	case []interface{}:
		for i, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("json element %d is not an object", i)
			}
			objects = append(objects, obj)
		}
	case map[string]interface{}:
		ids := make([]string, 0, len(v))
		for id := range v {
			ids = append(ids, id)
		}
		sortIDs(ids)
		for _, id := range ids {
			obj, ok := v[id].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("json entry %q is not an object", id)
			}
			obj["user_id"] = id
			objects = append(objects, obj)
		}
	default:
		return nil, fmt.Errorf("json root must be an array or object")
	}

	t := &Table{}
	seen := make(map[string]bool)
	var extra []string
	for _, obj := range objects {
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				if k != "user_id" && k != "age" {
					extra = append(extra, k)
				}
			}
		}
	}
	sort.Strings(extra)
	for _, c := range RequiredColumns {
		if seen[c] {
			t.Columns = append(t.Columns, c)
		}
	}
	t.Columns = append(t.Columns, extra...)

	for _, obj := range objects {
		row := make(map[string]string, len(t.Columns))
		for _, col := range t.Columns {
			row[col] = jsonString(obj[col])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func jsonString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// buildProfiles 解析 user_id/age 列
func (t *Table) buildProfiles() error {
	for _, c := range RequiredColumns {
		if !t.hasColumn(c) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	t.Profiles = make([]models.UserProfile, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, err := parseWhole(row["user_id"])
		if err != nil {
			return fmt.Errorf("row %d: invalid user_id %q: %w", i+1, row["user_id"], err)
		}
		age, err := parseWhole(row["age"])
		if err != nil {
			return fmt.Errorf("row %d: invalid age %q: %w", i+1, row["age"], err)
		}
		if age < 0 {
			return fmt.Errorf("row %d: age must be non-negative, got %d", i+1, age)
		}

		attrs := make(map[string]string, len(row))
		for k, v := range row {
			if k != "user_id" && k != "age" {
				attrs[k] = v
			}
		}
		t.Profiles = append(t.Profiles, models.UserProfile{
			UserID:     id,
			Age:        int(age),
			Attributes: attrs,
		})
	}
	return nil
}

func (t *Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// parseWhole 解析整数，兼容 "75.0" 这类整数值浮点写法
func parseWhole(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number")
	}
	return int64(f), nil
}

// sortIDs 数字 id 按数值升序，非数字 id 排在其后按字典序
func sortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
