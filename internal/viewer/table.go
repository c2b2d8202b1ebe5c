package viewer

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"wisefido-heartbeat/internal/users"
)

// ErrNoTable 尚未上传用户表
var ErrNoTable = errors.New("no user table loaded")

// Lang 展示语言，决定性别/地区/姓名取 *_kr 还是 *_en 列
type Lang string

const (
	LangKR Lang = "kr"
	LangEN Lang = "en"
)

// ParseLang 未知值回退为韩文
func ParseLang(s string) Lang {
	if strings.EqualFold(s, string(LangEN)) || strings.EqualFold(s, "english") {
		return LangEN
	}
	return LangKR
}

func (l Lang) column(base string) string {
	if l == LangEN {
		return base + "_en"
	}
	return base + "_kr"
}

// Query 过滤/排序/搜索条件
// Gender、Region 为空表示全部；MaxAge <= 0 表示不限上限
type Query struct {
	SortBy     string
	Descending bool
	Gender     string
	Region     string
	MinAge     int
	MaxAge     int
	Search     string
	Lang       Lang
}

// Rows 查询结果
type Rows struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
	Total   int                 `json:"total"`
}

// UserTable 看板当前的用户表
type UserTable struct {
	mu    sync.RWMutex
	table *users.Table
}

// NewUserTable 创建空用户表
func NewUserTable() *UserTable {
	return &UserTable{}
}

// Replace 替换为新上传的用户表
func (u *UserTable) Replace(t *users.Table) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.table = t
}

// Loaded 是否已有用户表
func (u *UserTable) Loaded() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.table != nil
}

// Snapshot 当前用户表
func (u *UserTable) Snapshot() (*users.Table, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.table == nil {
		return nil, ErrNoTable
	}
	return u.table, nil
}

// Query 按条件返回行：先排序，再按性别/地区/年龄过滤，最后全列模糊搜索
func (u *UserTable) Query(q Query) (*Rows, error) {
	t, err := u.Snapshot()
	if err != nil {
		return nil, err
	}

	rows := filterRows(t, q)
	return &Rows{Columns: t.Columns, Rows: rows, Total: len(t.Rows)}, nil
}

func filterRows(t *users.Table, q Query) []map[string]string {
	rows := make([]map[string]string, len(t.Rows))
	copy(rows, t.Rows)

	sortBy := q.SortBy
	if sortBy == "" || !hasColumn(t.Columns, sortBy) {
		sortBy = "user_id"
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareCells(rows[i][sortBy], rows[j][sortBy])
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	genderCol := q.Lang.column("gender")
	regionCol := q.Lang.column("region")
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := rows[:0]
	for _, row := range rows {
		if q.Gender != "" && hasColumn(t.Columns, genderCol) && row[genderCol] != q.Gender {
			continue
		}
		if q.Region != "" && hasColumn(t.Columns, regionCol) && row[regionCol] != q.Region {
			continue
		}
		if age, err := strconv.ParseFloat(row["age"], 64); err == nil {
			if age < float64(q.MinAge) || (q.MaxAge > 0 && age > float64(q.MaxAge)) {
				continue
			}
		}
		if search != "" && !rowContains(t.Columns, row, search) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// compareCells 两侧均为数字时按数值比较，否则按字符串
func compareCells(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func rowContains(columns []string, row map[string]string, needle string) bool {
	for _, c := range columns {
		if strings.Contains(strings.ToLower(row[c]), needle) {
			return true
		}
	}
	return false
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// Options 性别/地区下拉选项（按首次出现顺序）
type Options struct {
	Genders []string `json:"genders"`
	Regions []string `json:"regions"`
	MinAge  int      `json:"min_age"`
	MaxAge  int      `json:"max_age"`
}

// Options 过滤面板选项
func (u *UserTable) Options(lang Lang) (*Options, error) {
	t, err := u.Snapshot()
	if err != nil {
		return nil, err
	}

	opts := &Options{Genders: []string{}, Regions: []string{}}
	opts.Genders = distinct(t.Rows, lang.column("gender"))
	opts.Regions = distinct(t.Rows, lang.column("region"))
	for i, p := range t.Profiles {
		if i == 0 || p.Age < opts.MinAge {
			opts.MinAge = p.Age
		}
		if i == 0 || p.Age > opts.MaxAge {
			opts.MaxAge = p.Age
		}
	}
	return opts, nil
}

func distinct(rows []map[string]string, col string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// HistogramBin 年龄直方图区间 [From, To)，最后一个区间包含上界
type HistogramBin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// Stats 过滤后用户的统计
type Stats struct {
	Count        int                `json:"count"`
	AgeMin       float64            `json:"age_min"`
	AgeMax       float64            `json:"age_max"`
	AgeMean      float64            `json:"age_mean"`
	Gender       map[string]int     `json:"gender"`
	Region       map[string]int     `json:"region"`
	RegionAvgAge map[string]float64 `json:"region_avg_age"`
	AgeHistogram []HistogramBin     `json:"age_histogram"`
}

const histogramBins = 20

// Stats 计算过滤结果的统计
func (u *UserTable) Stats(q Query) (*Stats, error) {
	t, err := u.Snapshot()
	if err != nil {
		return nil, err
	}
	return computeStats(filterRows(t, q), q.Lang), nil
}

func computeStats(rows []map[string]string, lang Lang) *Stats {
	st := &Stats{
		Count:        len(rows),
		Gender:       make(map[string]int),
		Region:       make(map[string]int),
		RegionAvgAge: make(map[string]float64),
		AgeHistogram: []HistogramBin{},
	}

	genderCol := lang.column("gender")
	regionCol := lang.column("region")
	regionAges := make(map[string][]float64)
	var ages []float64

	for _, row := range rows {
		if g := row[genderCol]; g != "" {
			st.Gender[g]++
		}
		region := row[regionCol]
		if region != "" {
			st.Region[region]++
		}
		age, err := strconv.ParseFloat(row["age"], 64)
		if err != nil {
			continue
		}
		ages = append(ages, age)
		if region != "" {
			regionAges[region] = append(regionAges[region], age)
		}
	}

	for region, list := range regionAges {
		st.RegionAvgAge[region] = mean(list)
	}

	if len(ages) == 0 {
		return st
	}

	st.AgeMin, st.AgeMax = ages[0], ages[0]
	for _, a := range ages {
		st.AgeMin = math.Min(st.AgeMin, a)
		st.AgeMax = math.Max(st.AgeMax, a)
	}
	st.AgeMean = mean(ages)
	st.AgeHistogram = histogram(ages, st.AgeMin, st.AgeMax)
	return st
}

func histogram(values []float64, lo, hi float64) []HistogramBin {
	width := (hi - lo) / histogramBins
	if width == 0 {
		return []HistogramBin{{From: lo, To: hi, Count: len(values)}}
	}

	bins := make([]HistogramBin, histogramBins)
	for i := range bins {
		bins[i].From = lo + float64(i)*width
		bins[i].To = lo + float64(i+1)*width
	}
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= histogramBins {
			i = histogramBins - 1
		}
		bins[i].Count++
	}
	return bins
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Marker 地图标记
type Marker struct {
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Age       string  `json:"age"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locations 地图数据
type Locations struct {
	Available bool     `json:"available"`
	CenterLat float64  `json:"center_lat"`
	CenterLon float64  `json:"center_lon"`
	Markers   []Marker `json:"markers"`
}

// Locations 过滤后带经纬度的用户；表中无经纬度列时 Available 为 false
func (u *UserTable) Locations(q Query) (*Locations, error) {
	t, err := u.Snapshot()
	if err != nil {
		return nil, err
	}

	loc := &Locations{Markers: []Marker{}}
	if !hasColumn(t.Columns, "latitude") || !hasColumn(t.Columns, "longitude") {
		return loc, nil
	}
	loc.Available = true

	var lats, lons []float64
	for _, row := range filterRows(t, q) {
		lat, errLat := strconv.ParseFloat(row["latitude"], 64)
		lon, errLon := strconv.ParseFloat(row["longitude"], 64)
		if errLat != nil || errLon != nil {
			continue
		}
		lats = append(lats, lat)
		lons = append(lons, lon)
		loc.Markers = append(loc.Markers, Marker{
			UserID:    row["user_id"],
			Name:      row[q.Lang.column("name")],
			Age:       row["age"],
			Region:    row[q.Lang.column("region")],
			Latitude:  lat,
			Longitude: lon,
		})
	}
	loc.CenterLat = mean(lats)
	loc.CenterLon = mean(lons)
	return loc, nil
}

// SampleColumns 示例用户表列
var SampleColumns = []string{
	"user_id", "name_kr", "name_en", "age", "gender_kr", "gender_en",
	"region_kr", "region_en", "latitude", "longitude", "phone_number",
}

// SampleRows 示例用户表（上传格式参考）
func SampleRows() [][]string {
	return [][]string{
		{"1001", "홍길동", "Hong Gildong", "28", "남성", "Male", "서울", "Seoul", "37.5665", "126.9780", "010-1234-5678"},
		{"1002", "김철수", "Kim Chulsoo", "35", "남성", "Male", "부산", "Busan", "35.1796", "129.0756", "010-2345-6789"},
		{"1003", "이영희", "Lee Younghee", "42", "여성", "Female", "대구", "Daegu", "35.8714", "128.6014", "010-3456-7890"},
		{"1004", "박민수", "Park Minsoo", "25", "남성", "Male", "인천", "Incheon", "37.4563", "126.7052", "010-4567-8901"},
		{"1005", "정지영", "Jung Jiyoung", "31", "여성", "Female", "광주", "Gwangju", "35.1595", "126.8526", "010-5678-9012"},
	}
}

// SampleTable 示例用户表
func SampleTable() *Rows {
	rows := SampleRows()
	out := &Rows{Columns: SampleColumns, Rows: make([]map[string]string, 0, len(rows)), Total: len(rows)}
	for _, r := range rows {
		m := make(map[string]string, len(SampleColumns))
		for i, c := range SampleColumns {
			m[c] = r[i]
		}
		out.Rows = append(out.Rows, m)
	}
	return out
}

// Grid 将行按列顺序展开为二维字符串表
func (r *Rows) Grid() [][]string {
	grid := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		line := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			line[i] = row[c]
		}
		grid = append(grid, line)
	}
	return grid
}
