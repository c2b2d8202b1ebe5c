package users

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wisefido-heartbeat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReader_CSV(t *testing.T) {
	data := "\xEF\xBB\xBFuser_id,name_en,age,region_en\n1001,Hong Gildong,72,Seoul\n1002,Kim Chulsoo,35,Busan\n\n"

	tbl, err := LoadReader("users.csv", strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"user_id", "name_en", "age", "region_en"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, int64(1001), tbl.Profiles[0].UserID)
	assert.Equal(t, 72, tbl.Profiles[0].Age)
	assert.Equal(t, "Seoul", tbl.Profiles[0].Attributes["region_en"])
	assert.Equal(t, 1, tbl.ElderlyCount())
}

func TestLoadReader_JSONArray(t *testing.T) {
	data := `[{"user_id": 1, "age": 80, "name_en": "A"}, {"user_id": 2, "age": 65.0}]`

	tbl, err := LoadReader("users.json", strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"user_id", "age", "name_en"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 65, tbl.Profiles[1].Age)
	assert.Equal(t, "", tbl.Rows[1]["name_en"])
}

func TestLoadReader_JSONByID(t *testing.T) {
	data := `{"200": {"age": 71, "name_en": "B"}, "100": {"age": 90}}`

	tbl, err := LoadReader("users.json", strings.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, int64(100), tbl.Profiles[0].UserID)
	assert.Equal(t, int64(200), tbl.Profiles[1].UserID)
	assert.Equal(t, 2, tbl.ElderlyCount())
}

func TestLoadReader_JSONByIDNumericOrder(t *testing.T) {
	data := `{"10": {"age": 70}, "9": {"age": 71}, "2": {"age": 40}, "100": {"age": 80}}`

	tbl, err := LoadReader("users.json", strings.NewReader(data))
	require.NoError(t, err)

	ids := make([]int64, 0, tbl.Len())
	for _, p := range tbl.Profiles {
		ids = append(ids, p.UserID)
	}
	assert.Equal(t, []int64{2, 9, 10, 100}, ids)
}

func TestSortIDs(t *testing.T) {
	ids := []string{"10", "b", "9", "a", "2"}
	sortIDs(ids)
	assert.Equal(t, []string{"2", "9", "10", "a", "b"}, ids)
}

func TestLoadReader_Errors(t *testing.T) {
	_, err := LoadReader("users.txt", strings.NewReader("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = LoadReader("users.csv", strings.NewReader("user_id,name\n1,a\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))

	_, err = LoadReader("users.csv", strings.NewReader("user_id,age\n1,old\n"))
	assert.Error(t, err)

	_, err = LoadReader("users.csv", strings.NewReader("user_id,age\n1,70.5\n"))
	assert.Error(t, err)

	_, err = LoadReader("users.json", strings.NewReader(`"nope"`))
	assert.Error(t, err)
}

func TestLoad_SynthesizedFormats(t *testing.T) {
	dir := t.TempDir()
	records := Synthesize(25, rand.New(rand.NewSource(42)))

	writers := map[string]func(*bytes.Buffer) error{
		"users.csv":        func(b *bytes.Buffer) error { return WriteCSV(b, records) },
		"users.json":       func(b *bytes.Buffer) error { return WriteJSON(b, records) },
		"users_by_id.json": func(b *bytes.Buffer) error { return WriteJSONByID(b, records) },
		"users.xlsx":       func(b *bytes.Buffer) error { return WriteXLSX(b, records) },
	}

	for name, write := range writers {
		var buf bytes.Buffer
		require.NoError(t, write(&buf), name)

		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		tbl, err := Load(path)
		require.NoError(t, err, name)
		require.Equal(t, len(records), tbl.Len(), name)

		ages := make(map[int64]int)
		for _, p := range tbl.Profiles {
			ages[p.UserID] = p.Age
		}
		for _, r := range records {
			assert.Equal(t, r.Age, ages[r.UserID], name)
		}
	}
}

func TestSynthesize(t *testing.T) {
	records := Synthesize(200, rand.New(rand.NewSource(42)))
	require.Len(t, records, 200)

	for _, r := range records {
		assert.GreaterOrEqual(t, r.UserID, int64(100000000))
		assert.LessOrEqual(t, r.UserID, int64(999999999))
		assert.GreaterOrEqual(t, r.Age, 60)
		assert.LessOrEqual(t, r.Age, 99)
		assert.Len(t, r.PhoneNumber, 11)
		assert.True(t, strings.HasPrefix(r.PhoneNumber, "010"))
		assert.Contains(t, []string{"Male", "Female"}, r.GenderEN)
		assert.NotZero(t, r.Latitude)
	}

	again := Synthesize(200, rand.New(rand.NewSource(42)))
	assert.Equal(t, records, again)
}

func TestSelectHighRisk(t *testing.T) {
	profiles := []models.UserProfile{
		{UserID: 1, Age: 30}, {UserID: 2, Age: 70}, {UserID: 3, Age: 85},
		{UserID: 4, Age: 69}, {UserID: 5, Age: 90}, {UserID: 6, Age: 77},
	}

	selected := SelectHighRisk(profiles, 0.5, rand.New(rand.NewSource(1)))
	assert.Len(t, selected, 2)
	for id := range selected {
		assert.Contains(t, []int64{2, 3, 5, 6}, id)
	}

	// 比例过小时至少选 1 人
	assert.Len(t, SelectHighRisk(profiles, 0.01, rand.New(rand.NewSource(1))), 1)
	assert.Len(t, SelectHighRisk(profiles, 1, rand.New(rand.NewSource(1))), 4)

	young := []models.UserProfile{{UserID: 1, Age: 20}, {UserID: 2, Age: 69}}
	assert.Empty(t, SelectHighRisk(young, 0.5, rand.New(rand.NewSource(1))))

	a := SelectHighRisk(profiles, 0.5, rand.New(rand.NewSource(9)))
	b := SelectHighRisk(profiles, 0.5, rand.New(rand.NewSource(9)))
	assert.Equal(t, a, b)
}
