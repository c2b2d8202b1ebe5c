package generator

import (
	"errors"
	"testing"
	"time"

	"wisefido-heartbeat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)

func fixedClock() time.Time { return fixedNow }

func newTestGenerator(seed int64) *Generator {
	return New(WithSeed(seed), WithClock(fixedClock))
}

// riskRuns 返回每段连续 is_risk 的长度
func riskRuns(samples []models.HeartRateSample) []int {
	var runs []int
	cur := 0
	for _, s := range samples {
		if s.IsRisk {
			cur++
			continue
		}
		if cur > 0 {
			runs = append(runs, cur)
			cur = 0
		}
	}
	if cur > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		age  int
		want Band
	}{
		{10, Band{80, 20, 60, 190}},
		{17, Band{80, 20, 60, 183}},
		{18, Band{75, 15, 55, 172}},
		{34, Band{75, 15, 55, 156}},
		{35, Band{70, 15, 50, 145}},
		{49, Band{70, 15, 50, 131}},
		{50, Band{65, 10, 45, 120}},
		{75, Band{65, 10, 45, 95}},
		{99, Band{65, 10, 45, 75}},
		{120, Band{65, 10, 45, 75}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.age), "age %d", tt.age)
	}
}

func TestGenerate_InvalidArguments(t *testing.T) {
	g := newTestGenerator(1)

	_, _, err := g.Generate(1, 30, 0, 30, false)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, _, err = g.Generate(1, 30, 1, 0, false)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, _, err = g.Generate(1, -1, 1, 30, false)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestGenerate_SampleInvariants(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		for _, age := range []int{5, 25, 40, 65, 72, 95, 110} {
			g := newTestGenerator(seed)
			samples, _, err := g.Generate(int64(age), age, 1, 30, true)
			require.NoError(t, err)

			for _, s := range samples {
				require.True(t, s.Valid(), "seed %d age %d sample %+v", seed, age, s)
				require.GreaterOrEqual(t, s.HeartbeatMin, 0)
			}
		}
	}
}

func TestGenerate_HighRiskElderly_OneEpisode(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := newTestGenerator(seed)
		samples, ep, err := g.Generate(7, 80, 1, 30, true)
		require.NoError(t, err)
		require.NotNil(t, ep)

		d := ep.Duration()
		assert.GreaterOrEqual(t, d, 2*time.Minute)
		assert.LessOrEqual(t, d, 15*time.Minute)
		assert.False(t, ep.Start.Before(fixedNow.Add(-24*time.Hour)))
		assert.False(t, ep.End.After(fixedNow))

		runs := riskRuns(samples)
		require.Len(t, runs, 1, "seed %d", seed)
		assert.GreaterOrEqual(t, runs[0], 4)
		assert.LessOrEqual(t, runs[0], 30)

		for _, s := range samples {
			assert.Equal(t, ep.Contains(s.Timestamp), s.IsRisk)
		}
	}
}

func TestGenerate_NoEpisode(t *testing.T) {
	g := newTestGenerator(3)

	samples, ep, err := g.Generate(1, 65, 1, 30, true)
	require.NoError(t, err)
	assert.Nil(t, ep)
	assert.Empty(t, riskRuns(samples))

	samples, ep, err = g.Generate(2, 85, 1, 30, false)
	require.NoError(t, err)
	assert.Nil(t, ep)
	assert.Empty(t, riskRuns(samples))
}

func TestGenerate_DeclinePhase(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		g := newTestGenerator(seed)
		samples, ep, err := g.Generate(9, 78, 1, 30, true)
		require.NoError(t, err)
		require.NotNil(t, ep)

		prev := -1
		for _, s := range samples {
			if !s.IsRisk || ep.Progress(s.Timestamp) >= 0.2 {
				continue
			}
			assert.GreaterOrEqual(t, s.HeartbeatAvg, 25)
			if prev >= 0 {
				assert.LessOrEqual(t, s.HeartbeatAvg, prev)
			}
			prev = s.HeartbeatAvg
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, epA, err := newTestGenerator(42).Generate(1, 75, 1, 30, true)
	require.NoError(t, err)
	b, epB, err := newTestGenerator(42).Generate(1, 75, 1, 30, true)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	assert.True(t, epA.Start.Equal(epB.Start))
	for i := range a {
		assert.Equal(t, a[i].HeartbeatAvg, b[i].HeartbeatAvg)
		assert.Equal(t, a[i].HeartbeatMin, b[i].HeartbeatMin)
		assert.Equal(t, a[i].HeartbeatMax, b[i].HeartbeatMax)
		assert.Equal(t, a[i].IsRisk, b[i].IsRisk)
		assert.True(t, a[i].Timestamp.Equal(b[i].Timestamp))
	}
}

func TestGenerate_ScenarioElderlyRisk(t *testing.T) {
	samples, _, err := newTestGenerator(11).Generate(1, 75, 1, 30, true)
	require.NoError(t, err)
	require.Len(t, samples, 2880)

	risk := 0
	for _, s := range samples {
		assert.Equal(t, "1", s.UserID)
		assert.GreaterOrEqual(t, s.HeartbeatAvg, 5)
		assert.LessOrEqual(t, s.HeartbeatAvg, 100)
		if s.IsRisk {
			risk++
		}
	}
	assert.GreaterOrEqual(t, risk, 4)
	assert.LessOrEqual(t, risk, 30)
	assert.True(t, samples[0].Timestamp.Equal(fixedNow.Add(-24*time.Hour)))
	assert.True(t, samples[len(samples)-1].Timestamp.Before(fixedNow))
}

func TestGenerate_ScenarioAdultNoRisk(t *testing.T) {
	samples, _, err := newTestGenerator(12).Generate(2, 30, 1, 30, false)
	require.NoError(t, err)
	require.Len(t, samples, 2880)

	for _, s := range samples {
		assert.False(t, s.IsRisk)
		assert.GreaterOrEqual(t, s.HeartbeatAvg, 40)
		assert.LessOrEqual(t, s.HeartbeatAvg, 190)
	}
}

func TestGenerate_CSVRoundTrip(t *testing.T) {
	samples, _, err := newTestGenerator(5).Generate(3, 72, 1, 600, true)
	require.NoError(t, err)

	for i := range samples {
		out, err := models.ParseCSVRecord(models.CSVRecord(&samples[i]))
		require.NoError(t, err)
		assert.Equal(t, samples[i].Key(), out.Key())
		assert.Equal(t, samples[i].HeartbeatAvg, out.HeartbeatAvg)
		assert.Equal(t, samples[i].IsRisk, out.IsRisk)
	}
}

func TestGenerate_DaylightSavingKeysUnique(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	cases := []struct {
		name  string
		now   time.Time
		first string
	}{
		{"fall back", time.Date(2025, 11, 2, 12, 0, 0, 0, ny), "2025-11-01T12:00:00"},
		{"spring forward", time.Date(2025, 3, 9, 12, 0, 0, 0, ny), "2025-03-08T12:00:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := tc.now
			g := New(WithSeed(1), WithClock(func() time.Time { return now }))

			samples, _, err := g.Generate(1, 30, 1, 30, false)
			require.NoError(t, err)
			require.Len(t, samples, 2880)
			assert.Equal(t, tc.first, samples[0].TimestampString())
			assert.Equal(t, "2025-"+tc.now.Format("01-02")+"T11:59:30", samples[len(samples)-1].TimestampString())

			keys := make(map[string]bool, len(samples))
			for _, s := range samples {
				assert.False(t, keys[s.Key()], "duplicate key %s", s.Key())
				keys[s.Key()] = true
			}
			assert.Len(t, keys, 2880)
		})
	}
}
