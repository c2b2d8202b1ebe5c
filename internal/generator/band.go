package generator

import "time"

// Band 年龄段心率基线参数
type Band struct {
	BaseRate        int // 静息基线
	Variance        int // 正常波动幅度
	MinRate         int // 下限
	MaxExerciseRate int // 运动时上限
}

// BandFor 按年龄计算基线参数
// MaxExerciseRate 不低于 BaseRate+Variance，保证极端年龄下截断区间不倒置
func BandFor(age int) Band {
	var b Band
	switch {
	case age < 18:
		b = Band{BaseRate: 80, Variance: 20, MinRate: 60, MaxExerciseRate: 200 - age}
	case age < 35:
		b = Band{BaseRate: 75, Variance: 15, MinRate: 55, MaxExerciseRate: 190 - age}
	case age < 50:
		b = Band{BaseRate: 70, Variance: 15, MinRate: 50, MaxExerciseRate: 180 - age}
	default:
		b = Band{BaseRate: 65, Variance: 10, MinRate: 45, MaxExerciseRate: 170 - age}
	}
	if b.MaxExerciseRate < b.BaseRate+b.Variance {
		b.MaxExerciseRate = b.BaseRate + b.Variance
	}
	return b
}

// streamRange 实时模式首个 tick 的均匀取值区间
func streamRange(age int) (float64, float64) {
	switch {
	case age < 18:
		return 70, 90
	case age < 35:
		return 65, 85
	case age < 50:
		return 60, 80
	default:
		return 55, 75
	}
}

// timeFactor 批量模式的时段系数
func timeFactor(hour int) float64 {
	switch {
	case hour >= 22 || hour < 6:
		return 0.8
	case hour >= 6 && hour < 9:
		return 1.1
	case hour >= 17 && hour < 19:
		return 1.15
	default:
		return 1.0
	}
}

// dayFactor 周末系数
func dayFactor(day time.Weekday) float64 {
	if day == time.Saturday || day == time.Sunday {
		return 0.95
	}
	return 1.0
}

// exerciseHour 是否处于可能运动的时段
func exerciseHour(hour int) bool {
	return (hour >= 6 && hour < 8) || (hour >= 18 && hour < 20)
}

// streamTimeFactor 实时模式的时段系数
func streamTimeFactor(hour int) float64 {
	switch {
	case hour >= 22 || hour < 6:
		return 0.85
	case (hour >= 6 && hour < 9) || (hour >= 17 && hour < 19):
		return 1.1
	default:
		return 1.0
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
