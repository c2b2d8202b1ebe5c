package users

import (
	"math/rand"

	"wisefido-heartbeat/internal/models"
)

// SelectHighRisk 从 70 岁及以上用户中无放回抽取高风险用户
// 抽取数量为 max(1, int(老年人数 * fraction))；没有老年用户时返回空集合
func SelectHighRisk(profiles []models.UserProfile, fraction float64, rng *rand.Rand) map[int64]bool {
	selected := make(map[int64]bool)

	var elderly []int64
	seen := make(map[int64]bool)
	for _, p := range profiles {
		if p.IsElderly() && !seen[p.UserID] {
			seen[p.UserID] = true
			elderly = append(elderly, p.UserID)
		}
	}
	if len(elderly) == 0 {
		return selected
	}

	n := int(float64(len(elderly)) * fraction)
	if n < 1 {
		n = 1
	}
	if n > len(elderly) {
		n = len(elderly)
	}

	for _, idx := range rng.Perm(len(elderly))[:n] {
		selected[elderly[idx]] = true
	}
	return selected
}
