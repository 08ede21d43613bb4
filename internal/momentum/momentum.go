// Package momentum derives the execution-priority score of tasks.
package momentum

import (
	"math"
	"sort"
	"time"

	"github.com/j-veylop/mission-control/internal/models"
)

const (
	maxRecencyBonus  = 20.0
	recencyDecayRate = 2.0 // points lost per hour of age
	defaultBonus     = 5
)

var complexityBonus = map[string]int{
	models.ComplexityHigh:   15,
	models.ComplexityMedium: 5,
	models.ComplexityLow:    0,
}

// Score returns override + recency bonus + complexity bonus, rounded and
// clamped to [0, 100].
func Score(task *models.Task, now time.Time) int {
	ageHours := now.Sub(task.CreatedAt).Hours()
	recency := math.Max(0, maxRecencyBonus-recencyDecayRate*ageHours)

	bonus, ok := complexityBonus[task.Complexity]
	if !ok {
		bonus = defaultBonus
	}

	score := float64(task.MomentumScore) + recency + float64(bonus)
	return int(math.Min(100, math.Max(0, math.Round(score))))
}

// Rank scores the tasks and orders them by score descending, then by
// creation time descending. Stored overrides are left untouched.
func Rank(tasks []models.Task, now time.Time) []models.RankedTask {
	ranked := make([]models.RankedTask, len(tasks))
	for i := range tasks {
		ranked[i] = models.RankedTask{Task: tasks[i], Momentum: Score(&tasks[i], now)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Momentum != ranked[j].Momentum {
			return ranked[i].Momentum > ranked[j].Momentum
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	return ranked
}
