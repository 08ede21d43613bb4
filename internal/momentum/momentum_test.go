package momentum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j-veylop/mission-control/internal/models"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func task(id int64, complexity string, override int, age time.Duration) models.Task {
	return models.Task{
		ID:            id,
		Complexity:    complexity,
		MomentumScore: override,
		CreatedAt:     now.Add(-age),
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		task models.Task
		want int
	}{
		{"NewHigh", task(1, models.ComplexityHigh, 50, 0), 85},
		{"FifteenHoursLow", task(1, models.ComplexityLow, 50, 15*time.Hour), 50},
		{"NewMedium", task(1, models.ComplexityMedium, 50, 0), 75},
		{"UnknownComplexity", task(1, "epic", 50, 24*time.Hour), 55},
		{"HalfDecayed", task(1, models.ComplexityLow, 50, 5*time.Hour), 60},
		{"Rounding", task(1, models.ComplexityLow, 50, 9*time.Hour+45*time.Minute), 51},
		{"ClampHigh", task(1, models.ComplexityHigh, 90, 0), 100},
		{"ClampLow", task(1, models.ComplexityLow, -40, 48*time.Hour), 0},
		{"ZeroOverride", task(1, models.ComplexityLow, 0, 100*time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(&tt.task, now); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRank(t *testing.T) {
	tasks := []models.Task{
		task(1, models.ComplexityLow, 50, 30*time.Hour),    // 50
		task(2, models.ComplexityHigh, 50, 0),              // 85
		task(3, models.ComplexityLow, 50, 40*time.Hour),    // 50, older
		task(4, models.ComplexityLow, 50, 20*time.Hour),    // 50, newest of the ties
		task(5, models.ComplexityMedium, 60, 48*time.Hour), // 65
	}

	ranked := Rank(tasks, now)
	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	require.Equal(t, []int64{2, 5, 4, 1, 3}, ids)
	require.Equal(t, 85, ranked[0].Momentum)

	// Stored overrides are not rewritten by a read.
	require.Equal(t, 50, ranked[0].MomentumScore)
	require.Equal(t, 50, tasks[1].MomentumScore)
}

func TestRank_Empty(t *testing.T) {
	require.Empty(t, Rank(nil, now))
}
