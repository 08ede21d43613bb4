package costs

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/models"
)

func testRollup() (*models.UsageRollup, models.BudgetReport) {
	rollup := &models.UsageRollup{
		ByModel: map[string]models.ModelUsage{
			"claude-haiku": {Cost: 0.5, Tokens: 400},
			"claude-opus":  {Cost: 3, Tokens: 1000},
		},
		ByFeature: map[string]models.FeatureUsage{
			models.FeatureChat:   {Cost: 2},
			models.FeatureSkills: {Cost: 1.5},
		},
		Hourly: []models.HourlyCost{{Hour: 9, Cost: 1}, {Hour: 10, Cost: 0.5}},
		Today:  models.TokenTotals{Input: 1500, Output: 200, Cost: 1.5},
		Week:   models.TokenTotals{Input: 2_500_000, Cost: 3.5},
		Month:  models.TokenTotals{Input: 2_500_000, Cost: 3.5},
	}
	report := models.BudgetReport{
		Daily:   models.BudgetStatus{Alert: models.AlertWarning, Spent: 8, Limit: 10, Percent: 80},
		Monthly: models.BudgetStatus{Alert: models.AlertSafe, Spent: 30, Limit: 200, Percent: 15},
	}
	return rollup, report
}

func readyState() *app.State {
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	return state
}

func TestNew(t *testing.T) {
	m := New(app.NewState())
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() == nil {
		t.Error("Init returned nil")
	}
}

func TestModel_ViewLoading(t *testing.T) {
	m := New(app.NewState())
	m.SetSize(80, 20)

	if !strings.Contains(m.View(), "Reading session logs") {
		t.Error("initial load should show the spinner")
	}
}

func TestModel_ViewPlaceholder(t *testing.T) {
	m := New(readyState())
	m.SetSize(100, 40)

	view := m.View()
	if !strings.Contains(view, "Mission Control") || !strings.Contains(view, "Budget") {
		t.Errorf("placeholder view missing title or budget card: %q", view)
	}
}

func TestModel_View(t *testing.T) {
	state := readyState()
	state.SetUsage(testRollup())
	state.SetTrend([]models.DailyTrend{{Date: "2026-04-01", Cost: 1}, {Date: "2026-04-02", Cost: 2.25}})
	state.SetSession(&models.SessionStats{Status: "active", MessageCount: 12})

	m := New(state)
	m.SetSize(120, 200)
	view := m.View()

	for _, want := range []string{
		"Daily", "$8.00 / $10.00", "WARNING",
		"Monthly", "$30.00 / $200.00",
		"Today", "$1.50", "1.5k", "2.5M",
		"claude-opus", "$3.00", "claude-haiku",
		"Chat", "Skills",
		"2026-04-02", "$2.25",
		"active", "12",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	if strings.Index(view, "claude-opus") > strings.Index(view, "claude-haiku") {
		t.Error("models should be ordered by cost")
	}
}

func TestModel_ToggleHeatmap(t *testing.T) {
	state := readyState()
	state.SetUsage(testRollup())
	m := New(state)
	m.SetSize(120, 200)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if !m.heatmap {
		t.Fatal("c should switch to the heatmap")
	}
	if !strings.Contains(m.View(), "00 ") {
		t.Error("heatmap should render hour markers")
	}
}

func TestModel_Animation(t *testing.T) {
	state := readyState()
	state.SetUsage(testRollup())
	m := New(state)

	_, cmd := m.Update(app.UsageLoadedMsg{})
	if cmd == nil {
		t.Fatal("new usage should start the bar animation")
	}

	start := m.animations[dailyBarKey].StartTime
	m.stepAnimations(start.Add(750 * time.Millisecond))
	mid := m.animations[dailyBarKey].CurrentPercent
	if mid <= 0 || mid >= 80 {
		t.Errorf("mid-animation percent = %.1f, want between 0 and 80", mid)
	}

	m.stepAnimations(start.Add(2 * time.Second))
	if got := m.displayPercent(dailyBarKey, 0); got != 80 {
		t.Errorf("settled percent = %.1f, want 80", got)
	}
	if m.syncAnimationTargets(start.Add(2 * time.Second)) {
		t.Error("settled bars should not keep animating")
	}
}

func TestModel_AnimationClampsOverspend(t *testing.T) {
	state := readyState()
	rollup, report := testRollup()
	report.Daily.Percent = 140
	state.SetUsage(rollup, report)

	m := New(state)
	m.syncAnimationTargets(time.Now())
	if got := m.animations[dailyBarKey].TargetPercent; got != 100 {
		t.Errorf("target = %.1f, want 100", got)
	}
}

func TestRenderProjection(t *testing.T) {
	at := time.Date(2026, 4, 2, 20, 15, 0, 0, time.Local)
	line := renderProjection("By midnight", models.WindowProjection{
		Status:     models.ProjectionWarning,
		Projected:  12,
		ExhaustAt:  &at,
		Comparison: "Typical for you",
		Confidence: "medium",
	})
	for _, want := range []string{"By midnight", "$12.00", "warning", "out at 20:15", "Typical for you", "medium confidence"} {
		if !strings.Contains(line, want) {
			t.Errorf("projection line missing %q: %q", want, line)
		}
	}

	unknown := renderProjection("30-day pace", models.WindowProjection{Status: models.ProjectionUnknown})
	if !strings.Contains(unknown, "not enough data") {
		t.Errorf("unknown projection = %q", unknown)
	}
}

func TestSortedModels(t *testing.T) {
	got := sortedModels(map[string]models.ModelUsage{
		"b": {Cost: 1},
		"a": {Cost: 1},
		"c": {Cost: 5},
	})
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedModels = %v, want %v", got, want)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5k"},
		{2_500_000, "2.5M"},
	}
	for _, tt := range tests {
		if got := formatTokens(tt.in); got != tt.want {
			t.Errorf("formatTokens(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := formatAgo(tt.in); got != tt.want {
			t.Errorf("formatAgo(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
