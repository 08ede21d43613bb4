package usage

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j-veylop/mission-control/internal/models"
)

var testNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.Local)

func fixedClock() time.Time { return testNow }

// writeSessions writes a sessions.json for agent under root.
func writeSessions(t *testing.T, root, agent string, sessions any) {
	t.Helper()
	path := SessionsFile(root, agent)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	data, err := json.Marshal(sessions)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func msg(ts time.Time, model string, cost float64, extra map[string]any) map[string]any {
	m := map[string]any{
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
		"model":     model,
		"usage":     map[string]any{"input": 100, "output": 50, "cacheRead": 10, "cacheWrite": 5},
		"cost":      map[string]any{"total": cost},
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestAggregate_Shape(t *testing.T) {
	tests := []struct {
		name    string
		records []models.UsageRecord
	}{
		{"Empty", nil},
		{"One", []models.UsageRecord{{Timestamp: testNow, Model: "a", Feature: "Chat", Cost: 1}}},
		{"Many", func() []models.UsageRecord {
			var recs []models.UsageRecord
			for i := range 500 {
				ts := testNow.Add(-time.Duration(i) * time.Hour)
				recs = append(recs, models.UsageRecord{Timestamp: ts, DaysDiff: DaysBetween(ts, testNow), Model: "m", Feature: "Chat", Cost: 0.01})
			}
			return recs
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, folding := range []bool{false, true} {
				r := Aggregate(tt.records, testNow, AggregateOptions{DailyFolding: folding})
				require.Len(t, r.Hourly, 24)
				require.Len(t, r.Daily, 30)
				for i, h := range r.Hourly {
					require.Equal(t, i, h.Hour)
				}
				require.Equal(t, "2026-02-14", r.Daily[0].Date)
				require.Equal(t, "2026-03-15", r.Daily[29].Date)
				require.NotNil(t, r.ByModel)
				require.NotNil(t, r.ByFeature)
			}
		})
	}
}

func TestAggregate_Periods(t *testing.T) {
	rec := func(days int) models.UsageRecord {
		return models.UsageRecord{
			Timestamp:   testNow.Add(-time.Duration(days) * 24 * time.Hour),
			DaysDiff:    days,
			Model:       "m",
			Feature:     "Chat",
			InputTokens: 10,
			Cost:        2,
		}
	}

	tests := []struct {
		name               string
		days               int
		today, week, month float64
	}{
		{"Today", 0, 2, 2, 2},
		{"SixDays", 6, 0, 2, 2},
		{"SevenDays", 7, 0, 0, 2},
		{"TenDays", 10, 0, 0, 2},
		{"TwentyNineDays", 29, 0, 0, 2},
		{"ThirtyDays", 30, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Aggregate([]models.UsageRecord{rec(tt.days)}, testNow, AggregateOptions{})
			require.Equal(t, tt.today, r.Today.Cost)
			require.Equal(t, tt.week, r.Week.Cost)
			require.Equal(t, tt.month, r.Month.Cost)
			// Category maps are lifetime totals.
			require.Equal(t, 2.0, r.ByModel["m"].Cost)
			require.Equal(t, int64(10), r.ByModel["m"].Tokens)
			require.Equal(t, 2.0, r.ByFeature["Chat"].Cost)
		})
	}
}

func TestAggregate_HourlyAndTokens(t *testing.T) {
	ts := time.Date(2026, 3, 15, 9, 5, 0, 0, time.Local)
	records := []models.UsageRecord{
		{Timestamp: ts, Model: "a", Feature: "Chat", InputTokens: 100, OutputTokens: 50, CacheReadTokens: 7, CacheWriteTokens: 3, Cost: 0.5},
		{Timestamp: ts.Add(10 * time.Minute), Model: "a", Feature: "Skills", InputTokens: 1, OutputTokens: 2, Cost: 0.25},
		{Model: "b", Feature: "Chat", Cost: 4},
	}

	r := Aggregate(records, testNow, AggregateOptions{})
	require.InDelta(t, 0.75, r.Hourly[9].Cost, 1e-9)
	require.Equal(t, int64(101), r.Today.Input)
	require.Equal(t, int64(52), r.Today.Output)
	require.Equal(t, int64(7), r.Today.CacheRead)
	require.Equal(t, int64(3), r.Today.CacheWrite)
	require.Equal(t, int64(153), r.ByModel["a"].Tokens)
	// Undated records only reach the lifetime maps.
	require.InDelta(t, 0.75, r.Today.Cost, 1e-9)
	require.Equal(t, 4.0, r.ByModel["b"].Cost)
}

func TestAggregate_DailyFolding(t *testing.T) {
	records := []models.UsageRecord{
		{Timestamp: testNow, Model: "m", Feature: "Chat", Cost: 1},
		{Timestamp: testNow.AddDate(0, 0, -3), DaysDiff: 3, Model: "m", Feature: "Chat", Cost: 2},
		{Timestamp: testNow.AddDate(0, 0, -45), DaysDiff: 45, Model: "m", Feature: "Chat", Cost: 8},
	}

	stub := Aggregate(records, testNow, AggregateOptions{})
	for _, d := range stub.Daily {
		require.Zero(t, d.Cost)
	}

	folded := Aggregate(records, testNow, AggregateOptions{DailyFolding: true})
	require.Equal(t, 1.0, folded.Daily[29].Cost)
	require.Equal(t, 2.0, folded.Daily[26].Cost)
	var total float64
	for _, d := range folded.Daily {
		total += d.Cost
	}
	require.Equal(t, 3.0, total)
}

func TestMerge(t *testing.T) {
	base := Aggregate([]models.UsageRecord{
		{Timestamp: testNow, Model: "sonnet", Feature: "Chat", InputTokens: 10, OutputTokens: 5, Cost: 1.5},
	}, testNow, AggregateOptions{})

	reported := models.ReportedTotals{
		Today:     0.5,
		Week:      0.75,
		Month:     1,
		ByModel:   map[string]float64{"sonnet": 0.25, "opus": 2},
		ByFeature: map[string]float64{"Chat": 1, "Remote": 3},
	}

	merged := Merge(base, reported)
	require.InDelta(t, 2.0, merged.Today.Cost, 1e-9)
	require.InDelta(t, 2.25, merged.Week.Cost, 1e-9)
	require.InDelta(t, 2.5, merged.Month.Cost, 1e-9)
	require.InDelta(t, 1.75, merged.ByModel["sonnet"].Cost, 1e-9)
	require.Equal(t, int64(15), merged.ByModel["sonnet"].Tokens)
	require.Equal(t, models.ModelUsage{Cost: 2, Tokens: 0}, merged.ByModel["opus"])
	require.InDelta(t, 2.5, merged.ByFeature["Chat"].Cost, 1e-9)
	require.Equal(t, 3.0, merged.ByFeature["Remote"].Cost)

	// Inputs are untouched, so a second merge of the same base is identical.
	require.Equal(t, 1.5, base.Today.Cost)
	_, ok := base.ByModel["opus"]
	require.False(t, ok)
	require.Equal(t, merged, Merge(base, reported))
}

func TestReportedUsage_Add(t *testing.T) {
	r := NewReportedUsage()
	r.Add(models.ReportedEvent{Cost: 1.25, Model: "opus", Feature: "Remote"})
	r.Add(models.ReportedEvent{Cost: 0.75})
	r.Add(models.ReportedEvent{Cost: 0, Model: "haiku"})

	snap := r.Snapshot()
	require.Equal(t, 2.0, snap.Today)
	require.Equal(t, 2.0, snap.Week)
	require.Equal(t, 2.0, snap.Month)
	require.Equal(t, map[string]float64{"opus": 1.25, "haiku": 0}, snap.ByModel)
	require.Equal(t, map[string]float64{"Remote": 1.25}, snap.ByFeature)

	// Snapshots are copies.
	snap.ByModel["opus"] = 100
	require.Equal(t, 1.25, r.Snapshot().ByModel["opus"])
}

func TestReportedUsage_Concurrent(t *testing.T) {
	r := NewReportedUsage()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				r.Add(models.ReportedEvent{Cost: 0.5, Model: "m"})
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 500.0, r.Snapshot().Month)
	require.Equal(t, 500.0, r.Snapshot().ByModel["m"])
}

func TestInferFeature(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"ToolCalls", `{"toolCalls":[{"name":"x"}],"role":"system","thinking":"hmm"}`, models.FeatureSkills},
		{"EmptyToolCalls", `{"toolCalls":[],"role":"system"}`, models.FeatureSystem},
		{"System", `{"role":"system","thinking":"hmm"}`, models.FeatureSystem},
		{"Thinking", `{"role":"assistant","thinking":{"text":"x"}}`, models.FeatureThinking},
		{"EmptyThinking", `{"role":"assistant","thinking":""}`, models.FeatureChat},
		{"Chat", `{"role":"assistant"}`, models.FeatureChat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tt.json), &m))
			require.Equal(t, tt.want, InferFeature(&m))
		})
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		ok       bool
		cost     float64
		model    string
		daysDiff int
		undated  bool
	}{
		{"NoUsageOrCost", `{"role":"user","timestamp":"2026-03-15T10:00:00Z"}`, false, 0, "", 0, false},
		{"CostTotal", `{"cost":{"total":0.42},"usage":{"cost":9},"model":"opus"}`, true, 0.42, "opus", 0, false},
		{"UsageCostNumber", `{"usage":{"input":1,"cost":0.3}}`, true, 0.3, "unknown", 0, false},
		{"UsageCostObject", `{"usage":{"cost":{"total":0.6}}}`, true, 0.6, "unknown", 0, false},
		{"NoCost", `{"usage":{"input":5}}`, true, 0, "unknown", 0, false},
		{"EpochMillis", `{"usage":{},"timestamp":` + epochMillis(testNow.Add(-49*time.Hour)) + `}`, true, 0, "unknown", 2, false},
		{"RFC3339", `{"usage":{},"timestamp":"` + testNow.Add(-8*24*time.Hour).UTC().Format(time.RFC3339) + `"}`, true, 0, "unknown", 8, false},
		{"BadTimestamp", `{"usage":{},"timestamp":"yesterday-ish"}`, true, 0, "unknown", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tt.json), &m))
			rec, ok := NormalizeMessage(&m, testNow)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			require.InDelta(t, tt.cost, rec.Cost, 1e-9)
			require.Equal(t, tt.model, rec.Model)
			require.Equal(t, tt.daysDiff, rec.DaysDiff)
			require.Equal(t, tt.undated, rec.Timestamp.IsZero())
		})
	}
}

func epochMillis(ts time.Time) string {
	data, _ := json.Marshal(ts.UnixMilli())
	return string(data)
}

func TestReader_NoSources(t *testing.T) {
	for _, root := range []string{"", filepath.Join(t.TempDir(), "missing")} {
		svc := NewService(NewReader(root, WithClock(fixedClock)), nil, AggregateOptions{})
		r := svc.Compute(context.Background())
		require.Len(t, r.Hourly, 24)
		require.Len(t, r.Daily, 30)
		require.Zero(t, r.Month.Cost)
		require.Empty(t, r.ByModel)
		require.Nil(t, svc.SessionStats(context.Background()))
	}
}

func TestReader_SkipsBrokenSource(t *testing.T) {
	root := t.TempDir()
	writeSessions(t, root, "alpha", map[string]any{
		"s1": map[string]any{"messages": []any{msg(testNow, "sonnet", 1, nil)}},
	})
	writeSessions(t, root, "gamma", map[string]any{
		"s1": map[string]any{"messages": []any{msg(testNow.Add(-10*24*time.Hour), "opus", 2, nil)}},
	})
	brokenPath := SessionsFile(root, "beta")
	require.NoError(t, os.MkdirAll(filepath.Dir(brokenPath), 0o750))
	require.NoError(t, os.WriteFile(brokenPath, []byte("{not json"), 0o600))

	reader := NewReader(root, WithClock(fixedClock))
	require.Len(t, reader.Sources(), 3)

	r := Aggregate(reader.Read(context.Background()), testNow, AggregateOptions{})
	require.Equal(t, 1.0, r.Today.Cost)
	require.Equal(t, 3.0, r.Month.Cost)
	require.Equal(t, 1.0, r.ByModel["sonnet"].Cost)
	require.Equal(t, 2.0, r.ByModel["opus"].Cost)
	require.Equal(t, int64(150), r.ByModel["opus"].Tokens)
}

func TestFileSource_MalformedMessageKeepsSiblings(t *testing.T) {
	root := t.TempDir()
	writeSessions(t, root, "main", map[string]any{
		"mixed": map[string]any{
			"status": "active",
			"messages": []any{
				msg(testNow, "sonnet", 1, nil),
				msg(testNow, "opus", 4, map[string]any{"model": 5}),
			},
		},
		"broken": map[string]any{"status": 7, "messages": []any{msg(testNow, "opus", 9, nil)}},
		"clean":  map[string]any{"messages": []any{msg(testNow, "haiku", 2, nil)}},
	})

	sessions, err := NewFileSource("main", SessionsFile(root, "main")).Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.NotContains(t, sessions, "broken")
	require.Equal(t, "active", sessions["mixed"].Status)
	require.Len(t, sessions["mixed"].Messages, 1)
	require.Equal(t, "sonnet", sessions["mixed"].Messages[0].Model)

	r := Aggregate(NewReader(root, WithClock(fixedClock)).Read(context.Background()), testNow, AggregateOptions{})
	require.Equal(t, 3.0, r.Today.Cost)
	require.NotContains(t, r.ByModel, "opus")
}

type slowSource struct{ delay time.Duration }

func (s slowSource) Name() string { return "slow" }

func (s slowSource) Sessions(ctx context.Context) (map[string]Session, error) {
	select {
	case <-time.After(s.delay):
		return map[string]Session{"x": {Messages: []Message{{Usage: &MessageUsage{}, Cost: json.RawMessage(`{"total":5}`)}}}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Sessions(context.Context) (map[string]Session, error) {
	return nil, errors.New("host unreachable")
}

type stuckSource struct{}

func (stuckSource) Name() string { return "stuck" }

// Sessions ignores its context entirely.
func (stuckSource) Sessions(context.Context) (map[string]Session, error) {
	time.Sleep(time.Second)
	return nil, nil
}

func TestReader_SlowSourceDegrades(t *testing.T) {
	reader := NewReader("",
		WithClock(fixedClock),
		WithTimeout(20*time.Millisecond),
		WithSources(slowSource{delay: time.Second}, failingSource{}, stuckSource{}, slowSource{}),
	)

	start := time.Now()
	records := reader.Read(context.Background())
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, records, 1)
	require.Equal(t, 5.0, records[0].Cost)
}

type panickingSource struct{}

func (panickingSource) Name() string { return "panicking" }

func (panickingSource) Sessions(context.Context) (map[string]Session, error) {
	var sessions map[string]Session
	sessions["x"] = Session{}
	return sessions, nil
}

func TestReader_PanickingSourceDegrades(t *testing.T) {
	reader := NewReader("",
		WithClock(fixedClock),
		WithTimeout(time.Second),
		WithSources(panickingSource{}, slowSource{}),
	)

	var records []models.UsageRecord
	require.NotPanics(t, func() { records = reader.Read(context.Background()) })
	require.Len(t, records, 1)
	require.Equal(t, 5.0, records[0].Cost)
}

func TestService_ComputeMergesReported(t *testing.T) {
	root := t.TempDir()
	writeSessions(t, root, "main", map[string]any{
		"s1": map[string]any{"messages": []any{
			msg(testNow, "sonnet", 1, map[string]any{"toolCalls": []any{map[string]any{"id": 1}}}),
		}},
	})

	svc := NewService(NewReader(root, WithClock(fixedClock)), nil, AggregateOptions{})
	require.NoError(t, svc.Report(models.ReportedEvent{Cost: 0.5, Model: "sonnet", Feature: "Skills"}))
	require.ErrorIs(t, svc.Report(models.ReportedEvent{Cost: -1}), ErrInvalidCost)

	r := svc.Compute(context.Background())
	require.Equal(t, 1.5, r.Today.Cost)
	require.Equal(t, 1.5, r.ByModel["sonnet"].Cost)
	require.Equal(t, 1.5, r.ByFeature["Skills"].Cost)

	// Each compute merges exactly once.
	require.Equal(t, r, svc.Compute(context.Background()))
}

func TestValidateEvent(t *testing.T) {
	require.NoError(t, ValidateEvent(models.ReportedEvent{Cost: 0}))
	require.NoError(t, ValidateEvent(models.ReportedEvent{Cost: 2.5}))
	for _, c := range []float64{-0.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		require.ErrorIs(t, ValidateEvent(models.ReportedEvent{Cost: c}), ErrInvalidCost, "cost %v", c)
	}
}

func TestSessionStats(t *testing.T) {
	root := t.TempDir()
	writeSessions(t, root, "main", map[string]any{
		"old": map[string]any{"status": "done", "messages": []any{
			map[string]any{"timestamp": testNow.Add(-2 * time.Hour).UTC().Format(time.RFC3339)},
		}},
		"new": map[string]any{"messages": []any{
			map[string]any{"timestamp": testNow.Add(-3 * time.Hour).UTC().Format(time.RFC3339)},
			map[string]any{"timestamp": testNow.Add(-time.Minute).UTC().Format(time.RFC3339)},
		}},
		"undated": map[string]any{"status": "running", "messages": []any{map[string]any{"role": "user"}}},
		"empty":   map[string]any{"status": "running"},
	})

	stats := NewReader(root, WithClock(fixedClock)).SessionStats(context.Background())
	require.NotNil(t, stats)
	require.Equal(t, "idle", stats.Status)
	require.Equal(t, 2, stats.MessageCount)
	require.True(t, stats.LastActivity.Equal(testNow.Add(-time.Minute)))
}

func TestLatestSession_None(t *testing.T) {
	require.Nil(t, LatestSession(nil))
	require.Nil(t, LatestSession(map[string]Session{"a": {Status: "running"}}))
}
