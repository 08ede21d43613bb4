// Package models defines data structures and domain types.
package models

import "time"

// Feature names produced by usage classification.
const (
	FeatureSkills   = "Skills"
	FeatureSystem   = "System"
	FeatureThinking = "Thinking"
	FeatureChat     = "Chat"
)

// UnknownModel is used for records that carry no model name.
const UnknownModel = "unknown"

// HoursPerDay and DailyWindow fix the shape of the time series.
const (
	HoursPerDay = 24
	DailyWindow = 30
)

// UsageRecord is a single normalized usage observation read from a session log.
type UsageRecord struct {
	Timestamp        time.Time
	Model            string
	Feature          string
	InputTokens      int64
	OutputTokens     int64
	CacheReadTokens  int64
	CacheWriteTokens int64
	Cost             float64
	DaysDiff         int
}

// TokenTotals is the per-period token and cost accumulator.
type TokenTotals struct {
	Input      int64   `json:"input"`
	Output     int64   `json:"output"`
	CacheRead  int64   `json:"cacheRead"`
	CacheWrite int64   `json:"cacheWrite"`
	Cost       float64 `json:"cost"`
}

// AddRecord folds a record's tokens and cost into the totals.
func (t *TokenTotals) AddRecord(r UsageRecord) {
	t.Input += r.InputTokens
	t.Output += r.OutputTokens
	t.CacheRead += r.CacheReadTokens
	t.CacheWrite += r.CacheWriteTokens
	t.Cost += r.Cost
}

// ModelUsage is the lifetime cost and input+output token count of a model.
type ModelUsage struct {
	Cost   float64 `json:"cost"`
	Tokens int64   `json:"tokens"`
}

// FeatureUsage is the lifetime cost of a feature category.
type FeatureUsage struct {
	Cost float64 `json:"cost"`
}

// HourlyCost is the cost accrued today in one local clock hour.
type HourlyCost struct {
	Hour int     `json:"hour"`
	Cost float64 `json:"cost"`
}

// DailyCost is the cost of one calendar day (YYYY-MM-DD).
type DailyCost struct {
	Date string  `json:"date"`
	Cost float64 `json:"cost"`
}

// UsageRollup is the fully shaped aggregation result served to clients.
type UsageRollup struct {
	ByModel   map[string]ModelUsage   `json:"byModel"`
	ByFeature map[string]FeatureUsage `json:"byFeature"`
	Hourly    []HourlyCost            `json:"hourly"`
	Daily     []DailyCost             `json:"daily"`
	Today     TokenTotals             `json:"today"`
	Week      TokenTotals             `json:"week"`
	Month     TokenTotals             `json:"month"`
}

// Clone returns a deep copy of the rollup.
func (u *UsageRollup) Clone() *UsageRollup {
	out := &UsageRollup{
		Today:     u.Today,
		Week:      u.Week,
		Month:     u.Month,
		ByModel:   make(map[string]ModelUsage, len(u.ByModel)),
		ByFeature: make(map[string]FeatureUsage, len(u.ByFeature)),
		Hourly:    append([]HourlyCost(nil), u.Hourly...),
		Daily:     append([]DailyCost(nil), u.Daily...),
	}
	for k, v := range u.ByModel {
		out.ByModel[k] = v
	}
	for k, v := range u.ByFeature {
		out.ByFeature[k] = v
	}
	return out
}

// ReportedEvent is a cost event pushed by a remote agent.
type ReportedEvent struct {
	Model        string  `json:"model,omitempty"`
	Feature      string  `json:"feature,omitempty"`
	Cost         float64 `json:"cost"`
	InputTokens  int64   `json:"input_tokens,omitempty"`
	OutputTokens int64   `json:"output_tokens,omitempty"`
}

// ReportedTotals is a point-in-time copy of the reported-usage accumulator.
// Map values are costs.
type ReportedTotals struct {
	ByModel   map[string]float64 `json:"byModel"`
	ByFeature map[string]float64 `json:"byFeature"`
	Today     float64            `json:"today"`
	Week      float64            `json:"week"`
	Month     float64            `json:"month"`
}

// SessionStats describes the most recently active session of the main agent.
type SessionStats struct {
	LastActivity *time.Time `json:"lastActivity"`
	Status       string     `json:"status"`
	MessageCount int        `json:"messageCount,omitempty"`
}
