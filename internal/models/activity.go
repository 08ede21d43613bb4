package models

import (
	"encoding/json"
	"time"
)

// Activity is one entry of the append-only activity log.
type Activity struct {
	Timestamp time.Time       `json:"timestamp"`
	Details   json.RawMessage `json:"details"`
	ProjectID *int64          `json:"project_id"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	ID        int64           `json:"id"`
}

// Skill is an entry of the agent's skill inventory.
type Skill struct {
	LastUsed    *time.Time `json:"last_used"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ID          int64      `json:"id"`
	UsageCount  int        `json:"usage_count"`
}

// CronJob is a scheduled job and the cost it has accumulated.
type CronJob struct {
	LastRun         *time.Time `json:"last_run"`
	NextRun         *time.Time `json:"next_run"`
	Name            string     `json:"name"`
	Schedule        string     `json:"schedule"`
	Status          string     `json:"status"`
	ID              int64      `json:"id"`
	AccumulatedCost float64    `json:"accumulated_cost"`
}

// Channel is a messaging channel connected to the agent.
type Channel struct {
	LastSeen *time.Time `json:"last_seen"`
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
}

// CostSnapshot is a per-model row written by the periodic snapshotter.
type CostSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Feature   string    `json:"feature"`
	ID        int64     `json:"id"`
	Tokens    int64     `json:"tokens"`
	TotalCost float64   `json:"total_cost"`
}

// CostEvent is a persisted reported-cost event.
type CostEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	EventID      string    `json:"event_id"`
	Model        string    `json:"model"`
	Feature      string    `json:"feature"`
	ID           int64     `json:"id"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Cost         float64   `json:"cost"`
}

// DailyTrend is the latest snapshotted total of one calendar day.
type DailyTrend struct {
	Date string  `json:"date"`
	Cost float64 `json:"cost"`
}
