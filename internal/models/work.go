package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Task complexities.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// DefaultMomentum is the base momentum of a task without an override.
const DefaultMomentum = 50

// Project is a unit of agent work grouping tasks.
type Project struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	StatusNotes   *string   `json:"status_notes"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	Tags          string    `json:"tags"`
	ID            int64     `json:"id"`
	Progress      int       `json:"progress"`
	EstimatedCost float64   `json:"estimated_cost"`
	ActualCost    float64   `json:"actual_cost"`
}

// Task is a schedulable item of work, optionally attached to a project.
type Task struct {
	CreatedAt     time.Time `json:"created_at"`
	ProjectID     *int64    `json:"project_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Complexity    string    `json:"complexity"`
	Status        string    `json:"status"`
	ID            int64     `json:"id"`
	MomentumScore int       `json:"momentum_score"`
	EstimatedCost float64   `json:"estimated_cost"`
}

// RankedTask is a task with its derived momentum, as served to clients.
// Momentum shadows the stored override in the JSON encoding.
type RankedTask struct {
	Task
	Momentum int `json:"momentum_score"`
}

// TaskDetail is a task with its parent project embedded.
type TaskDetail struct {
	Project *Project `json:"project,omitempty"`
	Task
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	ProjectID *int64
	Status    string
}

// Tags is a comma separated tag list. It decodes from either a JSON string
// or an array of strings.
type Tags string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = Tags(strings.Join(list, ","))
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tags must be a string or a list of strings: %w", err)
	}
	if s != nil {
		*t = Tags(*s)
	}
	return nil
}

// NewProject is the payload for creating a project.
type NewProject struct {
	Progress      *int     `json:"progress"`
	EstimatedCost *float64 `json:"estimated_cost"`
	ActualCost    *float64 `json:"actual_cost"`
	StatusNotes   *string  `json:"status_notes"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	Priority      string   `json:"priority"`
	Tags          Tags     `json:"tags"`
}

// ProjectPatch lists the fields a project update may change. Nil fields are
// left as they are.
type ProjectPatch struct {
	Status      *string  `json:"status"`
	Progress    *int     `json:"progress"`
	ActualCost  *float64 `json:"actual_cost"`
	StatusNotes *string  `json:"status_notes"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Priority    *string  `json:"priority"`
	Tags        *Tags    `json:"tags"`
}

// NewTask is the payload for creating a task.
type NewTask struct {
	ProjectID     *int64   `json:"project_id"`
	MomentumScore *int     `json:"momentum_score"`
	EstimatedCost *float64 `json:"estimated_cost"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Complexity    string   `json:"complexity"`
	Status        string   `json:"status"`
}

// TaskPatch lists the fields a task update may change.
type TaskPatch struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Complexity    *string `json:"complexity"`
	MomentumScore *int    `json:"momentum_score"`
	Status        *string `json:"status"`
	ProjectID     *int64  `json:"project_id"`
}
