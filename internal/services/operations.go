package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/j-veylop/mission-control/internal/db"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/momentum"
	"github.com/j-veylop/mission-control/internal/services/projection"
	"github.com/j-veylop/mission-control/internal/services/snapshot"
	"github.com/j-veylop/mission-control/internal/usage"
)

// Activity kinds written by the manager.
const (
	ActivityTaskCreated = "task_created"
	ActivityAgentEvent  = "agent_event"
	ActivityEventKind   = "event"
)

// ErrInvalidInput is returned when a request is missing required fields.
var ErrInvalidInput = errors.New("invalid input")

// AgentEventInput is an event posted by the agent or the activity webhook.
type AgentEventInput struct {
	Details   json.RawMessage `json:"details,omitempty"`
	ProjectID *int64          `json:"project_id,omitempty"`
	Type      string          `json:"type,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Summary computes the merged usage rollup.
func (m *Manager) Summary(ctx context.Context) *models.UsageRollup {
	return m.usage.Compute(ctx)
}

// Budget computes the budget report for the current rollup. Escalations
// since the previous evaluation are broadcast.
func (m *Manager) Budget(ctx context.Context) models.BudgetReport {
	return m.observe(m.usage.Compute(ctx))
}

// Projection forecasts both budget windows at the current burn rate.
func (m *Manager) Projection(ctx context.Context) models.BudgetProjection {
	rollup := m.usage.Compute(ctx)
	return projection.Project(m.evaluator.Report(rollup), rollup, m.now())
}

// SessionStats returns the main agent's latest session, or nil.
func (m *Manager) SessionStats(ctx context.Context) *models.SessionStats {
	return m.usage.SessionStats(ctx)
}

// Ingest records a remotely reported cost event in the cost event log and
// then in the in-memory accumulator. A failed write leaves the accumulator
// untouched so a retry is not counted twice.
func (m *Manager) Ingest(ctx context.Context, ev models.ReportedEvent) (*models.CostEvent, error) {
	if err := usage.ValidateEvent(ev); err != nil {
		return nil, err
	}

	stored := &models.CostEvent{
		EventID:      uuid.NewString(),
		Model:        ev.Model,
		Feature:      ev.Feature,
		InputTokens:  ev.InputTokens,
		OutputTokens: ev.OutputTokens,
		Cost:         ev.Cost,
	}
	if err := m.database.InsertCostEvent(ctx, stored); err != nil {
		return nil, err
	}
	if err := m.usage.Report(ev); err != nil {
		return nil, err
	}

	m.Refresh()
	return stored, nil
}

// Snapshots returns the most recent snapshot rows.
func (m *Manager) Snapshots(ctx context.Context, limit int) ([]models.CostSnapshot, error) {
	return m.database.RecentSnapshots(ctx, limit)
}

// TakeSnapshot writes one snapshot of the current rollup, whether or not
// the periodic snapshotter is running, and returns the number of rows.
func (m *Manager) TakeSnapshot(ctx context.Context) (int, error) {
	event := snapshot.Run(ctx, m.usage, m.database, snapshot.Config{
		Interval: m.cfg.SnapshotInterval,
	}, m.now())
	m.handleSnapshotEvent(event)
	return event.Rows, event.Error
}

// SnapshotTrend returns the per-day snapshot totals of the last days.
func (m *Manager) SnapshotTrend(ctx context.Context, days int) ([]models.DailyTrend, error) {
	return m.database.SnapshotTrend(ctx, days)
}

// Tasks lists tasks ranked by momentum.
func (m *Manager) Tasks(ctx context.Context, filter models.TaskFilter) ([]models.RankedTask, error) {
	tasks, err := m.database.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return momentum.Rank(tasks, m.now()), nil
}

// Task returns a task with its project embedded.
func (m *Manager) Task(ctx context.Context, id int64) (*models.TaskDetail, error) {
	return m.database.GetTaskDetail(ctx, id)
}

// CreateTask stores a task and logs its creation.
func (m *Manager) CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: task name is required", ErrInvalidInput)
	}
	task, err := m.database.CreateTask(ctx, in)
	if err != nil {
		return nil, err
	}

	if _, err := m.AddActivity(ctx, AgentEventInput{
		Type:      ActivityTaskCreated,
		Message:   "Task: " + task.Name,
		ProjectID: task.ProjectID,
	}); err != nil {
		return nil, err
	}

	m.broadcast(TasksUpdatedEvent{})
	return task, nil
}

// UpdateTask applies a patch to a task.
func (m *Manager) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	task, err := m.database.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	m.broadcast(TasksUpdatedEvent{})
	return task, nil
}

// DeleteTask removes a task.
func (m *Manager) DeleteTask(ctx context.Context, id int64) error {
	if err := m.database.DeleteTask(ctx, id); err != nil {
		return err
	}
	m.broadcast(TasksUpdatedEvent{})
	return nil
}

// Projects lists projects, newest first.
func (m *Manager) Projects(ctx context.Context) ([]models.Project, error) {
	return m.database.ListProjects(ctx)
}

// Project returns a single project.
func (m *Manager) Project(ctx context.Context, id int64) (*models.Project, error) {
	return m.database.GetProject(ctx, id)
}

// CreateProject stores a project.
func (m *Manager) CreateProject(ctx context.Context, in models.NewProject) (*models.Project, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	p, err := m.database.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}
	m.broadcast(ProjectsUpdatedEvent{})
	return p, nil
}

// UpdateProject applies a patch to a project.
func (m *Manager) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (*models.Project, error) {
	p, err := m.database.UpdateProject(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	m.broadcast(ProjectsUpdatedEvent{})
	return p, nil
}

// DeleteProject removes a project and its tasks.
func (m *Manager) DeleteProject(ctx context.Context, id int64) error {
	if err := m.database.DeleteProject(ctx, id); err != nil {
		return err
	}
	m.broadcast(ProjectsUpdatedEvent{})
	m.broadcast(TasksUpdatedEvent{})
	return nil
}

// Activity returns the most recent activity entries.
func (m *Manager) Activity(ctx context.Context, limit int) ([]models.Activity, error) {
	return m.database.RecentActivity(ctx, limit)
}

// AddActivity appends to the activity log and broadcasts the new entry.
// Missing type and message fall back to "event" and "Activity".
func (m *Manager) AddActivity(ctx context.Context, in AgentEventInput) (*models.Activity, error) {
	kind := in.Type
	if kind == "" {
		kind = ActivityEventKind
	}
	message := in.Message
	if message == "" {
		message = "Activity"
	}

	a, err := m.database.AddActivity(ctx, kind, message, in.Details, in.ProjectID)
	if err != nil {
		return nil, err
	}
	m.broadcast(ActivityEvent{Activity: a})
	return a, nil
}

// RecordAgentEvent logs an agent webhook event and forwards it to
// subscribers. Missing type and message fall back to "agent_event" and
// "Event".
func (m *Manager) RecordAgentEvent(ctx context.Context, in AgentEventInput) error {
	kind := in.Type
	if kind == "" {
		kind = ActivityAgentEvent
	}
	message := in.Message
	if message == "" {
		message = "Event"
	}

	if _, err := m.database.AddActivity(ctx, kind, message, in.Details, in.ProjectID); err != nil {
		return err
	}
	m.broadcast(AgentEvent{Event: in})
	return nil
}

// Skills lists the skill inventory.
func (m *Manager) Skills(ctx context.Context) ([]models.Skill, error) {
	return m.database.ListSkills(ctx)
}

// RecordSkill counts one use of a known skill. Unknown names are ignored.
func (m *Manager) RecordSkill(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	_, err := m.database.RecordSkillUsage(ctx, name)
	return err
}

// CronJobs lists the cron registry.
func (m *Manager) CronJobs(ctx context.Context) ([]models.CronJob, error) {
	return m.database.ListCronJobs(ctx)
}

// Channels lists messaging channels.
func (m *Manager) Channels(ctx context.Context) ([]models.Channel, error) {
	return m.database.ListChannels(ctx)
}

// UpdateChannel sets a channel's status.
func (m *Manager) UpdateChannel(ctx context.Context, id, status string) error {
	if status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidInput)
	}
	return m.database.UpdateChannelStatus(ctx, id, status)
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
