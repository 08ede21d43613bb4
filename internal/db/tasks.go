package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/j-veylop/mission-control/internal/models"
)

const taskColumns = `id, project_id, name, description, complexity,
	momentum_score, estimated_cost, status, created_at`

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t         models.Task
		projectID sql.NullInt64
		created   string
	)
	err := row.Scan(
		&t.ID,
		&projectID,
		&t.Name,
		&t.Description,
		&t.Complexity,
		&t.MomentumScore,
		&t.EstimatedCost,
		&t.Status,
		&created,
	)
	if err != nil {
		return nil, err
	}
	t.ProjectID = int64Ptr(projectID)
	t.CreatedAt = parseTime(created)
	return &t, nil
}

// ListTasks returns the tasks matching filter in insertion order.
func (db *DB) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProjectID != nil {
		where = append(where, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask returns a task by id.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := scanTask(db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// GetTaskDetail returns a task with its project embedded when it has one.
func (db *DB) GetTaskDetail(ctx context.Context, id int64) (*models.TaskDetail, error) {
	t, err := db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.TaskDetail{Task: *t}
	if t.ProjectID != nil {
		p, err := db.GetProject(ctx, *t.ProjectID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, err
		default:
			detail.Project = p
		}
	}
	return detail, nil
}

// CreateTask inserts a task with defaults: complexity medium, momentum 50,
// status pending.
func (db *DB) CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error) {
	complexity := in.Complexity
	if complexity == "" {
		complexity = models.ComplexityMedium
	}
	momentum := models.DefaultMomentum
	if in.MomentumScore != nil {
		momentum = *in.MomentumScore
	}
	status := in.Status
	if status == "" {
		status = defaultTaskStatus
	}
	var estimated float64
	if in.EstimatedCost != nil {
		estimated = *in.EstimatedCost
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO tasks (project_id, name, description, complexity,
			momentum_score, estimated_cost, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(in.ProjectID), in.Name, in.Description, complexity,
		momentum, estimated, status, formatTime(db.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get task id: %w", err)
	}
	return db.GetTask(ctx, id)
}

// UpdateTask applies the non-nil fields of patch.
func (db *DB) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	var (
		set  []string
		args []any
	)
	add := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Complexity != nil {
		add("complexity", *patch.Complexity)
	}
	if patch.MomentumScore != nil {
		add("momentum_score", *patch.MomentumScore)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.ProjectID != nil {
		add("project_id", *patch.ProjectID)
	}

	if len(set) == 0 {
		return db.GetTask(ctx, id)
	}

	args = append(args, id)
	result, err := db.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return db.GetTask(ctx, id)
}

// DeleteTask removes a task.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}
