package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/j-veylop/mission-control/internal/models"
)

const projectColumns = `id, name, description, status, priority, progress,
	estimated_cost, actual_cost, tags, status_notes, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p                models.Project
		notes            sql.NullString
		created, updated string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.Priority,
		&p.Progress,
		&p.EstimatedCost,
		&p.ActualCost,
		&p.Tags,
		&notes,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		p.StatusNotes = &notes.String
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// GetProject returns a project by id.
func (db *DB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := scanProject(db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// CreateProject inserts a project, applying defaults for omitted fields.
func (db *DB) CreateProject(ctx context.Context, in models.NewProject) (*models.Project, error) {
	now := formatTime(db.now())

	status := in.Status
	if status == "" {
		status = defaultProjectStatus
	}
	priority := in.Priority
	if priority == "" {
		priority = defaultPriority
	}
	var progress int
	if in.Progress != nil {
		progress = *in.Progress
	}
	var estimated, actual float64
	if in.EstimatedCost != nil {
		estimated = *in.EstimatedCost
	}
	if in.ActualCost != nil {
		actual = *in.ActualCost
	}
	var notes sql.NullString
	if in.StatusNotes != nil {
		notes = nullString(*in.StatusNotes)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO projects (name, description, status, priority, progress,
			estimated_cost, actual_cost, tags, status_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.Description, status, priority, progress,
		estimated, actual, string(in.Tags), notes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get project id: %w", err)
	}
	return db.GetProject(ctx, id)
}

// UpdateProject applies the non-nil fields of patch and bumps updated_at.
func (db *DB) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (*models.Project, error) {
	set := []string{"updated_at = ?"}
	args := []any{formatTime(db.now())}

	add := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Progress != nil {
		add("progress", *patch.Progress)
	}
	if patch.ActualCost != nil {
		add("actual_cost", *patch.ActualCost)
	}
	if patch.StatusNotes != nil {
		add("status_notes", nullString(*patch.StatusNotes))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.Tags != nil {
		add("tags", string(*patch.Tags))
	}

	args = append(args, id)
	result, err := db.ExecContext(ctx,
		`UPDATE projects SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return db.GetProject(ctx, id)
}

// DeleteProject removes a project and every task attached to it.
func (db *DB) DeleteProject(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project tasks: %w", err)
	}

	return tx.Commit()
}
