package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
)

// AddActivity appends an entry to the activity log and trims the log once it
// grows past its cap. Empty or null details are stored as NULL.
func (db *DB) AddActivity(ctx context.Context, kind, message string, details json.RawMessage, projectID *int64) (*models.Activity, error) {
	var detailsCol sql.NullString
	if len(details) > 0 && string(details) != "null" {
		detailsCol = sql.NullString{String: string(details), Valid: true}
	}

	ts := db.now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO activity (timestamp, type, message, details, project_id)
		VALUES (?, ?, ?, ?, ?)`,
		formatTime(ts), kind, message, detailsCol, nullInt64(projectID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	id, _ := result.LastInsertId()

	if err := db.trim(ctx, "activity", activityCap, activityKeep); err != nil {
		logger.Warn("failed to trim activity", "error", err)
	}

	return &models.Activity{
		ID:        id,
		Timestamp: ts.UTC(),
		Type:      kind,
		Message:   message,
		Details:   details,
		ProjectID: projectID,
	}, nil
}

// RecentActivity returns up to limit entries, newest first. The limit is
// clamped to [1, 100] with a default of 50.
func (db *DB) RecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = defaultRecentRows
	}
	limit = min(limit, maxActivityLimit)

	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, type, message, details, project_id
		FROM activity
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []models.Activity{}
	for rows.Next() {
		var (
			a         models.Activity
			ts        string
			details   sql.NullString
			projectID sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &ts, &a.Type, &a.Message, &details, &projectID); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Timestamp = parseTime(ts)
		if details.Valid {
			a.Details = json.RawMessage(details.String)
		}
		a.ProjectID = int64Ptr(projectID)
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// trim deletes the oldest rows of table once its row count exceeds limit,
// keeping the newest keep rows.
func (db *DB) trim(ctx context.Context, table string, limit, keep int) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return fmt.Errorf("failed to count %s: %w", table, err)
	}
	if count <= limit {
		return nil
	}

	_, err := db.ExecContext(ctx, `
		DELETE FROM `+table+` WHERE id NOT IN (
			SELECT id FROM `+table+` ORDER BY id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("failed to trim %s: %w", table, err)
	}
	return nil
}

// ListSkills returns the skill inventory.
func (db *DB) ListSkills(ctx context.Context) ([]models.Skill, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, usage_count, last_used, status
		FROM skills ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	skills := []models.Skill{}
	for rows.Next() {
		var (
			s        models.Skill
			lastUsed sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.UsageCount, &lastUsed, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		s.LastUsed = timePtr(lastUsed)
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// RecordSkillUsage bumps the usage counter of a known skill. It reports
// whether the skill exists.
func (db *DB) RecordSkillUsage(ctx context.Context, name string) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE skills SET usage_count = usage_count + 1, last_used = ?
		WHERE name = ?`, formatTime(db.now()), name)
	if err != nil {
		return false, fmt.Errorf("failed to record skill usage: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// AddSkill registers a skill with one use, or bumps the counter when it is
// already known.
func (db *DB) AddSkill(ctx context.Context, name, description string) error {
	now := formatTime(db.now())
	_, err := db.ExecContext(ctx, `
		INSERT INTO skills (name, description, usage_count, last_used, status)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			usage_count = usage_count + 1,
			last_used = excluded.last_used`,
		name, description, now, defaultSkillStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to add skill: %w", err)
	}
	return nil
}

// ListCronJobs returns the registered cron jobs.
func (db *DB) ListCronJobs(ctx context.Context) ([]models.CronJob, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, schedule, last_run, next_run, status, accumulated_cost
		FROM cron_jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cron jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []models.CronJob{}
	for rows.Next() {
		var (
			j                models.CronJob
			lastRun, nextRun sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.Name, &j.Schedule, &lastRun, &nextRun, &j.Status, &j.AccumulatedCost); err != nil {
			return nil, fmt.Errorf("failed to scan cron job: %w", err)
		}
		j.LastRun = timePtr(lastRun)
		j.NextRun = timePtr(nextRun)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpsertCronJob registers a job by name. For a known job the run times are
// replaced when given and cost is added to the accumulated cost.
func (db *DB) UpsertCronJob(ctx context.Context, name, schedule string, lastRun, nextRun *time.Time, cost float64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cron_jobs (name, schedule, last_run, next_run, status, accumulated_cost)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_run = COALESCE(excluded.last_run, last_run),
			next_run = COALESCE(excluded.next_run, next_run),
			accumulated_cost = accumulated_cost + excluded.accumulated_cost`,
		name, schedule, nullTime(lastRun), nullTime(nextRun), defaultCronStatus, cost,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cron job: %w", err)
	}
	return nil
}

// ListChannels returns the messaging channels.
func (db *DB) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, status, last_seen FROM channels ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	channels := []models.Channel{}
	for rows.Next() {
		var (
			c        models.Channel
			lastSeen sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		c.LastSeen = timePtr(lastSeen)
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// UpdateChannelStatus sets a channel's status. Moving to active also stamps
// last_seen.
func (db *DB) UpdateChannelStatus(ctx context.Context, id, status string) error {
	query := `UPDATE channels SET status = ? WHERE id = ?`
	args := []any{status, id}
	if status == channelActive {
		query = `UPDATE channels SET status = ?, last_seen = ? WHERE id = ?`
		args = []any{status, formatTime(db.now()), id}
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %s: %w", id, ErrNotFound)
	}
	return nil
}
