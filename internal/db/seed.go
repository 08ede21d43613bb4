package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/mission-control/internal/models"
)

var defaultSkills = []string{
	"weather",
	"clawhub",
	"healthcheck",
	"create-rule",
	"create-skill",
	"update-cursor-settings",
}

// Seed fills empty tables with the initial dashboard content. Tables that
// already hold rows are left alone, so Seed is safe to call on every start.
func (db *DB) Seed(ctx context.Context) error {
	seeders := []struct {
		table string
		seed  func(context.Context) error
	}{
		{"activity", db.seedActivity},
		{"projects", db.seedProjects},
		{"skills", db.seedSkills},
		{"cron_jobs", db.seedCronJobs},
		{"channels", db.seedChannels},
	}

	for _, s := range seeders {
		empty, err := db.isEmpty(ctx, s.table)
		if err != nil {
			return err
		}
		if !empty {
			continue
		}
		if err := s.seed(ctx); err != nil {
			return fmt.Errorf("failed to seed %s: %w", s.table, err)
		}
	}
	return nil
}

func (db *DB) isEmpty(ctx context.Context, table string) (bool, error) {
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+`)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return !exists, nil
}

func (db *DB) seedActivity(ctx context.Context) error {
	if _, err := db.AddActivity(ctx, "system", "Mission Control started", nil, nil); err != nil {
		return err
	}
	_, err := db.AddActivity(ctx, "gateway", "Waiting for Gateway connection", nil, nil)
	return err
}

func (db *DB) seedProjects(ctx context.Context) error {
	progress := 10
	_, err := db.CreateProject(ctx, models.NewProject{
		Name:        "Mission Control Dashboard",
		Description: "Building the central command dashboard for monitoring all agent operations, costs, and projects",
		Status:      "in_progress",
		Priority:    "high",
		Progress:    &progress,
		Tags:        "infrastructure,dashboard,internal-tool",
	})
	return err
}

func (db *DB) seedSkills(ctx context.Context) error {
	now := db.now()
	for i, name := range defaultSkills {
		lastUsed := now.Add(-time.Duration(i) * time.Hour)
		_, err := db.ExecContext(ctx, `
			INSERT INTO skills (name, description, usage_count, last_used, status)
			VALUES (?, ?, 0, ?, ?)`,
			name, name+" skill", formatTime(lastUsed), defaultSkillStatus,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) seedCronJobs(ctx context.Context) error {
	now := db.now()
	jobs := []struct {
		name     string
		schedule string
		every    time.Duration
	}{
		{"Dashboard sync", "0 * * * *", time.Hour},
		{"Cost aggregation", "*/5 * * * *", 5 * time.Minute},
	}
	for _, j := range jobs {
		next := now.Add(j.every)
		if err := db.UpsertCronJob(ctx, j.name, j.schedule, &now, &next, 0); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) seedChannels(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO channels (id, name, status, last_seen) VALUES
			('telegram', 'Telegram', 'active', ?),
			('whatsapp', 'WhatsApp', 'not_linked', NULL)`,
		formatTime(db.now()),
	)
	return err
}
