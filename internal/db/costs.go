package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
)

// InsertSnapshots writes a batch of snapshot rows in a single transaction.
// Rows without a timestamp are stamped with the current time.
func (db *DB) InsertSnapshots(ctx context.Context, rows []models.CostSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cost_snapshots (timestamp, model, feature, tokens, total_cost)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := db.now()
	for _, row := range rows {
		ts := row.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.ExecContext(ctx, formatTime(ts), row.Model, row.Feature, row.Tokens, row.TotalCost); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit snapshot rows, newest first.
func (db *DB) RecentSnapshots(ctx context.Context, limit int) ([]models.CostSnapshot, error) {
	if limit <= 0 {
		limit = defaultRecentRows
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, model, feature, tokens, total_cost
		FROM cost_snapshots
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshots := []models.CostSnapshot{}
	for rows.Next() {
		var (
			s  models.CostSnapshot
			ts string
		)
		if err := rows.Scan(&s.ID, &ts, &s.Model, &s.Feature, &s.Tokens, &s.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Timestamp = parseTime(ts)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// SnapshotTrend returns, for each UTC day of the last days days that has
// snapshots, the total of that day's latest snapshot batch. Days are ordered
// oldest first.
func (db *DB) SnapshotTrend(ctx context.Context, days int) ([]models.DailyTrend, error) {
	since := formatTime(db.now().AddDate(0, 0, -days))

	rows, err := db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day, SUM(total_cost)
		FROM cost_snapshots
		WHERE timestamp >= ?
		  AND timestamp IN (
			SELECT MAX(timestamp) FROM cost_snapshots
			GROUP BY substr(timestamp, 1, 10)
		  )
		GROUP BY day
		ORDER BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot trend: %w", err)
	}
	defer func() { _ = rows.Close() }()

	trend := []models.DailyTrend{}
	for rows.Next() {
		var d models.DailyTrend
		if err := rows.Scan(&d.Date, &d.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot trend: %w", err)
		}
		trend = append(trend, d)
	}
	return trend, rows.Err()
}

// InsertCostEvent persists a reported cost event and trims the event log once
// it grows past its cap.
func (db *DB) InsertCostEvent(ctx context.Context, ev *models.CostEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = db.now().UTC()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO cost_events (event_id, timestamp, model, feature, input_tokens, output_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, formatTime(ev.Timestamp), ev.Model, ev.Feature,
		ev.InputTokens, ev.OutputTokens, ev.Cost,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cost event: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		ev.ID = id
	}

	// The event is committed; a failed trim is retried by the next insert.
	if err := db.trim(ctx, "cost_events", costEventCap, costEventKeep); err != nil {
		logger.Warn("failed to trim cost events", "error", err)
	}
	return nil
}

// RecentCostEvents returns up to limit events, newest first.
func (db *DB) RecentCostEvents(ctx context.Context, limit int) ([]models.CostEvent, error) {
	if limit <= 0 {
		limit = defaultRecentRows
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, event_id, timestamp, model, feature, input_tokens, output_tokens, cost
		FROM cost_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []models.CostEvent{}
	for rows.Next() {
		var (
			e  models.CostEvent
			ts string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &ts, &e.Model, &e.Feature, &e.InputTokens, &e.OutputTokens, &e.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan cost event: %w", err)
		}
		e.Timestamp = parseTime(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CostEventsSince sums the cost of events recorded at or after since.
func (db *DB) CostEventsSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM cost_events WHERE timestamp >= ?`,
		formatTime(since),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum cost events: %w", err)
	}
	return total, nil
}
