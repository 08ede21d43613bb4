// Package snapshot periodically persists the merged usage rollup.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
)

// Feature is written on every snapshot row.
const Feature = "aggregate"

// CronJobName is the cron registry entry refreshed after every run.
const (
	CronJobName     = "Cost aggregation"
	CronJobSchedule = "*/5 * * * *"
)

// UsageSource computes the current merged rollup.
type UsageSource interface {
	Compute(ctx context.Context) *models.UsageRollup
}

// Store persists snapshot rows.
type Store interface {
	InsertSnapshots(ctx context.Context, rows []models.CostSnapshot) error
}

// CronRecorder is implemented by stores that keep a cron job registry.
type CronRecorder interface {
	UpsertCronJob(ctx context.Context, name, schedule string, lastRun, nextRun *time.Time, cost float64) error
}

// Event is emitted after every snapshot run.
type Event struct {
	Rollup *models.UsageRollup
	Error  error
	Rows   int
}

// Config holds configuration for the snapshot service.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// Rows converts a rollup into one snapshot row per model, sorted by model.
func Rows(rollup *models.UsageRollup, ts time.Time) []models.CostSnapshot {
	rows := make([]models.CostSnapshot, 0, len(rollup.ByModel))
	for model, usage := range rollup.ByModel {
		rows = append(rows, models.CostSnapshot{
			Timestamp: ts,
			Model:     model,
			Feature:   Feature,
			TotalCost: usage.Cost,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Model < rows[j].Model })
	return rows
}

// Take computes the rollup once and writes its snapshot rows.
func Take(ctx context.Context, source UsageSource, store Store, now time.Time) (*models.UsageRollup, int, error) {
	rollup := source.Compute(ctx)
	rows := Rows(rollup, now)
	if err := store.InsertSnapshots(ctx, rows); err != nil {
		return rollup, 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return rollup, len(rows), nil
}

// Service runs Take on a fixed interval.
type Service struct {
	source    UsageSource
	store     Store
	now       func() time.Time
	eventChan chan Event
	stopChan  chan struct{}
	doneChan  chan struct{}
	config    Config
}

// New creates a snapshot service and starts its loop. The first snapshot is
// taken immediately.
func New(source UsageSource, store Store, config Config) *Service {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	s := &Service{
		source:    source,
		store:     store,
		now:       time.Now,
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		config:    config,
	}

	go s.loop()

	return s
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// RunOnce takes a snapshot and records the run in the cron registry when the
// store supports it. Failures are logged and returned; the next tick retries.
func (s *Service) RunOnce(ctx context.Context) Event {
	return Run(ctx, s.source, s.store, s.config, s.now())
}

// Run takes one snapshot at now outside of any loop, bounded by
// config.Timeout, and records it in the cron registry when store supports
// it. A panicking source or store is reported as a failed run.
func Run(ctx context.Context, source UsageSource, store Store, config Config, now time.Time) (event Event) {
	defer func() {
		if p := recover(); p != nil {
			event = Event{Error: fmt.Errorf("snapshot run panicked: %v", p)}
			logger.Error("snapshot failed", "error", event.Error)
		}
	}()

	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	rollup, n, err := Take(ctx, source, store, now)
	if err != nil {
		logger.Error("snapshot failed", "error", err)
		return Event{Rollup: rollup, Error: err}
	}

	if rec, ok := store.(CronRecorder); ok {
		next := now.Add(config.Interval)
		if err := rec.UpsertCronJob(ctx, CronJobName, CronJobSchedule, &now, &next, 0); err != nil {
			logger.Warn("failed to record snapshot run", "error", err)
		}
	}

	logger.Info("snapshot written",
		"models", n,
		"today", fmt.Sprintf("%.4f", rollup.Today.Cost),
		"week", fmt.Sprintf("%.4f", rollup.Week.Cost),
		"month", fmt.Sprintf("%.4f", rollup.Month.Cost),
	)
	return Event{Rollup: rollup, Rows: n}
}

// loop runs the background snapshot goroutine.
func (s *Service) loop() {
	defer close(s.doneChan)

	s.sendEvent(s.RunOnce(context.Background()))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendEvent(s.RunOnce(context.Background()))
		case <-s.stopChan:
			return
		}
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the loop and waits for an in-flight run to finish.
func (s *Service) Close() error {
	close(s.stopChan)
	<-s.doneChan
	return nil
}
