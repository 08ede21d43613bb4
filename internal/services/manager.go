// Package services provides service orchestration for the server and the TUI.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/budget"
	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/db"
	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services/gateway"
	"github.com/j-veylop/mission-control/internal/services/snapshot"
	"github.com/j-veylop/mission-control/internal/services/watcher"
	"github.com/j-veylop/mission-control/internal/usage"
)

type (
	// UsageUpdatedEvent is emitted whenever a fresh rollup has been computed.
	UsageUpdatedEvent struct {
		Rollup *models.UsageRollup
		Budget models.BudgetReport
	}

	// BudgetAlertEvent is emitted when a budget window escalates.
	BudgetAlertEvent struct {
		Alert budget.Alert
	}

	// GatewayEvent carries a message or status change from the agent gateway.
	GatewayEvent struct {
		Message json.RawMessage
		Status  gateway.Status
	}

	// TasksUpdatedEvent is emitted after any task mutation.
	TasksUpdatedEvent struct{}

	// ProjectsUpdatedEvent is emitted after any project mutation.
	ProjectsUpdatedEvent struct{}

	// ActivityEvent is emitted when an entry is appended to the activity log.
	ActivityEvent struct {
		Activity *models.Activity
	}

	// AgentEvent is emitted for events posted by the agent webhook.
	AgentEvent struct {
		Event AgentEventInput
	}

	// SnapshotTakenEvent is emitted after a periodic snapshot run.
	SnapshotTakenEvent struct {
		Rows int
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (UsageUpdatedEvent) isServiceEvent()    {}
func (BudgetAlertEvent) isServiceEvent()     {}
func (GatewayEvent) isServiceEvent()         {}
func (TasksUpdatedEvent) isServiceEvent()    {}
func (ProjectsUpdatedEvent) isServiceEvent() {}
func (ActivityEvent) isServiceEvent()        {}
func (AgentEvent) isServiceEvent()           {}
func (SnapshotTakenEvent) isServiceEvent()   {}
func (ErrorEvent) isServiceEvent()           {}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for usage windows, momentum and
// stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNotify replaces the desktop notification function. A nil func disables
// desktop notifications.
func WithNotify(fn budget.NotifyFunc) Option {
	return func(m *Manager) {
		m.notify = fn
		m.notifySet = true
	}
}

// WithSources adds usage sources read alongside the discovered session logs.
func WithSources(sources ...usage.Source) Option {
	return func(m *Manager) { m.sources = append(m.sources, sources...) }
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	database    *db.DB
	usage       *usage.Service
	evaluator   budget.Evaluator
	notifier    *budget.Notifier
	notify      budget.NotifyFunc
	snapshot    *snapshot.Service
	watcher     *watcher.Watcher
	gateway     *gateway.Client
	now         func() time.Time
	started     time.Time
	sources     []usage.Source
	eventChan   chan ServiceEvent
	refreshChan chan struct{}
	stopChan    chan struct{}
	doneChan    chan struct{}
	subscribers []chan<- ServiceEvent
	notifySet   bool
}

// NewManager opens the database, wires the usage pipeline and, unless the
// configuration says the process is serverless, starts the background
// snapshotter, session log watcher and gateway client.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:         cfg,
		now:         time.Now,
		eventChan:   make(chan ServiceEvent, 100),
		refreshChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.started = m.now()

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	m.database.SetClock(m.now)

	if err := m.database.Seed(context.Background()); err != nil {
		_ = m.database.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	reader := usage.NewReader(cfg.SessionsPath,
		usage.WithClock(m.now),
		usage.WithTimeout(cfg.SourceTimeout),
		usage.WithSources(m.sources...),
	)
	m.usage = usage.NewService(reader, usage.NewReportedUsage(), usage.AggregateOptions{
		DailyFolding: cfg.DailyFolding,
	})

	m.evaluator = budget.New(cfg.DailyBudget, cfg.MonthlyBudget)
	if !m.notifySet && cfg.DesktopNotifications {
		m.notify = budget.DesktopNotify
	}
	m.notifier = budget.NewNotifier(m.notify)

	if cfg.BackgroundEnabled() {
		m.startBackground()
	} else {
		logger.Info("serverless mode, background services disabled")
	}

	go m.routeEvents()

	return m, nil
}

func (m *Manager) startBackground() {
	if m.cfg.SnapshotEnabled {
		m.snapshot = snapshot.New(m.usage, m.database, snapshot.Config{
			Interval: m.cfg.SnapshotInterval,
		})
	}

	if m.cfg.SessionsPath != "" {
		w, err := watcher.New(m.cfg.SessionsPath, watcher.DefaultDebounce)
		if err != nil {
			logger.Warn("session log watcher disabled", "path", m.cfg.SessionsPath, "error", err)
		} else {
			m.watcher = w
		}
	}

	if m.cfg.GatewayURL != "" {
		m.gateway = gateway.New(gateway.Config{
			URL:   m.cfg.GatewayURL,
			Token: m.cfg.GatewayToken,
		})
	}
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	defer close(m.doneChan)

	var (
		snapEvents    <-chan snapshot.Event
		watchEvents   <-chan watcher.Event
		gatewayEvents <-chan gateway.Event
	)
	if m.snapshot != nil {
		snapEvents = m.snapshot.Events()
	}
	if m.watcher != nil {
		watchEvents = m.watcher.Events()
	}
	if m.gateway != nil {
		gatewayEvents = m.gateway.Events()
	}

	for {
		select {
		case event := <-snapEvents:
			m.handleSnapshotEvent(event)

		case event := <-watchEvents:
			if event.Error != nil {
				m.broadcast(ErrorEvent{Service: "watcher", Error: event.Error})
				continue
			}
			logger.Debug("session logs changed", "files", len(event.Paths))
			m.Refresh()

		case event := <-gatewayEvents:
			m.broadcast(GatewayEvent{Message: event.Message, Status: event.Status})

		case <-m.refreshChan:
			m.publishUsage(m.usage.Compute(context.Background()))

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleSnapshotEvent(event snapshot.Event) {
	if event.Error != nil {
		m.broadcast(ErrorEvent{Service: "snapshot", Error: event.Error})
	} else {
		m.broadcast(SnapshotTakenEvent{Rows: event.Rows})
	}
	if event.Rollup != nil {
		m.publishUsage(event.Rollup)
	}
}

// publishUsage evaluates the budgets for a rollup and broadcasts the result
// along with any escalations.
func (m *Manager) publishUsage(rollup *models.UsageRollup) {
	report := m.observe(rollup)
	m.broadcast(UsageUpdatedEvent{Rollup: rollup, Budget: report})
}

func (m *Manager) observe(rollup *models.UsageRollup) models.BudgetReport {
	report := m.evaluator.Report(rollup)
	for _, alert := range m.notifier.Observe(report) {
		logger.Warn("budget escalated",
			"window", alert.Window,
			"from", alert.From,
			"to", alert.Status.Alert,
			"percent", fmt.Sprintf("%.1f", alert.Status.Percent),
		)
		m.broadcast(BudgetAlertEvent{Alert: alert})
	}
	return report
}

// Refresh schedules a recomputation of the rollup. Requests made while one
// is pending are coalesced.
func (m *Manager) Refresh() {
	select {
	case m.refreshChan <- struct{}{}:
	default:
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	// Send to subscribers
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return waitForEvent(ch)
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Usage returns the usage service.
func (m *Manager) Usage() *usage.Service {
	return m.usage
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Uptime returns how long the manager has been running.
func (m *Manager) Uptime() time.Duration {
	return m.now().Sub(m.started)
}

// GatewayStatus reports the gateway connection state, or disconnected when
// the client is not running.
func (m *Manager) GatewayStatus() gateway.Status {
	if m.gateway == nil {
		return gateway.StatusDisconnected
	}
	return m.gateway.Status()
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	if m.stopChan == nil {
		return nil
	}
	close(m.stopChan)

	var errs []error

	if m.snapshot != nil {
		errs = append(errs, m.snapshot.Close())
	}
	if m.watcher != nil {
		errs = append(errs, m.watcher.Close())
	}
	if m.gateway != nil {
		errs = append(errs, m.gateway.Close())
	}

	if m.doneChan != nil {
		<-m.doneChan
	}

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
