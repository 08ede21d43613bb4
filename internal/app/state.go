// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"strconv"
	"sync"
	"time"

	"github.com/j-veylop/mission-control/internal/models"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

// LoadingNotificationID is the fixed ID for loading notifications.
const LoadingNotificationID = "__loading__"

// maxNotifications bounds the toast stack.
const maxNotifications = 10

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// Resources that can be loading independently.
const (
	ResourceInitial  = "initial"
	ResourceUsage    = "usage"
	ResourceTasks    = "tasks"
	ResourceActivity = "activity"
	ResourceAll      = "all"
)

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial  bool
	Usage    bool
	Tasks    bool
	Activity bool
}

// State is the data shared between the root model and the tabs.
type State struct {
	LastUpdated   time.Time
	Rollup        *models.UsageRollup
	Session       *models.SessionStats
	Gateway       string
	Tasks         []models.RankedTask
	Activity      []models.Activity
	Trend         []models.DailyTrend
	notifications []Notification
	Budget        models.BudgetReport
	Projection    models.BudgetProjection
	Loading       LoadingState
	SelectedTask  int
	mu            sync.RWMutex
	notifySeq     int
}

// NewState creates an empty state waiting for its initial load.
func NewState() *State {
	return &State{
		Tasks:         make([]models.RankedTask, 0),
		Activity:      make([]models.Activity, 0),
		notifications: make([]Notification, 0),
		Loading:       LoadingState{Initial: true},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case ResourceInitial:
		s.Loading.Initial = loading
	case ResourceUsage:
		s.Loading.Usage = loading
	case ResourceTasks:
		s.Loading.Tasks = loading
	case ResourceActivity:
		s.Loading.Activity = loading
	case ResourceAll:
		s.Loading.Usage = loading
		s.Loading.Tasks = loading
		s.Loading.Activity = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial || s.Loading.Usage || s.Loading.Tasks || s.Loading.Activity
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// SetUsage stores a freshly computed rollup and its budget evaluation.
func (s *State) SetUsage(rollup *models.UsageRollup, report models.BudgetReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Rollup = rollup
	s.Budget = report
	s.LastUpdated = time.Now()
}

// GetUsage returns the current rollup and budget report. The rollup is nil
// until the first load completes.
func (s *State) GetUsage() (*models.UsageRollup, models.BudgetReport) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Rollup, s.Budget
}

// SetProjection stores the burn-rate forecast for both budget windows.
func (s *State) SetProjection(p models.BudgetProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Projection = p
}

// GetProjection returns the burn-rate forecast.
func (s *State) GetProjection() models.BudgetProjection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Projection
}

// SetSession stores the main agent session stats.
func (s *State) SetSession(stats *models.SessionStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Session = stats
}

// GetSession returns the main agent session stats, or nil.
func (s *State) GetSession() *models.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Session
}

// SetTrend stores the snapshot trend.
func (s *State) SetTrend(trend []models.DailyTrend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trend = trend
}

// GetTrend returns a copy of the snapshot trend.
func (s *State) GetTrend() []models.DailyTrend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DailyTrend(nil), s.Trend...)
}

// SetTasks replaces the ranked task list and keeps the selection in range.
func (s *State) SetTasks(tasks []models.RankedTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Tasks = tasks
	if s.SelectedTask >= len(tasks) {
		s.SelectedTask = max(len(tasks)-1, 0)
	}
}

// GetTasks returns a copy of the ranked task list.
func (s *State) GetTasks() []models.RankedTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RankedTask(nil), s.Tasks...)
}

// SetActivity replaces the activity log.
func (s *State) SetActivity(activity []models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Activity = activity
}

// PrependActivity adds a pushed entry to the front of the log, keeping at
// most limit entries.
func (s *State) PrependActivity(a models.Activity, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Activity = append([]models.Activity{a}, s.Activity...)
	if limit > 0 && len(s.Activity) > limit {
		s.Activity = s.Activity[:limit]
	}
}

// GetActivity returns a copy of the activity log, newest first.
func (s *State) GetActivity() []models.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Activity(nil), s.Activity...)
}

// SetGateway records the gateway connection status.
func (s *State) SetGateway(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gateway = status
}

// GetGateway returns the gateway connection status.
func (s *State) GetGateway() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Gateway
}

// GetSelectedTask returns the selected task index.
func (s *State) GetSelectedTask() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedTask
}

// SetSelectedTask updates the selected task index.
func (s *State) SetSelectedTask(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedTask = idx
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifySeq++
	id := time.Now().Format("20060102150405") + "-" + strconv.Itoa(s.notifySeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(all []Notification) []Notification {
	active := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// TimeSinceUpdate returns the duration since usage was last refreshed.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
