package app

import (
	"time"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// UsageLoadedMsg carries a freshly computed rollup with its budget
// evaluation, session stats and snapshot trend.
type UsageLoadedMsg struct {
	Error      error
	Rollup     *models.UsageRollup
	Session    *models.SessionStats
	Trend      []models.DailyTrend
	Budget     models.BudgetReport
	Projection models.BudgetProjection
}

// TasksLoadedMsg carries the momentum-ranked task list.
type TasksLoadedMsg struct {
	Error error
	Tasks []models.RankedTask
}

// ActivityLoadedMsg carries the newest activity entries.
type ActivityLoadedMsg struct {
	Error    error
	Activity []models.Activity
}

// TaskStatusChangedMsg contains the result of a task status update.
type TaskStatusChangedMsg struct {
	Error  error
	Name   string
	Status string
}

// TaskCreatedMsg contains the result of creating a task.
type TaskCreatedMsg struct {
	Error error
	Name  string
}

// TaskDeletedMsg contains the result of deleting a task.
type TaskDeletedMsg struct {
	Error error
	Name  string
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // "all", "usage", "tasks", "activity"
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
