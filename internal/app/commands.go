package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
	"github.com/j-veylop/mission-control/internal/services/projection"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	// ActivityLimit is how many activity entries the terminal keeps.
	ActivityLimit = 100

	// TrendDays is the snapshot trend window shown on the costs tab.
	TrendDays = 14

	loadTimeout = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadInitialData returns a command that loads all initial data.
func loadInitialData(mgr *services.Manager) tea.Cmd {
	return tea.Batch(
		loadUsageCmd(mgr),
		loadTasksCmd(mgr),
		loadActivityCmd(mgr),
	)
}

// loadUsageCmd computes the rollup and reads the snapshot trend.
func loadUsageCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		rollup := mgr.Summary(ctx)
		report := mgr.Budget(ctx)
		trend, err := mgr.SnapshotTrend(ctx, TrendDays)
		return UsageLoadedMsg{
			Rollup:     rollup,
			Budget:     report,
			Projection: projection.Project(report, rollup, mgr.Now()),
			Session:    mgr.SessionStats(ctx),
			Trend:      trend,
			Error:      err,
		}
	}
}

// loadTasksCmd loads the momentum-ranked task list.
func loadTasksCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		tasks, err := mgr.Tasks(ctx, models.TaskFilter{})
		return TasksLoadedMsg{Tasks: tasks, Error: err}
	}
}

// loadActivityCmd loads the newest activity entries.
func loadActivityCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		activity, err := mgr.Activity(ctx, ActivityLimit)
		return ActivityLoadedMsg{Activity: activity, Error: err}
	}
}

// setTaskStatusCmd moves a task to a new status.
func setTaskStatusCmd(mgr *services.Manager, task models.RankedTask, status string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		_, err := mgr.UpdateTask(ctx, task.ID, models.TaskPatch{Status: &status})
		return TaskStatusChangedMsg{Name: task.Name, Status: status, Error: err}
	}
}

func createTaskCmd(mgr *services.Manager, in models.NewTask) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		_, err := mgr.CreateTask(ctx, in)
		return TaskCreatedMsg{Name: in.Name, Error: err}
	}
}

func deleteTaskCmd(mgr *services.Manager, task models.RankedTask) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		return TaskDeletedMsg{Name: task.Name, Error: mgr.DeleteTask(ctx, task.ID)}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(notifType NotificationType, message string, duration time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: notifType, Message: message, Duration: duration}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, LongNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Commands exposes the command constructors to the tabs.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// LoadUsage returns a command that recomputes the cost rollup.
func (c *Commands) LoadUsage() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadUsageCmd(c.manager)
}

// LoadTasks returns a command that reloads the ranked task list.
func (c *Commands) LoadTasks() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadTasksCmd(c.manager)
}

// LoadActivity returns a command that reloads the activity log.
func (c *Commands) LoadActivity() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadActivityCmd(c.manager)
}

// SetTaskStatus returns a command that changes a task's status.
func (c *Commands) SetTaskStatus(task models.RankedTask, status string) tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return setTaskStatusCmd(c.manager, task, status)
}

// CreateTask returns a command that stores a new task.
func (c *Commands) CreateTask(in models.NewTask) tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return createTaskCmd(c.manager, in)
}

// DeleteTask returns a command that removes a task.
func (c *Commands) DeleteTask(task models.RankedTask) tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return deleteTaskCmd(c.manager, task)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}
