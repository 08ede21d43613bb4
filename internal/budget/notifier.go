package budget

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
)

// Window names used in alerts.
const (
	WindowDaily   = "daily"
	WindowMonthly = "monthly"
)

// Alert describes a budget window that moved to a more severe level.
type Alert struct {
	Window string
	From   models.AlertLevel
	Status models.BudgetStatus
}

// NotifyFunc delivers a desktop notification.
type NotifyFunc func(title, message string) error

// DesktopNotify sends a notification through the OS notification center.
func DesktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Notifier tracks the last seen level per window and reports escalations.
type Notifier struct {
	notify NotifyFunc
	last   map[string]models.AlertLevel
	mu     sync.Mutex
}

// NewNotifier creates a notifier. A nil notify func disables desktop
// notifications but escalations are still reported.
func NewNotifier(notify NotifyFunc) *Notifier {
	return &Notifier{
		notify: notify,
		last:   make(map[string]models.AlertLevel),
	}
}

// Observe records a new report and returns the windows that escalated since
// the previous observation. The first observation only sets the baseline.
// Desktop notifications are delivered in the background, in order.
func (n *Notifier) Observe(report models.BudgetReport) []Alert {
	alerts := n.escalations(report)
	if len(alerts) > 0 && n.notify != nil {
		go n.deliver(alerts)
	}
	return alerts
}

func (n *Notifier) escalations(report models.BudgetReport) []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	var alerts []Alert
	for _, w := range []struct {
		name   string
		status models.BudgetStatus
	}{
		{WindowDaily, report.Daily},
		{WindowMonthly, report.Monthly},
	} {
		prev, seen := n.last[w.name]
		n.last[w.name] = w.status.Alert
		if !seen || w.status.Alert.Severity() <= prev.Severity() {
			continue
		}
		alerts = append(alerts, Alert{Window: w.name, From: prev, Status: w.status})
	}
	return alerts
}

func (n *Notifier) deliver(alerts []Alert) {
	for _, alert := range alerts {
		title := fmt.Sprintf("Budget %s: %s", alert.Status.Alert, alert.Window)
		body := fmt.Sprintf("Spent $%.2f of $%.2f (%.1f%%)",
			alert.Status.Spent, alert.Status.Limit, alert.Status.Percent)
		if err := n.notify(title, body); err != nil {
			logger.Debug("desktop notification failed", "error", err)
		}
	}
}
