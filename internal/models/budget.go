package models

import "time"

// AlertLevel classifies how much of a budget has been consumed.
type AlertLevel string

// Alert levels in increasing severity.
const (
	AlertSafe    AlertLevel = "safe"
	AlertCaution AlertLevel = "caution"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// Severity returns the ordinal of the level, safe being 0.
func (a AlertLevel) Severity() int {
	switch a {
	case AlertCaution:
		return 1
	case AlertWarning:
		return 2
	case AlertDanger:
		return 3
	default:
		return 0
	}
}

// BudgetStatus is the evaluation of one budget window.
type BudgetStatus struct {
	Alert   AlertLevel `json:"alert"`
	Spent   float64    `json:"spent"`
	Limit   float64    `json:"limit"`
	Percent float64    `json:"percent"`
}

// BudgetReport holds the daily and monthly budget evaluations.
type BudgetReport struct {
	Daily   BudgetStatus `json:"daily"`
	Monthly BudgetStatus `json:"monthly"`
}

// ProjectionStatus classifies whether a budget window will run out before
// it resets.
type ProjectionStatus string

// Projection statuses.
const (
	ProjectionUnknown  ProjectionStatus = "unknown"
	ProjectionSafe     ProjectionStatus = "safe"
	ProjectionWarning  ProjectionStatus = "warning"
	ProjectionCritical ProjectionStatus = "critical"
)

// WindowProjection extrapolates spend in one budget window at the current
// burn rate. Rate is USD per hour. HoursLeft is only meaningful when Rate is
// positive. ResetAt is nil for the rolling monthly window.
type WindowProjection struct {
	ExhaustAt  *time.Time       `json:"exhaustAt,omitempty"`
	ResetAt    *time.Time       `json:"resetAt,omitempty"`
	Status     ProjectionStatus `json:"status"`
	Confidence string           `json:"confidence"`
	Comparison string           `json:"comparison,omitempty"`
	Spent      float64          `json:"spent"`
	Limit      float64          `json:"limit"`
	Rate       float64          `json:"rate"`
	Projected  float64          `json:"projected"`
	HoursLeft  float64          `json:"hoursLeft"`
	DataPoints int              `json:"dataPoints"`
	WillExceed bool             `json:"willExceed"`
}

// BudgetProjection holds the daily and monthly spend forecasts.
type BudgetProjection struct {
	Daily   WindowProjection `json:"daily"`
	Monthly WindowProjection `json:"monthly"`
}
