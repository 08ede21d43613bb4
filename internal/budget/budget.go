// Package budget classifies spend against the daily and monthly limits.
package budget

import (
	"math"

	"github.com/j-veylop/mission-control/internal/models"
)

// Default limits in dollars.
const (
	DefaultDaily   = 10.00
	DefaultMonthly = 200.00
)

// Band thresholds in percent. Each band is closed at its low end.
const (
	CautionPercent = 50.0
	WarningPercent = 75.0
	DangerPercent  = 90.0
)

// LevelFor maps a spend percentage to an alert level.
func LevelFor(percent float64) models.AlertLevel {
	switch {
	case percent >= DangerPercent:
		return models.AlertDanger
	case percent >= WarningPercent:
		return models.AlertWarning
	case percent >= CautionPercent:
		return models.AlertCaution
	default:
		return models.AlertSafe
	}
}

// Evaluate computes the status of one budget window. percent is not capped.
// A non-positive limit yields percent 0; config validation keeps such limits
// out of normal operation.
func Evaluate(spent, limit float64) models.BudgetStatus {
	var percent float64
	if limit > 0 {
		percent = spent / limit * 100
	}
	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		percent = 0
	}
	return models.BudgetStatus{
		Spent:   spent,
		Limit:   limit,
		Percent: percent,
		Alert:   LevelFor(percent),
	}
}

// Evaluator holds the configured limits.
type Evaluator struct {
	Daily   float64
	Monthly float64
}

// New creates an evaluator with the given limits.
func New(daily, monthly float64) Evaluator {
	return Evaluator{Daily: daily, Monthly: monthly}
}

// Report evaluates today's spend against the daily limit and the 30-day
// spend against the monthly limit.
func (e Evaluator) Report(rollup *models.UsageRollup) models.BudgetReport {
	return models.BudgetReport{
		Daily:   Evaluate(rollup.Today.Cost, e.Daily),
		Monthly: Evaluate(rollup.Month.Cost, e.Monthly),
	}
}
