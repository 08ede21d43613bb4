// Package projection extrapolates budget spend at the current burn rate.
package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/j-veylop/mission-control/internal/models"
)

const (
	// Active hours today needed for medium and high daily confidence.
	dailyMedConf  = 3
	dailyHighConf = 8

	// Active days needed for medium and high monthly confidence.
	monthlyMedConf  = 6
	monthlyHighConf = 24

	monthWindowHours = 30 * 24

	// A projection this far over the limit is critical even with time left.
	criticalOvershoot = 1.5
)

// Project forecasts both budget windows from the current rollup and its
// budget evaluation.
func Project(report models.BudgetReport, rollup *models.UsageRollup, now time.Time) models.BudgetProjection {
	if rollup == nil {
		rollup = &models.UsageRollup{}
	}
	avgHourly := rollup.Month.Cost / monthWindowHours

	daily := projectDaily(report.Daily, rollup, avgHourly, now)
	return models.BudgetProjection{
		Daily:   daily,
		Monthly: projectMonthly(report.Monthly, rollup, avgHourly, daily.Rate),
	}
}

// projectDaily extrapolates today's spend to local midnight.
func projectDaily(status models.BudgetStatus, rollup *models.UsageRollup, avgHourly float64, now time.Time) models.WindowProjection {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	reset := dayStart.AddDate(0, 0, 1)

	active := 0
	for _, h := range rollup.Hourly {
		if h.Cost > 0 {
			active++
		}
	}

	// The first hour of the day is too short to extrapolate from.
	elapsed := math.Max(now.Sub(dayStart).Hours(), 1)
	todayRate := status.Spent / elapsed

	proj := models.WindowProjection{
		Spent:      status.Spent,
		Limit:      status.Limit,
		ResetAt:    &reset,
		Rate:       todayRate,
		DataPoints: active,
		Confidence: confidence(active, dailyMedConf, dailyHighConf),
		Comparison: compareToAverage(todayRate, avgHourly),
		Status:     models.ProjectionUnknown,
	}
	if proj.Rate <= 0 {
		proj.Rate = avgHourly
	}

	remaining := reset.Sub(now).Hours()
	proj.Projected = status.Spent + proj.Rate*remaining
	proj.WillExceed = proj.Limit > 0 && proj.Projected > proj.Limit

	if proj.Rate > 0 && proj.Limit > 0 {
		proj.HoursLeft = math.Max(proj.Limit-proj.Spent, 0) / proj.Rate
		if at := now.Add(time.Duration(proj.HoursLeft * float64(time.Hour))); at.Before(reset) {
			proj.ExhaustAt = &at
		}
	}

	proj.Status = classify(proj, proj.HoursLeft < 1)
	return proj
}

// projectMonthly extrapolates the rolling 30-day window as if today's pace
// held for the whole window.
func projectMonthly(status models.BudgetStatus, rollup *models.UsageRollup, avgHourly, todayRate float64) models.WindowProjection {
	active := 0
	for _, d := range rollup.Daily {
		if d.Cost > 0 {
			active++
		}
	}

	proj := models.WindowProjection{
		Spent:      status.Spent,
		Limit:      status.Limit,
		DataPoints: active,
		Confidence: confidence(active, monthlyMedConf, monthlyHighConf),
		Status:     models.ProjectionUnknown,
	}

	proj.Rate = math.Max(todayRate, avgHourly)
	proj.Comparison = compareToAverage(todayRate, avgHourly)
	proj.Projected = proj.Rate * monthWindowHours
	proj.WillExceed = proj.Limit > 0 && proj.Projected > proj.Limit

	if proj.Rate > 0 && proj.Limit > 0 {
		proj.HoursLeft = math.Max(proj.Limit-proj.Spent, 0) / proj.Rate
	}

	proj.Status = classify(proj, proj.Projected > proj.Limit*criticalOvershoot)
	return proj
}

func classify(proj models.WindowProjection, critical bool) models.ProjectionStatus {
	switch {
	case proj.Limit > 0 && proj.Spent >= proj.Limit:
		return models.ProjectionCritical
	case proj.Rate <= 0:
		return models.ProjectionUnknown
	case proj.WillExceed && critical:
		return models.ProjectionCritical
	case proj.WillExceed:
		return models.ProjectionWarning
	default:
		return models.ProjectionSafe
	}
}

func confidence(points, medium, high int) string {
	switch {
	case points >= high:
		return "high"
	case points >= medium:
		return "medium"
	default:
		return "low"
	}
}

// compareToAverage describes a burn rate relative to the 30-day average.
func compareToAverage(current, average float64) string {
	if average <= 0 {
		return "Building history..."
	}
	diff := (current - average) / average * 100
	switch {
	case math.Abs(diff) < 15:
		return "Typical for you"
	case diff > 0:
		return fmt.Sprintf("%.0f%% above your 30-day average", diff)
	default:
		return fmt.Sprintf("%.0f%% below your 30-day average", -diff)
	}
}
