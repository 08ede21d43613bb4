package usage

import (
	"time"

	"github.com/j-veylop/mission-control/internal/models"
)

const dateLayout = "2006-01-02"

// AggregateOptions tunes the aggregation.
type AggregateOptions struct {
	// DailyFolding buckets record costs into the daily series by local
	// calendar date. When false the daily series is all zero.
	DailyFolding bool
}

// EmptyRollup returns a fully shaped rollup with zero totals, 24 hourly
// entries and 30 daily entries ending at now's calendar date.
func EmptyRollup(now time.Time) *models.UsageRollup {
	hourly := make([]models.HourlyCost, models.HoursPerDay)
	for i := range hourly {
		hourly[i].Hour = i
	}
	return &models.UsageRollup{
		ByModel:   make(map[string]models.ModelUsage),
		ByFeature: make(map[string]models.FeatureUsage),
		Hourly:    hourly,
		Daily:     dailySeries(now),
	}
}

// dailySeries returns the last 30 calendar dates, oldest first.
func dailySeries(now time.Time) []models.DailyCost {
	y, m, d := now.Date()
	daily := make([]models.DailyCost, models.DailyWindow)
	for i := range daily {
		day := time.Date(y, m, d-(models.DailyWindow-1-i), 12, 0, 0, 0, now.Location())
		daily[i].Date = day.Format(dateLayout)
	}
	return daily
}

// Aggregate folds records into a rollup. Period totals use each record's
// DaysDiff; the model and feature maps are lifetime totals.
func Aggregate(records []models.UsageRecord, now time.Time, opts AggregateOptions) *models.UsageRollup {
	rollup := EmptyRollup(now)

	var dayIndex map[string]int
	if opts.DailyFolding {
		dayIndex = make(map[string]int, len(rollup.Daily))
		for i, d := range rollup.Daily {
			dayIndex[d.Date] = i
		}
	}

	for _, r := range records {
		if !r.Timestamp.IsZero() {
			if r.DaysDiff == 0 {
				rollup.Today.AddRecord(r)
				rollup.Hourly[r.Timestamp.In(now.Location()).Hour()].Cost += r.Cost
			}
			if r.DaysDiff < 7 {
				rollup.Week.AddRecord(r)
			}
			if r.DaysDiff < 30 {
				rollup.Month.AddRecord(r)
			}
			if dayIndex != nil {
				if i, ok := dayIndex[r.Timestamp.In(now.Location()).Format(dateLayout)]; ok {
					rollup.Daily[i].Cost += r.Cost
				}
			}
		}

		model := rollup.ByModel[r.Model]
		model.Cost += r.Cost
		model.Tokens += r.InputTokens + r.OutputTokens
		rollup.ByModel[r.Model] = model

		feature := rollup.ByFeature[r.Feature]
		feature.Cost += r.Cost
		rollup.ByFeature[r.Feature] = feature
	}

	return rollup
}
