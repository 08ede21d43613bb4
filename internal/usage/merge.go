package usage

import "github.com/j-veylop/mission-control/internal/models"

// Merge returns a new rollup with the reported totals added on top of the
// locally read one. Neither input is modified. Entries created for reported
// models carry zero tokens.
func Merge(rollup *models.UsageRollup, reported models.ReportedTotals) *models.UsageRollup {
	out := rollup.Clone()

	out.Today.Cost += reported.Today
	out.Week.Cost += reported.Week
	out.Month.Cost += reported.Month

	for model, cost := range reported.ByModel {
		m := out.ByModel[model]
		m.Cost += cost
		out.ByModel[model] = m
	}
	for feature, cost := range reported.ByFeature {
		f := out.ByFeature[feature]
		f.Cost += cost
		out.ByFeature[feature] = f
	}

	return out
}
