package usage

import (
	"maps"
	"sync"

	"github.com/j-veylop/mission-control/internal/models"
)

// ReportedUsage accumulates cost events pushed by remote agents for the
// lifetime of the process. It never resets on day or month rollover.
type ReportedUsage struct {
	byModel   map[string]float64
	byFeature map[string]float64
	today     float64
	week      float64
	month     float64
	mu        sync.Mutex
}

// NewReportedUsage creates an empty accumulator.
func NewReportedUsage() *ReportedUsage {
	return &ReportedUsage{
		byModel:   make(map[string]float64),
		byFeature: make(map[string]float64),
	}
}

// Add records a reported event. Positive costs count toward every period;
// the model and feature maps are only touched when the event names them.
func (r *ReportedUsage) Add(ev models.ReportedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Cost > 0 {
		r.today += ev.Cost
		r.week += ev.Cost
		r.month += ev.Cost
	}
	if ev.Model != "" {
		r.byModel[ev.Model] += ev.Cost
	}
	if ev.Feature != "" {
		r.byFeature[ev.Feature] += ev.Cost
	}
}

// Snapshot returns a consistent copy of the accumulated totals.
func (r *ReportedUsage) Snapshot() models.ReportedTotals {
	r.mu.Lock()
	defer r.mu.Unlock()

	return models.ReportedTotals{
		Today:     r.today,
		Week:      r.week,
		Month:     r.month,
		ByModel:   maps.Clone(r.byModel),
		ByFeature: maps.Clone(r.byFeature),
	}
}
