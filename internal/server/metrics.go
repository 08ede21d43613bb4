package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/mission-control/internal/models"
)

// metrics holds the Prometheus collectors exported on /metrics.
type metrics struct {
	registry      *prometheus.Registry
	periodCost    *prometheus.GaugeVec
	modelCost     *prometheus.GaugeVec
	featureCost   *prometheus.GaugeVec
	budgetPercent *prometheus.GaugeVec
	ingestEvents  prometheus.Counter
	budgetAlerts  *prometheus.CounterVec
	gatewayEvents prometheus.Counter
	snapshots     prometheus.Counter
	requests      *prometheus.CounterVec
}

func newMetrics(clients func() int) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		periodCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mission_control_cost_usd",
			Help: "Merged cost per period (today, week, month)",
		}, []string{"period"}),
		modelCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mission_control_model_cost_usd",
			Help: "Lifetime cost by model",
		}, []string{"model"}),
		featureCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mission_control_feature_cost_usd",
			Help: "Lifetime cost by inferred feature",
		}, []string{"feature"}),
		budgetPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mission_control_budget_percent",
			Help: "Share of the budget consumed",
		}, []string{"window"}),
		ingestEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mission_control_ingest_events_total",
			Help: "Reported cost events accepted",
		}),
		budgetAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mission_control_budget_alerts_total",
			Help: "Budget escalations by window and level",
		}, []string{"window", "level"}),
		gatewayEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mission_control_gateway_events_total",
			Help: "Messages forwarded from the agent gateway",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mission_control_snapshots_total",
			Help: "Completed snapshot runs",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mission_control_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		m.periodCost,
		m.modelCost,
		m.featureCost,
		m.budgetPercent,
		m.ingestEvents,
		m.budgetAlerts,
		m.gatewayEvents,
		m.snapshots,
		m.requests,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mission_control_ws_clients",
			Help: "Connected dashboard clients",
		}, func() float64 { return float64(clients()) }),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeRollup(r *models.UsageRollup) {
	m.periodCost.WithLabelValues("today").Set(r.Today.Cost)
	m.periodCost.WithLabelValues("week").Set(r.Week.Cost)
	m.periodCost.WithLabelValues("month").Set(r.Month.Cost)

	m.modelCost.Reset()
	for model, u := range r.ByModel {
		m.modelCost.WithLabelValues(model).Set(u.Cost)
	}
	m.featureCost.Reset()
	for feature, u := range r.ByFeature {
		m.featureCost.WithLabelValues(feature).Set(u.Cost)
	}
}

func (m *metrics) observeBudget(b models.BudgetReport) {
	m.budgetPercent.WithLabelValues("daily").Set(b.Daily.Percent)
	m.budgetPercent.WithLabelValues("monthly").Set(b.Monthly.Percent)
}

func (m *metrics) observeRequest(r *http.Request, status int) {
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
