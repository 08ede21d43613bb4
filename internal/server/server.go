// Package server exposes the dashboard API over HTTP and pushes live
// updates to dashboard clients over WebSocket.
//
// Endpoints:
//   - /api/costs/...    usage rollup, budget, snapshots and cost ingestion
//   - /api/projects     project CRUD
//   - /api/tasks        task CRUD, ranked by momentum
//   - /api/activity     activity log and webhook
//   - /api/agent/event  agent webhook
//   - /metrics          Prometheus metrics
//   - / and /ws         WebSocket push channel, static client files
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/j-veylop/mission-control/internal/budget"
	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/services"
)

const (
	// MaxRequestBodySize bounds JSON request bodies.
	MaxRequestBodySize = 1 << 20

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Push message types.
const (
	PushTasksUpdated    = "tasks_updated"
	PushProjectsUpdated = "projects_updated"
	PushActivity        = "activity"
	PushAgentEvent      = "agent_event"
	PushGatewayEvent    = "gateway_event"
	PushUsageUpdated    = "usage_updated"
	PushBudgetAlert     = "budget_alert"
)

// Server is the dashboard HTTP server.
type Server struct {
	mgr     *services.Manager
	cfg     *config.Config
	mux     *http.ServeMux
	hub     *Hub
	metrics *metrics
	limiter *rate.Limiter
	static  http.Handler
}

// New creates a server backed by mgr.
func New(mgr *services.Manager) *Server {
	cfg := mgr.Config()

	s := &Server{
		mgr: mgr,
		cfg: cfg,
		mux: http.NewServeMux(),
		hub: NewHub(),
	}
	s.metrics = newMetrics(s.hub.Count)

	limit := cfg.IngestRateLimit
	if limit <= 0 {
		limit = 20
	}
	s.limiter = rate.NewLimiter(rate.Limit(limit), max(1, int(limit)))

	if cfg.ClientDir != "" {
		s.static = http.FileServer(http.Dir(cfg.ClientDir))
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/costs/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/costs/by-model", s.handleByModel)
	s.mux.HandleFunc("GET /api/costs/by-feature", s.handleByFeature)
	s.mux.HandleFunc("GET /api/costs/hourly", s.handleHourly)
	s.mux.HandleFunc("GET /api/costs/daily", s.handleDaily)
	s.mux.HandleFunc("GET /api/costs/budget", s.handleBudget)
	s.mux.HandleFunc("GET /api/costs/projection", s.handleProjection)
	s.mux.HandleFunc("GET /api/costs/session-stats", s.handleSessionStats)
	s.mux.HandleFunc("GET /api/costs/snapshots", s.handleSnapshots)
	s.mux.HandleFunc("GET /api/costs/trend", s.handleTrend)
	s.mux.HandleFunc("POST /api/costs/ingest", s.handleIngest)

	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("PATCH /api/projects/{id}", s.handleUpdateProject)
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	s.mux.HandleFunc("GET /api/skills", s.handleListSkills)
	s.mux.HandleFunc("POST /api/skills/record", s.handleRecordSkill)
	s.mux.HandleFunc("GET /api/cron", s.handleListCron)
	s.mux.HandleFunc("GET /api/activity", s.handleListActivity)
	s.mux.HandleFunc("POST /api/activity", s.handleAddActivity)
	s.mux.HandleFunc("GET /api/channels", s.handleListChannels)
	s.mux.HandleFunc("PATCH /api/channels/{id}", s.handleUpdateChannel)

	s.mux.HandleFunc("POST /api/agent/event", s.handleAgentEvent)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/status/costs", s.handleStatusCosts)

	s.mux.Handle("GET /metrics", s.metrics.handler())
	s.mux.HandleFunc("GET /ws", s.hub.ServeWS)
	s.mux.HandleFunc("GET /", s.handleRoot)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return withRecover(s.withLogging(withCORS(s.mux)))
}

// Hub returns the push hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// handleRoot serves the push channel to WebSocket upgrades and the static
// client to everything else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && websocket.IsWebSocketUpgrade(r) {
		s.hub.ServeWS(w, r)
		return
	}
	if s.static == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.static.ServeHTTP(w, r)
}

// Forward pushes manager events to dashboard clients until ctx is done.
func (s *Server) Forward(ctx context.Context) {
	ch, _ := s.mgr.Subscribe()
	defer s.mgr.Unsubscribe(ch)

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			s.dispatch(event)
		case <-ctx.Done():
			return
		}
	}
}

// dispatch converts a manager event into a push message.
func (s *Server) dispatch(event services.ServiceEvent) {
	switch e := event.(type) {
	case services.UsageUpdatedEvent:
		s.metrics.observeRollup(e.Rollup)
		s.metrics.observeBudget(e.Budget)
		s.hub.Broadcast(Message{Type: PushUsageUpdated, Data: usageUpdate{
			Summary: e.Rollup,
			Budget:  e.Budget,
		}})

	case services.BudgetAlertEvent:
		s.metrics.budgetAlerts.WithLabelValues(e.Alert.Window, string(e.Alert.Status.Alert)).Inc()
		s.hub.Broadcast(Message{Type: PushBudgetAlert, Data: alertPayload(e.Alert)})

	case services.GatewayEvent:
		if e.Message == nil {
			return
		}
		s.metrics.gatewayEvents.Inc()
		s.hub.Broadcast(Message{Type: PushGatewayEvent, Data: e.Message})

	case services.TasksUpdatedEvent:
		s.hub.Broadcast(Message{Type: PushTasksUpdated})

	case services.ProjectsUpdatedEvent:
		s.hub.Broadcast(Message{Type: PushProjectsUpdated})

	case services.ActivityEvent:
		s.hub.Broadcast(Message{Type: PushActivity, Data: e.Activity})

	case services.AgentEvent:
		s.hub.Broadcast(Message{Type: PushAgentEvent, Data: e.Event})

	case services.SnapshotTakenEvent:
		s.metrics.snapshots.Inc()

	case services.ErrorEvent:
		logger.Warn("service error", "service", e.Service, "error", e.Error)
	}
}

type usageUpdate struct {
	Summary any `json:"summary"`
	Budget  any `json:"budget"`
}

type budgetAlert struct {
	Window string `json:"window"`
	From   string `json:"from"`
	Status any    `json:"status"`
}

func alertPayload(a budget.Alert) budgetAlert {
	return budgetAlert{Window: a.Window, From: string(a.From), Status: a.Status}
}

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Forward(fwdCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "addr", "http://"+srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
