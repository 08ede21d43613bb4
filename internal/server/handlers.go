package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
)

const (
	defaultSnapshotLimit = 100
	defaultTrendDays     = 7
)

func (s *Server) summary(r *http.Request) *models.UsageRollup {
	rollup := s.mgr.Summary(r.Context())
	s.metrics.observeRollup(rollup)
	return rollup
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary(r))
}

func (s *Server) handleByModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary(r).ByModel)
}

func (s *Server) handleByFeature(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary(r).ByFeature)
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary(r).Hourly)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary(r).Daily)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	report := s.mgr.Budget(r.Context())
	s.metrics.observeBudget(report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Projection(r.Context()))
}

// unknownSession is served when no session of the main agent is available.
type unknownSession struct {
	LastActivity *time.Time `json:"lastActivity"`
	Status       string     `json:"status"`
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats := s.mgr.SessionStats(r.Context())
	if stats == nil {
		writeJSON(w, http.StatusOK, unknownSession{Status: "unknown"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	rows, err := s.mgr.Snapshots(r.Context(), queryInt(r, "limit", defaultSnapshotLimit))
	if err != nil {
		writeServiceError(w, err, "Snapshot")
		return
	}
	if rows == nil {
		rows = []models.CostSnapshot{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := s.mgr.SnapshotTrend(r.Context(), queryInt(r, "days", defaultTrendDays))
	if err != nil {
		writeServiceError(w, err, "Snapshot")
		return
	}
	if trend == nil {
		trend = []models.DailyTrend{}
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var ev models.ReportedEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.mgr.Ingest(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err, "Event")
		return
	}
	s.metrics.ingestEvents.Inc()
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.mgr.Projects(r.Context())
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in models.NewProject
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.mgr.CreateProject(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.mgr.Project(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch models.ProjectPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.mgr.UpdateProject(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.mgr.DeleteProject(r.Context(), id); err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter models.TaskFilter
	q := r.URL.Query()
	if v := q.Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		filter.ProjectID = &id
	}
	filter.Status = q.Get("status")

	tasks, err := s.mgr.Tasks(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	if tasks == nil {
		tasks = []models.RankedTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in models.NewTask
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.mgr.CreateTask(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	detail, err := s.mgr.Task(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch models.TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.mgr.UpdateTask(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.mgr.DeleteTask(r.Context(), id); err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.mgr.Skills(r.Context())
	if err != nil {
		writeServiceError(w, err, "Skill")
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (s *Server) handleRecordSkill(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.mgr.RecordSkill(r.Context(), in.Name); err != nil {
		writeServiceError(w, err, "Skill")
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleListCron(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.mgr.CronJobs(r.Context())
	if err != nil {
		writeServiceError(w, err, "Cron job")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.mgr.Activity(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err, "Activity")
		return
	}
	if entries == nil {
		entries = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var in services.AgentEventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.mgr.AddActivity(r.Context(), in); err != nil {
		writeServiceError(w, err, "Activity")
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.mgr.Channels(r.Context())
	if err != nil {
		writeServiceError(w, err, "Channel")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.mgr.UpdateChannel(r.Context(), r.PathValue("id"), in.Status); err != nil {
		writeServiceError(w, err, "Channel")
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleAgentEvent(w http.ResponseWriter, r *http.Request) {
	var in services.AgentEventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.mgr.RecordAgentEvent(r.Context(), in); err != nil {
		writeServiceError(w, err, "Event")
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type statusResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Model     string    `json:"model"`
	Gateway   string    `json:"gateway"`
	Uptime    float64   `json:"uptime"`
	Online    bool      `json:"online"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Online:    true,
		Agent:     s.cfg.AgentName,
		Model:     s.cfg.AgentModel,
		Gateway:   string(s.mgr.GatewayStatus()),
		Uptime:    s.mgr.Uptime().Seconds(),
		Timestamp: s.mgr.Now().UTC(),
	})
}

func (s *Server) handleStatusCosts(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api/costs/summary", http.StatusFound)
}
