package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.Local)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(tmpDir, "test.db")
	cfg.SessionsPath = filepath.Join(tmpDir, "openclaw")
	cfg.Serverless = true
	cfg.DesktopNotifications = false
	if mutate != nil {
		mutate(cfg)
	}

	mgr, err := services.NewManager(cfg,
		services.WithClock(func() time.Time { return testNow }),
		services.WithNotify(nil),
	)
	require.NoError(t, err)

	srv := New(mgr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Hub().Close()
		require.NoError(t, mgr.Close())
	})
	return srv, ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestCostEndpoints_EmptyShape(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, ts, http.MethodGet, "/api/costs/summary", "")
	require.Equal(t, http.StatusOK, code)
	rollup := decode[models.UsageRollup](t, body)
	require.Len(t, rollup.Hourly, 24)
	require.Len(t, rollup.Daily, 30)
	require.Zero(t, rollup.Month.Cost)

	code, body = do(t, ts, http.MethodGet, "/api/costs/hourly", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, decode[[]models.HourlyCost](t, body), 24)

	code, body = do(t, ts, http.MethodGet, "/api/costs/daily", "")
	require.Equal(t, http.StatusOK, code)
	daily := decode[[]models.DailyCost](t, body)
	require.Len(t, daily, 30)
	require.Equal(t, testNow.Format("2006-01-02"), daily[29].Date)

	code, body = do(t, ts, http.MethodGet, "/api/costs/by-model", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{}`, string(body))

	code, body = do(t, ts, http.MethodGet, "/api/costs/snapshots", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(body))
}

func TestBudgetEndpoint(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.DailyBudget = 4 })

	code, _ := do(t, ts, http.MethodPost, "/api/costs/ingest", `{"cost":3,"model":"m"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, ts, http.MethodGet, "/api/costs/budget", "")
	require.Equal(t, http.StatusOK, code)
	report := decode[models.BudgetReport](t, body)
	require.Equal(t, models.AlertWarning, report.Daily.Alert)
	require.InDelta(t, 75.0, report.Daily.Percent, 1e-9)
	require.Equal(t, 4.0, report.Daily.Limit)
	require.Equal(t, models.AlertSafe, report.Monthly.Alert)
	require.Equal(t, 200.0, report.Monthly.Limit)
}

func TestProjectionEndpoint(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.DailyBudget = 4 })

	code, body := do(t, ts, http.MethodGet, "/api/costs/projection", "")
	require.Equal(t, http.StatusOK, code)
	empty := decode[models.BudgetProjection](t, body)
	require.Equal(t, models.ProjectionUnknown, empty.Daily.Status)

	code, _ = do(t, ts, http.MethodPost, "/api/costs/ingest", `{"cost":30,"model":"m"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, ts, http.MethodGet, "/api/costs/projection", "")
	require.Equal(t, http.StatusOK, code)
	proj := decode[models.BudgetProjection](t, body)
	require.Equal(t, models.ProjectionCritical, proj.Daily.Status)
	require.NotNil(t, proj.Daily.ResetAt)
	require.Nil(t, proj.Monthly.ResetAt)
	require.True(t, proj.Monthly.WillExceed)
}

func TestSessionStats_Placeholder(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, ts, http.MethodGet, "/api/costs/session-stats", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"unknown","lastActivity":null}`, string(body))
}

func TestIngest(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, ts, http.MethodPost, "/api/costs/ingest",
		`{"cost":2.5,"model":"m1","feature":"Chat","input_tokens":100,"output_tokens":20}`)
	require.Equal(t, http.StatusOK, code)
	ev := decode[models.CostEvent](t, body)
	require.NotEmpty(t, ev.EventID)
	require.Equal(t, int64(100), ev.InputTokens)

	_, body = do(t, ts, http.MethodGet, "/api/costs/summary", "")
	rollup := decode[models.UsageRollup](t, body)
	require.Equal(t, 2.5, rollup.Today.Cost)
	require.Equal(t, 2.5, rollup.Month.Cost)
	require.Equal(t, models.ModelUsage{Cost: 2.5}, rollup.ByModel["m1"])
	require.Equal(t, 2.5, rollup.ByFeature["Chat"].Cost)

	tests := []struct {
		name string
		body string
	}{
		{"NegativeCost", `{"cost":-1}`},
		{"BadJSON", `{"cost":`},
		{"WrongType", `{"cost":"a lot"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, ts, http.MethodPost, "/api/costs/ingest", tt.body)
			require.Equal(t, http.StatusBadRequest, code)
			require.Contains(t, string(body), `"error"`)
		})
	}
}

func TestIngest_RateLimited(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.IngestRateLimit = 1 })

	code, _ := do(t, ts, http.MethodPost, "/api/costs/ingest", `{"cost":1}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, ts, http.MethodPost, "/api/costs/ingest", `{"cost":1}`)
	require.Equal(t, http.StatusTooManyRequests, code)
}

func TestTasks(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, ts, http.MethodPost, "/api/tasks", `{"name":"Ship it","complexity":"high"}`)
	require.Equal(t, http.StatusOK, code)
	task := decode[models.Task](t, body)
	require.Equal(t, models.DefaultMomentum, task.MomentumScore)
	require.Equal(t, "pending", task.Status)

	_, _ = do(t, ts, http.MethodPost, "/api/tasks", `{"name":"Later","momentum_score":0,"complexity":"low"}`)

	code, body = do(t, ts, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 2)
	require.Equal(t, "Ship it", listed[0]["name"])
	require.Equal(t, 85.0, listed[0]["momentum_score"])
	require.Equal(t, 20.0, listed[1]["momentum_score"])

	code, body = do(t, ts, http.MethodGet, "/api/tasks?status=done", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(body))

	code, body = do(t, ts, http.MethodPatch, "/api/tasks/"+itoa(task.ID), `{"status":"done","id":99}`)
	require.Equal(t, http.StatusOK, code)
	updated := decode[models.Task](t, body)
	require.Equal(t, "done", updated.Status)
	require.Equal(t, task.ID, updated.ID)

	code, body = do(t, ts, http.MethodGet, "/api/tasks/999", "")
	require.Equal(t, http.StatusNotFound, code)
	require.JSONEq(t, `{"error":"Task not found"}`, string(body))

	code, _ = do(t, ts, http.MethodGet, "/api/tasks/abc", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, ts, http.MethodPost, "/api/tasks", `{}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, ts, http.MethodDelete, "/api/tasks/"+itoa(task.ID), "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"success":true}`, string(body))

	code, _ = do(t, ts, http.MethodDelete, "/api/tasks/"+itoa(task.ID), "")
	require.Equal(t, http.StatusNotFound, code)

	_, body = do(t, ts, http.MethodGet, "/api/activity?limit=5", "")
	activity := decode[[]models.Activity](t, body)
	require.NotEmpty(t, activity)
	require.Equal(t, "Task: Later", activity[0].Message)
}

func TestProjects(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, ts, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, decode[[]models.Project](t, body), 1)

	code, body = do(t, ts, http.MethodPost, "/api/projects", `{"name":"Docs","tags":["a","b"]}`)
	require.Equal(t, http.StatusOK, code)
	p := decode[models.Project](t, body)
	require.Equal(t, "a,b", p.Tags)

	code, body = do(t, ts, http.MethodPatch, "/api/projects/"+itoa(p.ID), `{"progress":40,"status_notes":"halfway"}`)
	require.Equal(t, http.StatusOK, code)
	p = decode[models.Project](t, body)
	require.Equal(t, 40, p.Progress)
	require.NotNil(t, p.StatusNotes)

	code, _ = do(t, ts, http.MethodPatch, "/api/projects/999", `{"progress":1}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, ts, http.MethodDelete, "/api/projects/"+itoa(p.ID), "")
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, ts, http.MethodGet, "/api/projects/"+itoa(p.ID), "")
	require.Equal(t, http.StatusNotFound, code)
	require.JSONEq(t, `{"error":"Project not found"}`, string(body))
}

func TestInventoryEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, ts, http.MethodGet, "/api/skills", "")
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, decode[[]models.Skill](t, body))

	code, _ = do(t, ts, http.MethodPost, "/api/skills/record", `{"name":"nobody-knows-this"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, ts, http.MethodGet, "/api/cron", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, decode[[]models.CronJob](t, body), 2)

	code, body = do(t, ts, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, decode[[]models.Channel](t, body), 2)

	code, _ = do(t, ts, http.MethodPatch, "/api/channels/whatsapp", `{"status":"active"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, ts, http.MethodPatch, "/api/channels/pigeon", `{"status":"active"}`)
	require.Equal(t, http.StatusNotFound, code)
}

func TestStatusAndRedirect(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.AgentName = "Clawd" })

	code, body := do(t, ts, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	status := decode[map[string]any](t, body)
	require.Equal(t, true, status["online"])
	require.Equal(t, "Clawd", status["agent"])
	require.Equal(t, "disconnected", status["gateway"])

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status/costs", nil)
	require.NoError(t, err)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/api/costs/summary", resp.Header.Get("Location"))
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, _ := do(t, ts, http.MethodOptions, "/api/tasks", "")
	require.Equal(t, http.StatusNoContent, code)

	resp, err := http.Get(ts.URL + "/api/cron")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t, nil)

	_, _ = do(t, ts, http.MethodGet, "/api/costs/summary", "")
	code, body := do(t, ts, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	text := string(body)
	require.Contains(t, text, `mission_control_http_requests_total{code="200",route="GET /api/costs/summary"}`)
	require.Contains(t, text, `mission_control_cost_usd{period="today"} 0`)
	require.Contains(t, text, "mission_control_ws_clients 0")
}

func TestRecover(t *testing.T) {
	h := withRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteJSON_Unencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, models.BudgetReport{Daily: models.BudgetStatus{Limit: math.Inf(1)}})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, okResponse)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestStaticClient(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>mission control</h1>"), 0o600))

	_, ts := newTestServer(t, func(c *config.Config) { c.ClientDir = dir })

	code, body := do(t, ts, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "mission control")
}

func TestNoStaticClient(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, _ := do(t, ts, http.MethodGet, "/index.html", "")
	require.Equal(t, http.StatusNotFound, code)
}

func readPush(t *testing.T, conn *websocket.Conn, want string) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestWebSocketPush(t *testing.T) {
	for _, path := range []string{"/ws", "/"} {
		t.Run(path, func(t *testing.T) {
			srv, ts := newTestServer(t, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go srv.Forward(ctx)

			url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			require.NoError(t, err)
			defer conn.Close()

			require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

			code, _ := do(t, ts, http.MethodPost, "/api/agent/event",
				`{"type":"agent:message","message":"hello","details":{"k":1}}`)
			require.Equal(t, http.StatusOK, code)

			msg := readPush(t, conn, PushAgentEvent)
			data, err := json.Marshal(msg.Data)
			require.NoError(t, err)
			require.JSONEq(t, `{"type":"agent:message","message":"hello","details":{"k":1}}`, string(data))

			code, _ = do(t, ts, http.MethodPost, "/api/tasks", `{"name":"pushed"}`)
			require.Equal(t, http.StatusOK, code)
			readPush(t, conn, PushTasksUpdated)

			code, _ = do(t, ts, http.MethodPost, "/api/costs/ingest", `{"cost":1.25}`)
			require.Equal(t, http.StatusOK, code)
			msg = readPush(t, conn, PushUsageUpdated)
			data, err = json.Marshal(msg.Data)
			require.NoError(t, err)
			var update struct {
				Summary models.UsageRollup  `json:"summary"`
				Budget  models.BudgetReport `json:"budget"`
			}
			require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(&update))
			require.Equal(t, 1.25, update.Summary.Today.Cost)
			require.Equal(t, 1.25, update.Budget.Daily.Spent)
		})
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
