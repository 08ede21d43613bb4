package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/budget"
	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
)

func newTestManager(t *testing.T) *services.Manager {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(tmpDir, "test.db")
	cfg.SessionsPath = filepath.Join(tmpDir, "openclaw")
	cfg.Serverless = true
	cfg.DesktopNotifications = false

	mgr, err := services.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

// stubTab records the messages it receives.
type stubTab struct {
	received []tea.Msg
	width    int
	height   int
}

func (s *stubTab) Init() tea.Cmd { return nil }
func (s *stubTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	s.received = append(s.received, msg)
	return s, nil
}
func (s *stubTab) View() string              { return "stub view" }
func (s *stubTab) SetSize(width, height int) { s.width, s.height = width, height }
func (s *stubTab) ShortHelp() []key.Binding {
	return []key.Binding{key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stub action"))}
}
func (s *stubTab) FullHelp() [][]key.Binding { return nil }

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)
	if model.state == nil {
		t.Error("State should be initialized")
	}
	if model.activeTab != TabCosts {
		t.Error("Default tab should be Costs")
	}
	if len(model.tabs) != 4 {
		t.Errorf("Should have 4 tab slots, got %d", len(model.tabs))
	}
}

func TestTabID_String(t *testing.T) {
	tests := map[TabID]string{
		TabCosts:    "Costs",
		TabTasks:    "Tasks",
		TabActivity: "Activity",
		TabInfo:     "Info",
		TabID(9):    "Unknown",
	}
	for id, want := range tests {
		if got := id.String(); got != want {
			t.Errorf("TabID(%d).String() = %q, want %q", id, got, want)
		}
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(nil)
	if cmd := model.Init(); cmd == nil {
		t.Error("Init returned nil command")
	}
	if !model.state.IsInitialLoading() {
		t.Error("state should be loading after Init")
	}
}

func TestModel_WindowSize(t *testing.T) {
	model := NewModel(nil)
	tab := &stubTab{}
	model.SetTabs([]Tab{tab, nil, nil, nil})

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	m := newModel.(*Model)

	if !m.IsReady() {
		t.Error("Model should be ready after WindowSizeMsg")
	}
	if tab.width != 100 || tab.height != 50-chromeHeight {
		t.Errorf("tab size = %dx%d, want 100x%d", tab.width, tab.height, 50-chromeHeight)
	}
}

func TestModel_TabKeys(t *testing.T) {
	model := NewModel(nil)

	tests := []struct {
		key  tea.KeyMsg
		want TabID
	}{
		{runeKey('2'), TabTasks},
		{runeKey('3'), TabActivity},
		{runeKey('4'), TabInfo},
		{tea.KeyMsg{Type: tea.KeyTab}, TabCosts},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, TabInfo},
		{runeKey('1'), TabCosts},
	}

	for _, tt := range tests {
		model.Update(tt.key)
		if model.GetActiveTab() != tt.want {
			t.Errorf("after %q active tab = %v, want %v", tt.key.String(), model.GetActiveTab(), tt.want)
		}
	}

	model.Update(TabSwitchMsg{Tab: TabActivity})
	if model.GetActiveTab() != TabActivity {
		t.Errorf("TabSwitchMsg: active tab = %v, want Activity", model.GetActiveTab())
	}
}

func TestModel_UnhandledKeysReachTab(t *testing.T) {
	model := NewModel(nil)
	tab := &stubTab{}
	model.SetTabs([]Tab{tab, nil, nil, nil})

	model.Update(runeKey('j'))
	model.Update(runeKey('2'))

	if len(tab.received) != 1 {
		t.Fatalf("tab received %d messages, want 1", len(tab.received))
	}
	if k, ok := tab.received[0].(tea.KeyMsg); !ok || k.String() != "j" {
		t.Errorf("tab received %v, want key j", tab.received[0])
	}
}

func TestModel_Help(t *testing.T) {
	model := NewModel(nil)
	model.SetTabs([]Tab{&stubTab{}, nil, nil, nil})
	model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	model.Update(runeKey('?'))
	if !model.showHelp {
		t.Fatal("help should be visible")
	}

	view := model.View()
	if !strings.Contains(view, "Keyboard Shortcuts") || !strings.Contains(view, "stub action") {
		t.Error("help overlay should list global and tab shortcuts")
	}

	// Tab keys are swallowed while help is open.
	model.Update(runeKey('3'))
	if model.GetActiveTab() != TabCosts {
		t.Error("tab switch should be ignored while help is open")
	}

	model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.showHelp {
		t.Error("Esc should close help")
	}
}

func TestModel_Quit(t *testing.T) {
	model := NewModel(nil)
	_, cmd := model.Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModel_Tick(t *testing.T) {
	model := NewModel(nil)
	if _, cmd := model.Update(TickMsg{Time: time.Now()}); cmd == nil {
		t.Error("TickMsg should schedule the next tick")
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(nil)

	if view := model.View(); !strings.Contains(view, "Loading...") {
		t.Error("View should show Loading when not ready")
	}

	model.Update(tea.WindowSizeMsg{Width: 100, Height: 24})
	view := model.View()
	for _, name := range []string{"Costs", "Tasks", "Activity", "Info"} {
		if !strings.Contains(view, name) {
			t.Errorf("navbar should show %s", name)
		}
	}
	if !strings.Contains(view, "Nothing to show here yet.") {
		t.Error("View should show placeholder text for a missing tab")
	}
	if !strings.Contains(view, "? help") {
		t.Error("status bar should mention help")
	}
}

func TestModel_Notifications(t *testing.T) {
	model := NewModel(nil)
	model.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	_, cmd := model.Update(AddNotificationMsg{Type: NotificationError, Message: "boom", Duration: time.Hour})
	if cmd == nil {
		t.Error("timed notification should schedule its removal")
	}

	view := model.View()
	if !strings.Contains(view, "[ERR] boom") {
		t.Error("View should render the error toast")
	}

	id := model.state.GetNotifications()[0].ID
	model.Update(RemoveNotificationMsg{ID: id})
	if len(model.state.GetNotifications()) != 0 {
		t.Error("notification should be removed")
	}
}

func TestModel_LoadedMessages(t *testing.T) {
	model := NewModel(nil)
	model.Init()

	model.Update(UsageLoadedMsg{
		Rollup: &models.UsageRollup{Today: models.TokenTotals{Cost: 3}},
		Budget: models.BudgetReport{Daily: models.BudgetStatus{Alert: models.AlertCaution}},
		Trend:  []models.DailyTrend{{Date: "2026-04-01", Cost: 3}},
	})
	model.Update(TasksLoadedMsg{Tasks: []models.RankedTask{{Momentum: 70}}})
	model.Update(ActivityLoadedMsg{Activity: []models.Activity{{ID: 1}}})

	if model.state.AnyLoading() {
		t.Error("nothing should be loading after all loads complete")
	}
	if rollup, report := model.state.GetUsage(); rollup.Today.Cost != 3 || report.Daily.Alert != models.AlertCaution {
		t.Error("usage should be stored in state")
	}
	if len(model.state.GetTrend()) != 1 || len(model.state.GetTasks()) != 1 || len(model.state.GetActivity()) != 1 {
		t.Error("trend, tasks and activity should be stored in state")
	}
	for _, n := range model.state.GetNotifications() {
		if n.ID == LoadingNotificationID {
			t.Error("loading notification should be cleared")
		}
	}
}

func TestModel_LoadErrorNotifies(t *testing.T) {
	model := NewModel(nil)

	_, cmd := model.Update(TasksLoadedMsg{Error: errors.New("db locked")})
	if cmd == nil {
		t.Fatal("load error should produce a notification command")
	}

	found := false
	for _, msg := range collect(cmd) {
		if n, ok := msg.(AddNotificationMsg); ok && n.Type == NotificationError && strings.Contains(n.Message, "db locked") {
			found = true
		}
	}
	if !found {
		t.Error("expected an error notification mentioning the cause")
	}
}

func TestModel_ServiceEvents(t *testing.T) {
	model := NewModel(nil)

	model.handleServiceEvent(services.UsageUpdatedEvent{
		Rollup: &models.UsageRollup{Month: models.TokenTotals{Cost: 42}},
	})
	if rollup, _ := model.state.GetUsage(); rollup == nil || rollup.Month.Cost != 42 {
		t.Error("usage_updated should refresh the rollup")
	}

	model.handleServiceEvent(services.ActivityEvent{Activity: &models.Activity{ID: 7, Message: "pushed"}})
	if a := model.state.GetActivity(); len(a) != 1 || a[0].ID != 7 {
		t.Error("activity event should be prepended")
	}

	cmd := model.handleServiceEvent(services.BudgetAlertEvent{Alert: budget.Alert{
		Window: budget.WindowDaily,
		From:   models.AlertWarning,
		Status: models.BudgetStatus{Alert: models.AlertDanger, Spent: 9.5, Limit: 10, Percent: 95},
	}})
	msg, ok := cmd().(AddNotificationMsg)
	if !ok || msg.Type != NotificationWarning {
		t.Fatalf("budget alert should raise a warning toast, got %#v", msg)
	}
	if msg.Message != "Daily budget danger: $9.50 of $10.00 (95%)" {
		t.Errorf("Message = %q", msg.Message)
	}

	cmd = model.handleServiceEvent(services.GatewayEvent{Status: "connected"})
	if cmd == nil || model.state.GetGateway() != "connected" {
		t.Error("gateway status change should be recorded and announced")
	}

	if cmd := model.handleServiceEvent(services.ErrorEvent{Service: "watcher", Error: errors.New("gone")}); cmd == nil {
		t.Error("error event should raise a toast")
	}
}

func TestModel_WithManager(t *testing.T) {
	mgr := newTestManager(t)
	model := NewModel(mgr)

	for _, msg := range collect(loadInitialData(mgr)) {
		model.Update(msg)
	}

	if rollup, _ := model.state.GetUsage(); rollup == nil {
		t.Fatal("usage should be loaded")
	}
	if model.state.IsInitialLoading() {
		t.Error("initial loading should be finished")
	}

	_, err := mgr.CreateTask(context.Background(), models.NewTask{Name: "Ship the terminal view"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	cmd := model.handleServiceEvent(services.TasksUpdatedEvent{})
	if cmd == nil {
		t.Fatal("tasks_updated should reload tasks")
	}
	model.Update(cmd())

	found := false
	for _, task := range model.state.GetTasks() {
		if task.Name == "Ship the terminal view" {
			found = true
		}
	}
	if !found {
		t.Error("reloaded tasks should include the new task")
	}
}

// collect runs a command and flattens batches into their messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}
