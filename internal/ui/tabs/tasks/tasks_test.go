package tasks

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
)

func newTestManager(t *testing.T) *services.Manager {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(tmpDir, "test.db")
	cfg.SessionsPath = filepath.Join(tmpDir, "sessions")
	cfg.Serverless = true
	cfg.DesktopNotifications = false

	mgr, err := services.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func readyState(tasks ...models.RankedTask) *app.State {
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	state.SetTasks(tasks)
	return state
}

func sampleTasks() []models.RankedTask {
	return []models.RankedTask{
		{Task: models.Task{ID: 1, Name: "Ship budget alerts", Status: StatusInProgress, Complexity: models.ComplexityHigh}, Momentum: 90},
		{Task: models.Task{ID: 2, Name: "Write release notes", Status: StatusPending, Complexity: models.ComplexityLow}, Momentum: 55},
		{Task: models.Task{ID: 3, Name: "Archive old logs", Status: StatusDone}, Momentum: 10},
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusDone},
		{StatusDone, StatusPending},
		{"blocked", StatusPending},
	}
	for _, tt := range tests {
		if got := NextStatus(tt.in); got != tt.want {
			t.Errorf("NextStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModel_View(t *testing.T) {
	m := New(readyState(sampleTasks()...), nil)
	m.SetSize(120, 30)

	view := m.View()
	for _, want := range []string{"Tasks", "3 tasks by momentum", "Ship budget alerts", "90", "in_progress"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_EmptyState(t *testing.T) {
	m := New(readyState(), nil)
	m.SetSize(100, 30)

	if !strings.Contains(m.View(), "No Tasks") {
		t.Error("empty task list should render the empty state")
	}
}

func TestModel_Filter(t *testing.T) {
	m := New(readyState(sampleTasks()...), nil)
	m.SetSize(120, 30)

	m.Update(runeKey('f'))
	visible := m.visibleTasks()
	if len(visible) != 1 || visible[0].Status != StatusPending {
		t.Fatalf("pending filter = %+v", visible)
	}
	if !strings.Contains(m.View(), "1 tasks by momentum · pending") {
		t.Error("title should name the active filter")
	}

	for range len(statusFilters) - 1 {
		m.Update(runeKey('f'))
	}
	if got := len(m.visibleTasks()); got != 3 {
		t.Errorf("filter should wrap back to all tasks, got %d", got)
	}
}

func TestModel_Selection(t *testing.T) {
	state := readyState(sampleTasks()...)
	m := New(state, nil)
	m.SetSize(120, 30)
	m.updateTableData()

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := state.GetSelectedTask(); got != 1 {
		t.Errorf("selected = %d, want 1", got)
	}
	task, ok := m.selectedTask()
	if !ok || task.ID != 2 {
		t.Errorf("selectedTask = %+v, %v", task, ok)
	}
}

func TestModel_DeleteConfirm(t *testing.T) {
	m := New(readyState(sampleTasks()...), app.NewCommands(nil))
	m.SetSize(120, 30)
	m.updateTableData()

	m.Update(runeKey('d'))
	if m.pendingDelete == nil || m.pendingDelete.ID != 1 {
		t.Fatalf("pendingDelete = %+v", m.pendingDelete)
	}
	if !strings.Contains(m.View(), "Delete Task?") {
		t.Error("confirmation dialog should render")
	}

	m.Update(runeKey('n'))
	if m.pendingDelete != nil {
		t.Error("n should cancel the delete")
	}
}

func TestModel_AddFormValidation(t *testing.T) {
	m := New(readyState(), app.NewCommands(nil))
	m.SetSize(100, 30)

	m.Update(runeKey('n'))
	if !m.CapturingInput() {
		t.Fatal("n should open the form")
	}
	if !strings.Contains(m.View(), "New Task") {
		t.Error("form should render")
	}

	m.focusedField = fieldSubmit
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("submitting without a name should warn")
	}
	msg, ok := cmd().(app.AddNotificationMsg)
	if !ok || msg.Type != app.NotificationWarning {
		t.Errorf("cmd() = %#v, want warning notification", msg)
	}
	if !m.CapturingInput() {
		t.Error("form should stay open after a validation failure")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.CapturingInput() {
		t.Error("esc should close the form")
	}
}

func TestModel_CreateTask(t *testing.T) {
	mgr := newTestManager(t)
	m := New(readyState(), app.NewCommands(mgr))
	m.SetSize(100, 30)

	m.Update(runeKey('n'))
	for _, r := range "Tune alerts" {
		m.Update(runeKey(r))
	}
	m.focusedField = fieldSubmit

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("submit should return a command")
	}
	created, ok := cmd().(app.TaskCreatedMsg)
	if !ok || created.Error != nil || created.Name != "Tune alerts" {
		t.Fatalf("cmd() = %#v", created)
	}

	tasks, err := mgr.Tasks(context.Background(), models.TaskFilter{})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	found := false
	for _, task := range tasks {
		found = found || task.Name == "Tune alerts"
	}
	if !found {
		t.Error("created task not stored")
	}
}

func TestModel_CycleStatus(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	task, err := mgr.CreateTask(ctx, models.NewTask{Name: "Cycle me"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	m := New(readyState(models.RankedTask{Task: *task, Momentum: 50}), app.NewCommands(mgr))
	m.SetSize(100, 30)
	m.updateTableData()

	_, cmd := m.Update(runeKey('s'))
	if cmd == nil {
		t.Fatal("s should return a command")
	}
	changed, ok := cmd().(app.TaskStatusChangedMsg)
	if !ok || changed.Error != nil || changed.Status != StatusInProgress {
		t.Fatalf("cmd() = %#v", changed)
	}

	detail, err := mgr.Task(ctx, task.ID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if detail.Status != StatusInProgress {
		t.Errorf("status = %q, want %q", detail.Status, StatusInProgress)
	}
}
