package info

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/version"
)

func TestNew(t *testing.T) {
	m := New(app.NewState(), config.Default())
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() != nil {
		t.Error("Init should not schedule work")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState(), config.Default())

	updated, cmd := m.Update(nil)
	if updated == nil {
		t.Error("Update returned nil model")
	}
	if cmd != nil {
		t.Error("non-key messages should be ignored")
	}

	if updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown}); updated == nil {
		t.Error("Update returned nil model for key")
	}
}

func TestModel_View(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = "/tmp/mc/test.db"
	cfg.DailyBudget = 12.5
	cfg.AgentName = "scout"

	state := app.NewState()
	state.SetGateway("connected")

	m := New(state, cfg)
	m.SetSize(100, 80)
	view := m.View()

	for _, want := range []string{
		"/tmp/mc/test.db",
		cfg.Addr(),
		"$12.50",
		"scout",
		"connected",
		"About " + version.AppName,
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ViewServerless(t *testing.T) {
	cfg := config.Default()
	cfg.Serverless = true
	cfg.SnapshotEnabled = false

	m := New(app.NewState(), cfg)
	m.SetSize(100, 80)
	view := m.View()

	if !strings.Contains(view, "disabled") {
		t.Error("serverless config should show the dashboard as disabled")
	}
	if !strings.Contains(view, "unknown") {
		t.Error("missing gateway status should render as unknown")
	}
}

func TestModel_ViewNoConfig(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(80, 40)

	if !strings.Contains(m.View(), "Configuration not loaded") {
		t.Error("nil config should render a placeholder")
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil)
	if len(m.ShortHelp()) == 0 || len(m.FullHelp()) == 0 {
		t.Error("help bindings should not be empty")
	}
}
