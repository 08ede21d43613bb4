// Package activity provides the activity log and agent inventory tab.
package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
)

const inventoryTimeout = 5 * time.Second

// keyMap defines the key bindings specific to the activity tab.
type keyMap struct {
	Filter key.Binding
	Up     key.Binding
	Down   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Filter: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "filter type"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// inventory is the agent's skills, cron jobs and channels.
type inventory struct {
	skills   []models.Skill
	cronJobs []models.CronJob
	channels []models.Channel
}

type inventoryLoadedMsg struct {
	inv inventory
}

type inventoryErrorMsg struct {
	err string
}

// Model represents the activity tab state.
type Model struct {
	state      *app.State
	services   *services.Manager
	inventory  *inventory
	lastLoad   time.Time
	keys       keyMap
	typeFilter string
	errorMsg   string
	viewport   viewport.Model
	width      int
	height     int
	loading    bool
}

// New creates a new activity model. svc may be nil, in which case only the
// shared activity log is shown.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:    state,
		services: svc,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the activity tab.
func (m *Model) Init() tea.Cmd {
	return m.reloadInventory()
}

func (m *Model) reloadInventory() tea.Cmd {
	if m.services == nil || m.loading {
		return nil
	}
	m.loading = true
	return m.loadInventoryCmd()
}

func (m *Model) loadInventoryCmd() tea.Cmd {
	svc := m.services
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), inventoryTimeout)
		defer cancel()

		var inv inventory
		var err error
		if inv.skills, err = svc.Skills(ctx); err != nil {
			return inventoryErrorMsg{err: err.Error()}
		}
		if inv.cronJobs, err = svc.CronJobs(ctx); err != nil {
			return inventoryErrorMsg{err: err.Error()}
		}
		if inv.channels, err = svc.Channels(ctx); err != nil {
			return inventoryErrorMsg{err: err.Error()}
		}
		return inventoryLoadedMsg{inv: inv}
	}
}

// Update handles messages for the activity tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case inventoryLoadedMsg:
		m.inventory = &msg.inv
		m.loading = false
		m.lastLoad = time.Now()
		m.errorMsg = ""

	case inventoryErrorMsg:
		m.loading = false
		m.errorMsg = msg.err
		cmds = append(cmds, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("Inventory error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		})

	case app.TabSwitchMsg:
		if msg.Tab == app.TabActivity {
			cmds = append(cmds, m.reloadInventory())
		}

	case app.RefreshMsg:
		cmds = append(cmds, m.reloadInventory())

	case app.ServiceEventMsg:
		switch msg.Event.(type) {
		case services.AgentEvent, services.SnapshotTakenEvent:
			cmds = append(cmds, m.reloadInventory())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Filter) {
		m.typeFilter = nextFilter(m.typeFilter, activityTypes(m.state.GetActivity()))
		m.viewport.GotoTop()
		return nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

// activityTypes returns the distinct entry types of log, sorted.
func activityTypes(log []models.Activity) []string {
	types := lo.Uniq(lo.Map(log, func(a models.Activity, _ int) string { return a.Type }))
	sort.Strings(types)
	return types
}

// nextFilter steps from current to the following type, wrapping back to
// the unfiltered view after the last one.
func nextFilter(current string, types []string) string {
	if current == "" {
		if len(types) == 0 {
			return ""
		}
		return types[0]
	}
	idx := lo.IndexOf(types, current)
	if idx < 0 || idx == len(types)-1 {
		return ""
	}
	return types[idx+1]
}

// visibleActivity returns the log entries that pass the type filter.
func (m *Model) visibleActivity() []models.Activity {
	log := m.state.GetActivity()
	if m.typeFilter == "" {
		return log
	}
	return lo.Filter(log, func(a models.Activity, _ int) bool {
		return a.Type == m.typeFilter
	})
}

// SetSize sets the available size for the activity tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.Filter, m.keys.Down}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Filter},
		{m.keys.Up, m.keys.Down},
	}
}
