// Package costs provides the cost and budget tab.
package costs

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/services"
	"github.com/j-veylop/mission-control/internal/ui/components"
)

const (
	animationInterval = 40 * time.Millisecond
	animationDuration = 1.5 // seconds

	dailyBarKey   = "daily"
	monthlyBarKey = "monthly"
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(animationInterval, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the costs tab.
type keyMap struct {
	ToggleChart key.Binding
	Top         key.Binding
	Bottom      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleChart: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "chart/heatmap"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// AnimationState tracks a budget bar easing towards its target percent.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the costs tab state.
type Model struct {
	state          *app.State
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	dailyBar       components.BudgetBar
	monthlyBar     components.BudgetBar
	width          int
	height         int
	animationFrame int
	heatmap        bool
}

// New creates a new costs model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		spinner:    components.NewSpinner("Reading session logs..."),
		dailyBar:   components.NewBudgetBar("Daily"),
		monthlyBar: components.NewBudgetBar("Monthly"),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.StartLoadingMsg:
		cmds = append(cmds, animationTickCmd())

	case app.UsageLoadedMsg, app.RefreshMsg, app.TickMsg:
		if m.syncAnimationTargets(time.Now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case app.ServiceEventMsg:
		if _, ok := msg.Event.(services.UsageUpdatedEvent); ok && m.syncAnimationTargets(time.Now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	animating := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if animating || m.state.IsInitialLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ToggleChart):
		m.heatmap = !m.heatmap
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points the budget bars at the current report and
// reports whether any bar still has to move.
func (m *Model) syncAnimationTargets(now time.Time) bool {
	rollup, report := m.state.GetUsage()
	if rollup == nil {
		return false
	}

	daily := m.updateAnimationState(dailyBarKey, min(report.Daily.Percent, 100), now)
	monthly := m.updateAnimationState(monthlyBarKey, min(report.Monthly.Percent, 100), now)
	return daily || monthly
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	target = max(target, 0)

	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}

		elapsed := now.Sub(state.StartTime).Seconds()
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}

		progress := elapsed / animationDuration
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
	}
}

// displayPercent returns the animated percent of a bar, falling back to the
// target when the bar has not started animating.
func (m *Model) displayPercent(animKey string, target float64) float64 {
	if anim, ok := m.animations[animKey]; ok {
		return anim.CurrentPercent
	}
	return target
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.ToggleChart, m.keys.Top}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleChart},
		{m.keys.Top, m.keys.Bottom},
	}
}
