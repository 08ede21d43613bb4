// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/mission-control/internal/services"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabCosts is the ID for the costs and budget tab.
	TabCosts TabID = iota
	// TabTasks is the ID for the momentum-ranked task tab.
	TabTasks
	// TabActivity is the ID for the activity log tab.
	TabActivity
	// TabInfo is the ID for the info tab.
	TabInfo
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabCosts:
		return "Costs"
	case TabTasks:
		return "Tasks"
	case TabActivity:
		return "Activity"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// InputCapturer is implemented by tabs that can hold a text input. While
// CapturingInput reports true, global key bindings other than ctrl+c are
// passed through to the tab.
type InputCapturer interface {
	CapturingInput() bool
}

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	Tab4    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "costs")),
		Tab2:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "tasks")),
		Tab3:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "activity")),
		Tab4:    key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "info")),
		NextTab: key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.NextTab, k.PrevTab},
		{k.Refresh, k.Help, k.Quit},
	}
}

// Styles defines the application chrome styles.
type Styles struct {
	TabBar              lipgloss.Style
	ActiveTab           lipgloss.Style
	InactiveTab         lipgloss.Style
	StatusBar           lipgloss.Style
	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style
	Content             lipgloss.Style
	Toast               lipgloss.Style
	Title               lipgloss.Style
	Subtle              lipgloss.Style
	Highlight           lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	return Styles{
		TabBar: lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).BorderForeground(styles.Subtle),
		ActiveTab:           lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Padding(0, 2),
		InactiveTab:         lipgloss.NewStyle().Foreground(styles.Subtle).Padding(0, 2),
		StatusBar:           lipgloss.NewStyle().Foreground(styles.TextMuted).Padding(0, 1),
		NotificationSuccess: lipgloss.NewStyle().Foreground(styles.Success).Padding(0, 1),
		NotificationError:   lipgloss.NewStyle().Foreground(styles.Error).Bold(true).Padding(0, 1),
		NotificationWarning: lipgloss.NewStyle().Foreground(styles.Warning).Padding(0, 1),
		NotificationInfo:    lipgloss.NewStyle().Foreground(styles.Info).Padding(0, 1),
		Content:             lipgloss.NewStyle().Padding(1, 2),
		Toast:               styles.ToastStyle,
		Title:               lipgloss.NewStyle().Bold(true).Foreground(styles.Primary),
		Subtle:              lipgloss.NewStyle().Foreground(styles.Subtle),
		Highlight:           lipgloss.NewStyle().Foreground(styles.Secondary),
	}
}

// chromeHeight is the number of rows taken by the tab bar and status bar.
const chromeHeight = 4

// Model is the main application model.
type Model struct {
	services     *services.Manager
	state        *State
	commands     *Commands
	eventChannel chan services.ServiceEvent
	tabs         []Tab
	tabNames     []string
	keymap       KeyMap
	styles       Styles
	spinner      spinner.Model
	activeTab    TabID
	width        int
	height       int
	showHelp     bool
	ready        bool
}

// NewModel initializes a new application model. Tabs are attached with
// SetTabs.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		activeTab: TabCosts,
		tabNames:  []string{TabCosts.String(), TabTasks.String(), TabActivity.String(), TabInfo.String()},
		tabs:      make([]Tab, 4),
		state:     NewState(),
		services:  mgr,
		commands:  NewCommands(mgr),
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetServices returns the service manager.
func (m *Model) GetServices() *services.Manager {
	return m.services
}

// GetCommands returns the commands helper.
func (m *Model) GetCommands() *Commands {
	return m.commands
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services), loadInitialData(m.services))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateTabSizes()
	case tea.KeyMsg:
		if cmd, handled := m.handleKeyMsg(msg); handled {
			return m, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		if m.services != nil {
			m.state.SetGateway(string(m.services.GatewayStatus()))
		}
		cmds = append(cmds, defaultTickCmd())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event))
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case UsageLoadedMsg:
		cmds = append(cmds, m.handleUsageLoaded(msg))
	case TasksLoadedMsg:
		m.finishLoading(ResourceTasks)
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("Failed to load tasks: %v", msg.Error)))
		} else {
			m.state.SetTasks(msg.Tasks)
		}
	case ActivityLoadedMsg:
		m.finishLoading(ResourceActivity)
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("Failed to load activity: %v", msg.Error)))
		} else {
			m.state.SetActivity(msg.Activity)
		}
	case TaskStatusChangedMsg:
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("Failed to update %s: %v", msg.Name, msg.Error)))
		} else {
			cmds = append(cmds, notifySuccessCmd(fmt.Sprintf("%s → %s", msg.Name, msg.Status)))
		}
	case TaskCreatedMsg:
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("Failed to create %s: %v", msg.Name, msg.Error)))
		} else {
			cmds = append(cmds, notifySuccessCmd("Created "+msg.Name))
		}
	case TaskDeletedMsg:
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("Failed to delete %s: %v", msg.Name, msg.Error)))
		} else {
			cmds = append(cmds, notifySuccessCmd("Deleted "+msg.Name))
		}
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Refreshing...")
	case StopLoadingMsg:
		m.finishLoading(msg.Resource)
	case ErrorMsg:
		cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("%s: %v", msg.Context, msg.Error)))
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg.Resource))
	case TabSwitchMsg:
		m.activeTab = msg.Tab
		m.updateTabSizes()
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func (m *Model) handleUsageLoaded(msg UsageLoadedMsg) tea.Cmd {
	m.state.SetLoading(ResourceInitial, false)
	m.finishLoading(ResourceUsage)

	if msg.Rollup != nil {
		m.state.SetUsage(msg.Rollup, msg.Budget)
		m.state.SetProjection(msg.Projection)
	}
	m.state.SetSession(msg.Session)
	if msg.Error != nil {
		return notifyErrorCmd(fmt.Sprintf("Failed to load snapshot trend: %v", msg.Error))
	}
	m.state.SetTrend(msg.Trend)
	return nil
}

func (m *Model) finishLoading(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleRefresh(resource string) tea.Cmd {
	if m.services == nil {
		return nil
	}

	start := func() tea.Msg { return StartLoadingMsg{Resource: resource} }
	switch resource {
	case ResourceUsage:
		return tea.Batch(start, loadUsageCmd(m.services))
	case ResourceTasks:
		return tea.Batch(start, loadTasksCmd(m.services))
	case ResourceActivity:
		return tea.Batch(start, loadActivityCmd(m.services))
	default:
		m.services.Refresh()
		return tea.Batch(func() tea.Msg { return StartLoadingMsg{Resource: ResourceAll} }, loadInitialData(m.services))
	}
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := max(m.height-chromeHeight, 0)
	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) switchTab(tab TabID) {
	m.activeTab = tab
	m.updateTabSizes()
}

// handleKeyMsg handles the global keys. Unhandled keys fall through to the
// active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.activeTabCapturesInput() {
		if msg.Type == tea.KeyCtrlC {
			return tea.Quit, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil, true
	case key.Matches(msg, m.keymap.Escape) && m.showHelp:
		m.showHelp = false
		return nil, true
	case m.showHelp:
		return nil, true
	case key.Matches(msg, m.keymap.Tab1):
		m.switchTab(TabCosts)
	case key.Matches(msg, m.keymap.Tab2):
		m.switchTab(TabTasks)
	case key.Matches(msg, m.keymap.Tab3):
		m.switchTab(TabActivity)
	case key.Matches(msg, m.keymap.Tab4):
		m.switchTab(TabInfo)
	case key.Matches(msg, m.keymap.NextTab):
		m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabs)))
	case key.Matches(msg, m.keymap.PrevTab):
		m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabs)) % len(m.tabs)))
	case key.Matches(msg, m.keymap.Refresh):
		return m.handleRefresh(ResourceAll), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) activeTabCapturesInput() bool {
	if int(m.activeTab) >= len(m.tabs) || m.tabs[m.activeTab] == nil {
		return false
	}
	c, ok := m.tabs[m.activeTab].(InputCapturer)
	return ok && c.CapturingInput()
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.UsageUpdatedEvent:
		if e.Rollup != nil {
			m.state.SetUsage(e.Rollup, e.Budget)
		}

	case services.BudgetAlertEvent:
		return notifyWarningCmd(fmt.Sprintf("%s budget %s: $%.2f of $%.2f (%.0f%%)",
			capitalize(e.Alert.Window), e.Alert.Status.Alert,
			e.Alert.Status.Spent, e.Alert.Status.Limit, e.Alert.Status.Percent))

	case services.TasksUpdatedEvent, services.ProjectsUpdatedEvent:
		if m.services != nil {
			return loadTasksCmd(m.services)
		}

	case services.ActivityEvent:
		if e.Activity != nil {
			m.state.PrependActivity(*e.Activity, ActivityLimit)
		}

	case services.AgentEvent:
		if m.services != nil {
			return loadActivityCmd(m.services)
		}

	case services.GatewayEvent:
		if e.Status != "" {
			m.state.SetGateway(string(e.Status))
			return notifyInfoCmd("Gateway " + string(e.Status))
		}

	case services.SnapshotTakenEvent:
		if m.services != nil {
			return loadUsageCmd(m.services)
		}

	case services.ErrorEvent:
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(m.spinner.View() + " Loading..."))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		return m.overlayToasts(mainView, toasts)
	}

	return mainView
}

// overlayCentered draws overlay on top of mainView, centered in the window.
func (m *Model) overlayCentered(mainView, overlay string) string {
	mainLines := padLines(strings.Split(mainView, "\n"), m.height)
	overlayLines := strings.Split(overlay, "\n")

	y := max((m.height-len(overlayLines))/2, 0)
	overlayWidth := lipgloss.Width(overlay)
	x := max((m.width-overlayWidth)/2, 0)

	for i, overlayLine := range overlayLines {
		row := y + i
		if row >= len(mainLines) {
			break
		}

		line := mainLines[row]
		left := ansi.Truncate(line, x, "")
		right := ansi.TruncateLeft(line, x+overlayWidth, "")
		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		mainLines[row] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

// padLines extends lines with empty rows up to height so overlays can be
// drawn below short content.
func padLines(lines []string, height int) []string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines
}

func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, len(m.tabNames))
	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	return m.styles.TabBar.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m *Model) renderStatusBar() string {
	parts := []string{"mission control"}

	if since := m.state.TimeSinceUpdate(); since > 0 {
		parts = append(parts, "updated "+since.Truncate(time.Second).String()+" ago")
	}
	if gw := m.state.GetGateway(); gw != "" {
		parts = append(parts, "gateway "+gw)
	}
	parts = append(parts, "? help")

	return m.styles.StatusBar.Width(m.width).Render(strings.Join(parts, " · "))
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = m.styles.NotificationSuccess, "[OK]"
		case NotificationError:
			style, prefix = m.styles.NotificationError, "[ERR]"
		case NotificationWarning:
			style, prefix = m.styles.NotificationWarning, "[WARN]"
		case NotificationLoading:
			style, prefix = m.styles.NotificationInfo, m.spinner.View()
		default:
			style, prefix = m.styles.NotificationInfo, "[INFO]"
		}

		toasts = append(toasts, m.styles.Toast.Render(style.Render(prefix+" "+n.Message)))
	}

	return toasts
}

// overlayToasts stacks toasts in the top-right corner below the tab bar.
func (m *Model) overlayToasts(mainView string, toasts []string) string {
	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := padLines(strings.Split(mainView, "\n"), m.height)

	startX := max(m.width-lipgloss.Width(toastStack)-2, 0)
	const startY = 2

	for i, toastLine := range toastLines {
		row := startY + i
		if row >= len(mainLines) {
			break
		}

		line := mainLines[row]
		if w := lipgloss.Width(line); w < startX {
			mainLines[row] = line + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[row] = ansi.Truncate(line, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	lines := []string{
		m.styles.Title.Render("Keyboard Shortcuts"),
		"",
		m.styles.Highlight.Render("Navigation"),
		"  1-4        Switch tabs",
		"  Tab        Next tab",
		"  Shift+Tab  Previous tab",
		"",
		m.styles.Highlight.Render("Actions"),
		"  r          Recompute costs and reload",
		"  ?          Toggle help",
		"  q/Ctrl+C   Quit",
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
			lines = append(lines, "", m.styles.Highlight.Render(m.tabNames[m.activeTab]+" Tab"))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
		}
	}

	lines = append(lines, "", m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	return m.styles.Content.Render(fmt.Sprintf("Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("Nothing to show here yet."),
	))
}
