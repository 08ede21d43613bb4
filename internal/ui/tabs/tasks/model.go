// Package tasks provides the momentum-ranked task tab.
package tasks

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/ui/components"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

// Task statuses the tab cycles through.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// statusFilters are the views selectable with the filter key. The empty
// filter shows every task.
var statusFilters = []string{"", StatusPending, StatusInProgress, StatusDone}

// NextStatus returns the status a task moves to when cycled.
func NextStatus(status string) string {
	switch status {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusPending
	}
}

// formField represents which field is currently focused in the add form.
type formField int

const (
	fieldName formField = iota
	fieldDescription
	fieldSubmit
	fieldCancel
	fieldCount
)

// keyMap defines the key bindings specific to the tasks tab.
type keyMap struct {
	Status key.Binding
	Filter key.Binding
	Delete key.Binding
	Add    key.Binding
	Escape key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Status: key.NewBinding(
			key.WithKeys("s", "enter"),
			key.WithHelp("s", "cycle status"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter status"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Add: key.NewBinding(
			key.WithKeys("n", "a"),
			key.WithHelp("n", "new task"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Model represents the tasks tab state.
type Model struct {
	state            *app.State
	commands         *app.Commands
	table            table.Model
	nameInput        textinput.Model
	descriptionInput textinput.Model
	spinner          components.LoadingSpinner
	keys             keyMap
	pendingDelete    *models.RankedTask
	width            int
	height           int
	focusedField     formField
	filter           int
	adding           bool
}

// New creates a new tasks model. commands may be nil, in which case the tab
// is read-only.
func New(state *app.State, commands *app.Commands) *Model {
	nameInput := textinput.New()
	nameInput.Placeholder = "Task name"
	nameInput.CharLimit = 120
	nameInput.Width = 40

	descriptionInput := textinput.New()
	descriptionInput.Placeholder = "Optional description"
	descriptionInput.CharLimit = 500
	descriptionInput.Width = 40

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtle).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Primary)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.BgLight).
		Bold(true)
	t.SetStyles(s)

	return &Model{
		state:            state,
		commands:         commands,
		table:            t,
		nameInput:        nameInput,
		descriptionInput: descriptionInput,
		spinner:          components.NewSpinner("Ranking tasks..."),
		keys:             defaultKeyMap(),
	}
}

// columns sizes the table to width, giving the name column the slack.
func columns(width int) []table.Column {
	nameWidth := min(max(width-58, 20), 60)
	return []table.Column{
		{Title: "Momentum", Width: 9},
		{Title: "Task", Width: nameWidth},
		{Title: "Status", Width: 12},
		{Title: "Complexity", Width: 10},
		{Title: "Est. Cost", Width: 10},
	}
}

// Init initializes the tasks tab.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update handles messages for the tasks tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	if m.adding {
		return m.updateAddForm(msg)
	}

	if m.pendingDelete != nil {
		return m.updateDeleteConfirm(msg)
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Status):
			if task, ok := m.selectedTask(); ok && m.commands != nil {
				cmds = append(cmds, m.commands.SetTaskStatus(task, NextStatus(task.Status)))
			}

		case key.Matches(msg, m.keys.Filter):
			m.filter = (m.filter + 1) % len(statusFilters)
			m.table.SetCursor(0)
			m.state.SetSelectedTask(0)
			m.updateTableData()

		case key.Matches(msg, m.keys.Delete):
			if task, ok := m.selectedTask(); ok {
				m.pendingDelete = &task
			}

		case key.Matches(msg, m.keys.Add):
			m.adding = true
			m.focusedField = fieldName
			m.nameInput.SetValue("")
			m.descriptionInput.SetValue("")
			m.updateFormFocus()
			return m, textinput.Blink

		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			m.state.SetSelectedTask(m.table.Cursor())
			cmds = append(cmds, cmd)
		}

	case app.TasksLoadedMsg:
		m.updateTableData()
	}

	return m, tea.Batch(cmds...)
}

// updateAddForm handles the new task form.
func (m *Model) updateAddForm(msg tea.Msg) (app.Tab, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.closeForm()
			return m, nil

		case "tab", "down":
			m.focusedField = (m.focusedField + 1) % fieldCount
			m.updateFormFocus()
			return m, textinput.Blink

		case "shift+tab", "up":
			m.focusedField = (m.focusedField - 1 + fieldCount) % fieldCount
			m.updateFormFocus()
			return m, textinput.Blink

		case "enter":
			switch m.focusedField {
			case fieldSubmit:
				return m, m.submitForm()
			case fieldCancel:
				m.closeForm()
				return m, nil
			default:
				m.focusedField++
				m.updateFormFocus()
				return m, textinput.Blink
			}
		}
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case fieldName:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case fieldDescription:
		m.descriptionInput, cmd = m.descriptionInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) submitForm() tea.Cmd {
	name := strings.TrimSpace(m.nameInput.Value())
	if name == "" {
		m.focusedField = fieldName
		m.updateFormFocus()
		return func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationWarning,
				Message:  "Task name is required",
				Duration: app.QuickNotificationDuration,
			}
		}
	}

	m.closeForm()
	if m.commands == nil {
		return nil
	}
	return m.commands.CreateTask(models.NewTask{
		Name:        name,
		Description: strings.TrimSpace(m.descriptionInput.Value()),
	})
}

func (m *Model) closeForm() {
	m.adding = false
	m.nameInput.Blur()
	m.descriptionInput.Blur()
}

// updateDeleteConfirm handles the delete confirmation.
func (m *Model) updateDeleteConfirm(msg tea.Msg) (app.Tab, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		task := *m.pendingDelete
		m.pendingDelete = nil
		if m.commands == nil {
			return m, nil
		}
		return m, m.commands.DeleteTask(task)
	case "n", "N", "esc":
		m.pendingDelete = nil
	}
	return m, nil
}

func (m *Model) updateFormFocus() {
	m.nameInput.Blur()
	m.descriptionInput.Blur()

	switch m.focusedField {
	case fieldName:
		m.nameInput.Focus()
	case fieldDescription:
		m.descriptionInput.Focus()
	}
}

// visibleTasks returns the ranked tasks that pass the status filter.
func (m *Model) visibleTasks() []models.RankedTask {
	tasks := m.state.GetTasks()
	status := statusFilters[m.filter]
	if status == "" {
		return tasks
	}
	return lo.Filter(tasks, func(t models.RankedTask, _ int) bool {
		return t.Status == status
	})
}

func (m *Model) selectedTask() (models.RankedTask, bool) {
	tasks := m.visibleTasks()
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(tasks) {
		return models.RankedTask{}, false
	}
	return tasks[idx], true
}

// updateTableData rebuilds the table rows from state.
func (m *Model) updateTableData() {
	tasks := m.visibleTasks()
	rows := lo.Map(tasks, func(t models.RankedTask, _ int) table.Row {
		return table.Row{
			fmt.Sprintf("%3d", t.Momentum),
			t.Name,
			t.Status,
			t.Complexity,
			fmt.Sprintf("$%.2f", t.EstimatedCost),
		}
	})
	m.table.SetRows(rows)

	if cursor := m.state.GetSelectedTask(); cursor < len(rows) {
		m.table.SetCursor(cursor)
	}
}

// SetSize sets the available size for the tasks tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetHeight(max(height-10, 3))
	m.table.SetColumns(columns(width))
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	if m.adding {
		return []key.Binding{
			key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
			m.keys.Escape,
		}
	}
	return []key.Binding{m.keys.Status, m.keys.Add, m.keys.Delete}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Status, m.keys.Filter},
		{m.keys.Add, m.keys.Delete},
	}
}

// CapturingInput reports whether the new task form is open.
func (m *Model) CapturingInput() bool {
	return m.adding
}
