package tasks

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mission-control/internal/ui/components"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

// View renders the tasks tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	sections := []string{m.renderTitle()}

	switch {
	case m.adding:
		sections = append(sections, m.renderAddForm())
	case m.pendingDelete != nil:
		sections = append(sections, m.renderDeleteConfirm(), m.renderTable())
	default:
		sections = append(sections, m.renderTable())
	}

	sections = append(sections, m.renderFooter())

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Tasks")

	subtitle := fmt.Sprintf("%d tasks by momentum", len(m.visibleTasks()))
	if status := statusFilters[m.filter]; status != "" {
		subtitle += " · " + status
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.HelpStyle.Render(subtitle), "")
}

func (m *Model) renderTable() string {
	cardWidth := max(m.width-6, 60)

	if len(m.visibleTasks()) == 0 {
		return m.renderEmptyState(cardWidth)
	}

	m.updateTableData()
	return styles.CardStyle.Width(cardWidth).Render(m.table.View())
}

func (m *Model) renderEmptyState(width int) string {
	heading := "No Tasks"
	if status := statusFilters[m.filter]; status != "" {
		heading = "No " + strings.ReplaceAll(status, "_", " ") + " tasks"
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.SubTitleStyle.Render(heading),
		"",
		styles.HelpStyle.Render("Agents add tasks through the API."),
		"",
		styles.InfoTextStyle.Render("Press 'n' to add one here"),
		"",
	)

	return styles.CardStyle.Width(width).Render(content)
}

func (m *Model) renderAddForm() string {
	cardWidth := min(max(m.width-10, 50), 80)

	rows := []string{styles.CardTitleStyle.Render("New Task"), ""}
	rows = append(rows, m.renderField("Name:", fieldName, m.nameInput.View(), cardWidth)...)
	rows = append(rows, m.renderField("Description:", fieldDescription, m.descriptionInput.View(), cardWidth)...)

	submitStyle := styles.ButtonInactiveStyle
	cancelStyle := styles.ButtonInactiveStyle
	if m.focusedField == fieldSubmit {
		submitStyle = styles.ButtonActiveStyle
	}
	if m.focusedField == fieldCancel {
		cancelStyle = styles.ButtonActiveStyle
	}

	rows = append(rows,
		lipgloss.JoinHorizontal(lipgloss.Center,
			submitStyle.Render(" Add Task "),
			"  ",
			cancelStyle.Render(" Cancel "),
		),
		"",
		styles.HelpStyle.Render("Tab: next field | Enter: submit | Esc: cancel"),
	)

	return styles.ModalContentStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderField(label string, field formField, input string, cardWidth int) []string {
	labelStr := styles.BlurredStyle.Render("  " + label)
	inputStyle := styles.BlurredBorderStyle
	if m.focusedField == field {
		labelStr = styles.FocusedStyle.Render("> " + label)
		inputStyle = styles.FocusedBorderStyle
	}
	return []string{labelStr, inputStyle.Width(cardWidth - 10).Render(input), ""}
}

func (m *Model) renderDeleteConfirm() string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.WarningTextStyle.Bold(true).Render("Delete Task?"),
		"",
		styles.ErrorTextStyle.Render(m.pendingDelete.Name),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			styles.ButtonActiveStyle.Render(" (Y)es "),
			"  ",
			styles.ButtonInactiveStyle.Render(" (N)o "),
		),
		"",
	)

	return styles.CenterHorizontal(
		styles.ModalContentStyle.Width(50).Render(content),
		m.width,
	)
}

func (m *Model) renderFooter() string {
	var shortcuts []string

	switch {
	case m.adding:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Tab") + " next",
			styles.HelpKeyStyle.Render("Enter") + " submit",
			styles.HelpKeyStyle.Render("Esc") + " cancel",
		}
	case m.pendingDelete != nil:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Y") + " confirm",
			styles.HelpKeyStyle.Render("N") + " cancel",
		}
	default:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("s") + " status",
			styles.HelpKeyStyle.Render("f") + " filter",
			styles.HelpKeyStyle.Render("n") + " new",
			styles.HelpKeyStyle.Render("d") + " delete",
		}
	}

	return lipgloss.NewStyle().
		MarginTop(1).
		Foreground(styles.TextMuted).
		Render(strings.Join(shortcuts, styles.HelpSeparatorStyle.Render(" | ")))
}
