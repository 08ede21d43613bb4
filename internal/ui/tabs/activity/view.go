package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

const (
	timeColumnWidth = 14
	typeColumnWidth = 16
)

// View renders the activity tab.
func (m *Model) View() string {
	cardWidth := max(m.width-6, 40)

	sections := []string{
		m.renderHeader(),
		m.renderLog(cardWidth),
		m.renderInventory(cardWidth),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("Activity")

	filter := "all types"
	if m.typeFilter != "" {
		filter = m.typeFilter
	}

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeStyle.Render("[t] "+filter))
	subtitle := styles.HelpStyle.Render(fmt.Sprintf("%d entries, newest first", len(m.visibleActivity())))

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) renderLog(width int) string {
	rows := []string{cardTitle("≡", "Recent"), ""}

	entries := m.visibleActivity()
	if len(entries) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No activity recorded yet."))
	}

	msgWidth := max(width-timeColumnWidth-typeColumnWidth-8, 10)
	for _, a := range entries {
		rows = append(rows, fmt.Sprintf("%s %s %s",
			styles.HelpStyle.Width(timeColumnWidth).Render(formatTimestamp(a.Timestamp)),
			styles.InfoTextStyle.Width(typeColumnWidth).Render(truncate(a.Type, typeColumnWidth-1)),
			styles.ValueStyle.Render(truncate(a.Message, msgWidth)),
		))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderInventory(width int) string {
	if m.services == nil {
		return ""
	}

	rows := []string{cardTitle("◆", "Agent inventory"), ""}

	switch {
	case m.errorMsg != "":
		rows = append(rows, fmt.Sprintf("%s %s", styles.ErrorTextStyle.Render("Error:"), m.errorMsg))
	case m.inventory == nil:
		rows = append(rows, styles.HelpStyle.Render("  Loading inventory..."))
	default:
		rows = append(rows, renderSkills(m.inventory.skills)...)
		rows = append(rows, "")
		rows = append(rows, renderCronJobs(m.inventory.cronJobs)...)
		rows = append(rows, "")
		rows = append(rows, renderChannels(m.inventory.channels)...)
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderSkills(skills []models.Skill) []string {
	rows := []string{styles.SubTitleStyle.Render("Skills")}
	if len(skills) == 0 {
		return append(rows, styles.HelpStyle.Render("  none"))
	}
	for _, s := range skills {
		lastUsed := "never"
		if s.LastUsed != nil {
			lastUsed = formatTimestamp(*s.LastUsed)
		}
		rows = append(rows, fmt.Sprintf("%s %s %s %s",
			styles.LabelStyle.Render(truncate(s.Name, 17)),
			styles.GetStatusStyle(s.Status).Width(10).Render(s.Status),
			styles.ValueStyle.Width(8).Render(fmt.Sprintf("%d uses", s.UsageCount)),
			styles.HelpStyle.Render(lastUsed),
		))
	}
	return rows
}

func renderCronJobs(jobs []models.CronJob) []string {
	rows := []string{styles.SubTitleStyle.Render("Cron jobs")}
	if len(jobs) == 0 {
		return append(rows, styles.HelpStyle.Render("  none"))
	}
	for _, j := range jobs {
		rows = append(rows, fmt.Sprintf("%s %s %s %s",
			styles.LabelStyle.Render(truncate(j.Name, 17)),
			styles.HelpStyle.Width(14).Render(j.Schedule),
			styles.GetStatusStyle(j.Status).Width(10).Render(j.Status),
			styles.CostStyle.Render(fmt.Sprintf("$%.2f", j.AccumulatedCost)),
		))
	}
	return rows
}

func renderChannels(channels []models.Channel) []string {
	rows := []string{styles.SubTitleStyle.Render("Channels")}
	if len(channels) == 0 {
		return append(rows, styles.HelpStyle.Render("  none"))
	}
	for _, c := range channels {
		rows = append(rows, fmt.Sprintf("%s %s",
			styles.LabelStyle.Render(truncate(c.Name, 17)),
			styles.GetStatusStyle(c.Status).Render(c.Status),
		))
	}
	return rows
}

func cardTitle(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}

// formatTimestamp shows the time of day for today's entries and the date
// otherwise.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04:05")
	}
	return local.Format("Jan 2 15:04")
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
