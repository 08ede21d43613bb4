package costs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/ui/components"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

const chartHeight = 8

// View renders the costs tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.renderLoading()
	}

	rollup, report := m.state.GetUsage()
	cardWidth := max(m.width-6, 40)

	sections := []string{m.renderTitle()}
	if rollup == nil {
		sections = append(sections, m.renderPlaceholder(cardWidth))
	} else {
		sections = append(sections,
			m.renderBudget(report, cardWidth),
			renderPeriods(rollup, cardWidth),
			m.renderHourly(rollup, cardWidth),
			renderBreakdown(rollup, cardWidth),
			m.renderTrendAndSession(cardWidth),
		)
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Mission Control")
	subtitle := styles.HelpStyle.Render("Agent spend against budget")
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func cardHeader(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}

func (m *Model) renderPlaceholder(width int) string {
	rows := []string{
		cardHeader("◈", "Budget"),
		"",
		components.RenderLoadingBar(width-4, m.animationFrame),
		components.RenderLoadingBar(width-4, m.animationFrame+20),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBudget(report models.BudgetReport, width int) string {
	inner := width - 4
	rows := []string{
		cardHeader("◈", "Budget"),
		"",
		m.dailyBar.View(report.Daily, m.displayPercent(dailyBarKey, report.Daily.Percent), inner),
		m.monthlyBar.View(report.Monthly, m.displayPercent(monthlyBarKey, report.Monthly.Percent), inner),
	}

	proj := m.state.GetProjection()
	if proj.Daily.Status != "" {
		rows = append(rows,
			"",
			renderProjection("By midnight", proj.Daily),
			renderProjection("30-day pace", proj.Monthly),
		)
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func projectionStyle(status models.ProjectionStatus) lipgloss.Style {
	switch status {
	case models.ProjectionCritical:
		return styles.AlertDangerStyle
	case models.ProjectionWarning:
		return styles.AlertWarningStyle
	case models.ProjectionSafe:
		return styles.AlertSafeStyle
	default:
		return styles.HelpStyle
	}
}

// renderProjection renders one forecast line, e.g.
// "By midnight  $12.00  warning · out at 20:00 · 400% above your 30-day average".
func renderProjection(label string, p models.WindowProjection) string {
	if p.Status == models.ProjectionUnknown {
		return styles.LabelStyle.Render(label) + styles.HelpStyle.Render("not enough data")
	}

	var parts []string
	if p.ExhaustAt != nil {
		parts = append(parts, "out at "+p.ExhaustAt.Format("15:04"))
	}
	if p.Comparison != "" {
		parts = append(parts, p.Comparison)
	}
	parts = append(parts, p.Confidence+" confidence")

	return fmt.Sprintf("%s%s  %s · %s",
		styles.LabelStyle.Render(label),
		styles.CostStyle.Render(fmt.Sprintf("$%.2f", p.Projected)),
		projectionStyle(p.Status).Render(string(p.Status)),
		styles.HelpStyle.Render(strings.Join(parts, " · ")),
	)
}

func renderPeriods(rollup *models.UsageRollup, width int) string {
	header := fmt.Sprintf("%-8s %10s %9s %9s %9s %9s", "", "Cost", "Input", "Output", "Cache R", "Cache W")

	rows := []string{
		cardHeader("◷", "Periods"),
		"",
		styles.TableHeaderStyle.Render(header),
		periodRow("Today", rollup.Today),
		periodRow("Week", rollup.Week),
		periodRow("Month", rollup.Month),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func periodRow(label string, t models.TokenTotals) string {
	return fmt.Sprintf("%-8s %s %9s %9s %9s %9s",
		label,
		styles.CostStyle.Width(10).Align(lipgloss.Right).Render(fmt.Sprintf("$%.2f", t.Cost)),
		formatTokens(t.Input),
		formatTokens(t.Output),
		formatTokens(t.CacheRead),
		formatTokens(t.CacheWrite),
	)
}

func (m *Model) renderHourly(rollup *models.UsageRollup, width int) string {
	var body string
	if m.heatmap {
		body = components.RenderHourlyHeatmap(components.HourlySeries(rollup.Hourly))
	} else {
		body = components.RenderHourlyChart(rollup.Hourly, width-16, chartHeight)
	}

	rows := []string{cardHeader("▤", "Today by hour"), "", body}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderBreakdown(rollup *models.UsageRollup, width int) string {
	modelNames := sortedModels(rollup.ByModel)
	features := sortedFeatures(rollup.ByFeature)

	rows := []string{cardHeader("◆", "By model"), ""}
	if len(modelNames) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No usage recorded"))
	} else {
		values := lo.Map(modelNames, func(name string, _ int) float64 { return rollup.ByModel[name].Cost })
		rows = append(rows, components.RenderBarChart(values, modelNames, width-8))
	}

	rows = append(rows, "", cardHeader("◇", "By feature"), "")
	if len(features) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No usage recorded"))
	} else {
		total := lo.SumBy(features, func(name string) float64 { return rollup.ByFeature[name].Cost })
		for _, name := range features {
			cost := rollup.ByFeature[name].Cost
			share := 0.0
			if total > 0 {
				share = cost / total * 100
			}
			rows = append(rows, fmt.Sprintf("%-10s %s %s",
				name,
				components.RenderGradientBar(share, max(width-36, 10)),
				styles.CostStyle.Render(fmt.Sprintf("$%.2f (%.0f%%)", cost, share)),
			))
		}
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderTrendAndSession(width int) string {
	rows := []string{cardHeader("↗", "Snapshot trend"), ""}

	trend := m.state.GetTrend()
	if len(trend) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No snapshots yet"))
	} else {
		last := trend[len(trend)-1]
		spark := lipgloss.NewStyle().Foreground(styles.Secondary).
			Render(components.RenderSparkline(components.TrendSeries(trend), width-30))
		rows = append(rows, fmt.Sprintf("%s  %s %s",
			spark,
			styles.HelpStyle.Render(last.Date),
			styles.CostStyle.Render(fmt.Sprintf("$%.2f", last.Cost)),
		))
	}

	rows = append(rows, "", cardHeader("●", "Main session"), "")
	rows = append(rows, renderSession(m.state.GetSession())...)

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderSession(stats *models.SessionStats) []string {
	if stats == nil {
		return []string{styles.HelpStyle.Render("  No session found")}
	}

	lastSeen := "never"
	if stats.LastActivity != nil {
		lastSeen = formatAgo(time.Since(*stats.LastActivity))
	}

	return []string{
		styles.LabelStyle.Render("Status") + styles.GetStatusStyle(stats.Status).Render(stats.Status),
		styles.LabelStyle.Render("Last activity") + styles.ValueStyle.Render(lastSeen),
		styles.LabelStyle.Render("Messages") + styles.ValueStyle.Render(fmt.Sprintf("%d", stats.MessageCount)),
	}
}

// sortedModels orders model names by cost, highest first.
func sortedModels(byModel map[string]models.ModelUsage) []string {
	names := lo.Keys(byModel)
	sort.Slice(names, func(i, j int) bool {
		a, b := byModel[names[i]].Cost, byModel[names[j]].Cost
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

func sortedFeatures(byFeature map[string]models.FeatureUsage) []string {
	names := lo.Keys(byFeature)
	sort.Slice(names, func(i, j int) bool {
		a, b := byFeature[names[i]].Cost, byFeature[names[j]].Cost
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

func formatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
