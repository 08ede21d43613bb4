// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

const (
	budgetLabelWidth   = 10
	budgetAmountWidth  = 20
	budgetPercentWidth = 6
	budgetBadgeWidth   = 12
	minBarWidth        = 10
)

// BudgetBar renders spend against a budget limit, filled in the color of the
// window's alert level.
type BudgetBar struct {
	progress progress.Model
	label    string
}

// NewBudgetBar creates a budget bar for one window.
func NewBudgetBar(label string) BudgetBar {
	p := progress.New(
		progress.WithSolidFill(string(styles.Success)),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	p.EmptyColor = string(styles.BgLight)

	return BudgetBar{progress: p, label: label}
}

// Label returns the window label.
func (b BudgetBar) Label() string {
	return b.label
}

// View renders the bar for status within width cells. displayPercent is the
// percent drawn by the bar and may differ from status.Percent while the
// bar is animating.
func (b BudgetBar) View(status models.BudgetStatus, displayPercent float64, width int) string {
	b.progress.Width = max(width-budgetLabelWidth-budgetAmountWidth-budgetPercentWidth-budgetBadgeWidth-4, minBarWidth)
	b.progress.FullColor = string(styles.AlertColor(status.Alert))

	fill := min(max(displayPercent, 0), 100) / 100

	labelStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(budgetLabelWidth).
		Render(b.label)

	amountStr := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(budgetAmountWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("$%.2f / $%.2f", status.Spent, status.Limit))

	percentStr := styles.GetAlertStyle(status.Alert).
		Width(budgetPercentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", status.Percent))

	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStr,
		b.progress.ViewAs(fill),
		" ",
		amountStr,
		" ",
		percentStr,
		" ",
		AlertBadge(status.Alert),
	)
}

// AlertBadge renders a fixed-width badge for an alert level.
func AlertBadge(level models.AlertLevel) string {
	icon := "●"
	if level.Severity() >= models.AlertWarning.Severity() {
		icon = "▲"
	}
	if level == "" {
		level = models.AlertSafe
	}
	return styles.GetAlertStyle(level).
		Width(budgetBadgeWidth).
		Align(lipgloss.Right).
		Render(icon + " " + strings.ToUpper(string(level)))
}

// RenderGradientBar renders a bar that shifts from green to red as it
// fills, for share-of-spend displays.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*percent/100), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#51cf66", "#ff6b6b", t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}

	return b.String()
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}

// RenderLoadingBar renders a shimmering placeholder bar for frame.
func RenderLoadingBar(width, frame int) string {
	barWidth := max(width-budgetLabelWidth-budgetAmountWidth-budgetPercentWidth-budgetBadgeWidth-4, minBarWidth)

	const cycle = 120
	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(barWidth))

	var b strings.Builder
	for i := range barWidth {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}

		switch {
		case dist < 3:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("▓"))
		case dist < 5:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}

	dots := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	dot := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Width(budgetPercentWidth).
		Align(lipgloss.Right).
		Render(dots[(frame/2)%len(dots)])

	return strings.Repeat(" ", budgetLabelWidth) + b.String() + " " + dot
}
