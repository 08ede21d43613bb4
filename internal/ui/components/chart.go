package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/ui/styles"
)

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	return asciigraph.Plot(data,
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.Precision(2),
		asciigraph.Caption(caption),
	)
}

// HourlySeries returns today's cost per hour as a 24 point series.
func HourlySeries(hourly []models.HourlyCost) []float64 {
	series := make([]float64, models.HoursPerDay)
	for _, h := range hourly {
		if h.Hour >= 0 && h.Hour < models.HoursPerDay {
			series[h.Hour] = h.Cost
		}
	}
	return series
}

// RenderHourlyChart plots today's hourly cost.
func RenderHourlyChart(hourly []models.HourlyCost, width, height int) string {
	return RenderLineChart(HourlySeries(hourly), width, height, "cost per hour today (USD)")
}

// RenderBarChart creates a simple horizontal bar chart with dollar values.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, lipgloss.Width(l))
	}

	barWidth := max(width-maxLabelLen-12, 10)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := max(int((v/maxVal)*float64(barWidth)), 0)
		bar := lipgloss.NewStyle().Foreground(styles.Secondary).Render(strings.Repeat("█", barLen))
		lines = append(lines, fmt.Sprintf("%*s │%s $%.2f", maxLabelLen, label, bar, v))
	}

	return strings.Join(lines, "\n")
}

// HeatmapBlocks are Unicode block characters for heatmaps (low to high intensity).
var HeatmapBlocks = []rune{'░', '▒', '▓', '█'}

// RenderHourlyHeatmap renders one cell per hour of the day, shaded by cost.
func RenderHourlyHeatmap(series []float64) string {
	if len(series) != models.HoursPerDay {
		padded := make([]float64, models.HoursPerDay)
		copy(padded, series)
		series = padded
	}

	maxVal := 0.0
	for _, v := range series {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	var b strings.Builder
	b.WriteString("00 ")

	for i, v := range series {
		intensity := min(max(int((v/maxVal)*float64(len(HeatmapBlocks)-1)), 0), len(HeatmapBlocks)-1)

		var color lipgloss.Color
		switch intensity {
		case 0:
			color = styles.Subtle
		case 1:
			color = styles.Success
		case 2:
			color = styles.Warning
		default:
			color = styles.Error
		}
		b.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(HeatmapBlocks[intensity])))

		if i == 11 {
			b.WriteString(" ")
		}
	}

	b.WriteString(" 23")
	return b.String()
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline creates a compact inline sparkline chart of at most width
// cells.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	step := max(float64(len(values))/float64(width), 1)

	var b strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		idx := min(max(int((val/maxVal)*float64(len(sparkChars)-1)), 0), len(sparkChars)-1)
		b.WriteRune(sparkChars[idx])
	}

	return b.String()
}

// TrendSeries extracts the cost column of a snapshot trend.
func TrendSeries(trend []models.DailyTrend) []float64 {
	series := make([]float64, len(trend))
	for i, d := range trend {
		series[i] = d.Cost
	}
	return series
}
