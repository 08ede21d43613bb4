package info

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mission-control/internal/ui/styles"
	"github.com/j-veylop/mission-control/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderBudgetCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration and build information")
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	if m.config == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	} else {
		cfg := m.config
		server := cfg.Addr()
		if cfg.Serverless {
			server = "disabled"
		}
		clientDir := cfg.ClientDir
		if clientDir == "" {
			clientDir = "(API only)"
		}

		rows = append(rows,
			renderConfigRow("Sessions", cfg.SessionsPath),
			renderConfigRow("Database", cfg.DatabasePath),
			renderConfigRow("Dashboard", server),
			renderConfigRow("Client", clientDir),
			renderConfigRow("Gateway", cfg.GatewayURL),
			renderConfigRow("Gateway status", m.gatewayStatus()),
			renderConfigRow("Agent", fmt.Sprintf("%s (%s)", cfg.AgentName, cfg.AgentModel)),
			renderConfigRow("Log level", cfg.LogLevel),
		)
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) gatewayStatus() string {
	status := m.state.GetGateway()
	if status == "" {
		return styles.HelpStyle.Render("unknown")
	}
	return styles.GetStatusStyle(status).Render(status)
}

func (m *Model) renderBudgetCard() string {
	if m.config == nil {
		return ""
	}
	cfg := m.config

	snapshots := "off"
	if cfg.SnapshotEnabled {
		snapshots = "every " + cfg.SnapshotInterval.String()
	}
	folding := "off"
	if cfg.DailyFolding {
		folding = "on"
	}

	rows := []string{
		styles.CardTitleStyle.Render("Budget"),
		"",
		renderConfigRow("Daily limit", fmt.Sprintf("$%.2f", cfg.DailyBudget)),
		renderConfigRow("Monthly limit", fmt.Sprintf("$%.2f", cfg.MonthlyBudget)),
		renderConfigRow("Snapshots", snapshots),
		renderConfigRow("Daily folding", folding),
		renderConfigRow("Ingest limit", fmt.Sprintf("%.0f/s", cfg.IngestRateLimit)),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderConfigRow(label, value string) string {
	return styles.LabelStyle.Render(label+":") + " " + styles.ValueStyle.Render(value)
}

func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About " + version.AppName),
		"",
		renderConfigRow("Version", version.GetVersion()),
		renderConfigRow("Build Date", version.GetDate()),
		renderConfigRow("Git Commit", version.GetCommit()),
		renderConfigRow("Go Version", runtime.Version()),
		renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
		"",
		fmt.Sprintf("Tasks: %s  Activity: %s",
			styles.InfoTextStyle.Render(fmt.Sprintf("%d", len(m.state.GetTasks()))),
			styles.InfoTextStyle.Render(fmt.Sprintf("%d", len(m.state.GetActivity()))),
		),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
