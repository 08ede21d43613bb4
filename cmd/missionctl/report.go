package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/j-veylop/mission-control/internal/models"
	"github.com/j-veylop/mission-control/internal/services"
	"github.com/j-veylop/mission-control/internal/services/projection"
	"github.com/j-veylop/mission-control/internal/ui/components"
)

const reportChartWidth = 60

// costReport is everything the report command prints.
type costReport struct {
	Rollup     *models.UsageRollup     `json:"usage"`
	Trend      []models.DailyTrend     `json:"trend"`
	Budget     models.BudgetReport     `json:"budget"`
	Projection models.BudgetProjection `json:"projection"`
}

func newReportCommand() *cobra.Command {
	var (
		asJSON bool
		days   int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print spend, budget status and per-model costs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Serverless = true

			mgr, err := services.NewManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer closeManager(mgr)

			ctx := cmd.Context()
			trend, err := mgr.SnapshotTrend(ctx, days)
			if err != nil {
				return err
			}
			rollup := mgr.Summary(ctx)
			budget := mgr.Budget(ctx)
			r := costReport{
				Rollup:     rollup,
				Budget:     budget,
				Projection: projection.Project(budget, rollup, mgr.Now()),
				Trend:      trend,
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			return writeReport(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().IntVar(&days, "days", 14, "days of snapshot trend to include")
	return cmd
}

// writeReport renders a plain-text report suitable for pipes and logs.
func writeReport(out io.Writer, r costReport) error {
	if r.Rollup == nil {
		r.Rollup = &models.UsageRollup{}
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tCOST\tINPUT\tOUTPUT")
	for _, p := range []struct {
		name   string
		totals models.TokenTotals
	}{
		{"today", r.Rollup.Today},
		{"week", r.Rollup.Week},
		{"month", r.Rollup.Month},
	} {
		fmt.Fprintf(w, "%s\t$%.2f\t%d\t%d\n", p.name, p.totals.Cost, p.totals.Input, p.totals.Output)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "BUDGET\tSPENT\tLIMIT\tUSED\tALERT\tPROJECTED\tFORECAST")
	for _, b := range []struct {
		name   string
		status models.BudgetStatus
		proj   models.WindowProjection
	}{
		{"daily", r.Budget.Daily, r.Projection.Daily},
		{"monthly", r.Budget.Monthly, r.Projection.Monthly},
	} {
		fmt.Fprintf(w, "%s\t$%.2f\t$%.2f\t%.0f%%\t%s\t$%.2f\t%s\n",
			b.name, b.status.Spent, b.status.Limit, b.status.Percent, b.status.Alert,
			b.proj.Projected, lo.CoalesceOrEmpty(string(b.proj.Status), "-"))
	}
	fmt.Fprintln(w)

	names := lo.Keys(r.Rollup.ByModel)
	sort.Slice(names, func(i, j int) bool {
		ci, cj := r.Rollup.ByModel[names[i]].Cost, r.Rollup.ByModel[names[j]].Cost
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	fmt.Fprintln(w, "MODEL\tCOST\tTOKENS")
	for _, name := range names {
		u := r.Rollup.ByModel[name]
		fmt.Fprintf(w, "%s\t$%.2f\t%d\n", name, u.Cost, u.Tokens)
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "(no usage recorded)\t\t")
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(r.Rollup.Hourly) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, components.RenderHourlyChart(r.Rollup.Hourly, reportChartWidth, 8))
	}
	if len(r.Trend) > 1 {
		costs := lo.Map(r.Trend, func(d models.DailyTrend, _ int) float64 { return d.Cost })
		fmt.Fprintln(out)
		fmt.Fprintln(out, components.RenderLineChart(costs, reportChartWidth, 6,
			fmt.Sprintf("snapshot cost per day, %s to %s", r.Trend[0].Date, r.Trend[len(r.Trend)-1].Date)))
	}
	return nil
}
