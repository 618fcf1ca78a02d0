package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/spline-tsfm/dashctl/pkg/api"
)

// dashboardCmd represents the dashboard command
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the service dashboard summary",
	Long:  `Fetch the aggregate dashboard view: service status, the latest run, recent jobs, and the RMSE history.`,
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)
	svc, _ := buildService(cfg, log)

	ctx, stop := commandContext()
	defer stop()

	summary, err := svc.FetchDashboardSummary(ctx, nil)
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		return fmt.Errorf("fetch dashboard failed: %s", api.FormatError(err))
	}
	if IsJSONOutput() {
		return printJSON(summary)
	}

	fmt.Printf("Service: %s\n", summary.ServiceStatus)
	fmt.Printf("Last run: %s (rmse %.4f)\n", summary.LastRunID, summary.LastRMSE)

	if len(summary.RecentJobs) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Run ID", "Status", "Started", "Model")
		for _, job := range summary.RecentJobs {
			table.Append(job.RunID, job.Status, job.StartedAt, job.Model)
		}
		table.Render()
	}

	if len(summary.RMSEHistory) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Point", "RMSE")
		for _, point := range summary.RMSEHistory {
			table.Append(point.Label, fmt.Sprintf("%.4f", point.Value))
		}
		table.Render()
	}
	return nil
}
