package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/spline-tsfm/dashctl/pkg/api"
)

var followStatus bool

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage training jobs",
	Long:  `Commands for inspecting, watching, and canceling training jobs.`,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Long:  `Retrieve the current status of a job. With --follow, poll until the job reaches a terminal status.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job-id>",
	Short: "Show job logs",
	Long:  `Print the rendered log lines of a job.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job",
	Long:  `Request cancellation of a queued or running job.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsLogsCmd)
	jobsCmd.AddCommand(jobsCancelCmd)

	jobsStatusCmd.Flags().BoolVarP(&followStatus, "follow", "f", false, "poll until the job finishes")
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)
	svc, _ := buildService(cfg, log)

	ctx, stop := commandContext()
	defer stop()

	if followStatus {
		final, err := watchJob(ctx, svc, args[0])
		if err != nil {
			if api.IsCanceled(err) {
				fmt.Fprintln(os.Stderr, "watch canceled")
				return nil
			}
			return err
		}
		if IsJSONOutput() {
			return printJSON(final)
		}
		printJobDetail(final)
		return nil
	}

	detail, err := svc.FetchJob(ctx, args[0], nil)
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		return fmt.Errorf("fetch job failed: %s", api.FormatError(err))
	}
	if IsJSONOutput() {
		return printJSON(detail)
	}
	printJobDetail(detail)
	return nil
}

func runJobsLogs(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)
	svc, _ := buildService(cfg, log)

	ctx, stop := commandContext()
	defer stop()

	logs, err := svc.FetchJobLogs(ctx, args[0], nil)
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		return fmt.Errorf("fetch logs failed: %s", api.FormatError(err))
	}
	if IsJSONOutput() {
		return printJSON(logs)
	}
	for _, line := range logs.Lines {
		fmt.Println(line)
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)
	svc, _ := buildService(cfg, log)

	ctx, stop := commandContext()
	defer stop()

	detail, err := svc.CancelJob(ctx, args[0], nil)
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		return fmt.Errorf("cancel failed: %s", api.FormatError(err))
	}
	if IsJSONOutput() {
		return printJSON(detail)
	}
	fmt.Printf("Cancel requested for %s\n", detail.JobID)
	printJobDetail(detail)
	return nil
}

func printJobDetail(detail *api.JobDetail) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Job ID", detail.JobID)
	table.Append("Run ID", detail.RunID)
	table.Append("Status", string(detail.Status))
	if detail.Step != "" {
		table.Append("Step", detail.Step)
	}
	table.Append("Progress", fmt.Sprintf("%d%%", detail.Progress))
	if detail.Message != "" {
		table.Append("Message", detail.Message)
	}
	if detail.ErrorMessage != "" {
		table.Append("Error", detail.ErrorMessage)
	}
	if detail.UpdatedAt != "" {
		table.Append("Updated At", detail.UpdatedAt)
	}
	table.Render()
}
