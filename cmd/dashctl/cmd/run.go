package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spline-tsfm/dashctl/pkg/api"
)

var (
	// Run submit flags
	runID             string
	modelType         string
	epochs            int
	synthetic         bool
	featureMode       string
	targetCols        string
	dynamicCovariates string
	exportFormats     string
	follow            bool
	pollInterval      time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a training run",
	Long: `Submit a spline-tsfm training run and, unless --follow=false, poll the
resulting job until it finishes. Ctrl-C cancels the watch without failing.`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runID, "run-id", "", "run identifier (generated by the backend when empty)")
	runCmd.Flags().StringVar(&modelType, "model", "lstm", "model type: lstm, gru, transformer")
	runCmd.Flags().IntVar(&epochs, "epochs", 30, "training epochs")
	runCmd.Flags().BoolVar(&synthetic, "synthetic", false, "train on synthetic data")
	runCmd.Flags().StringVar(&featureMode, "feature-mode", "univariate", "feature mode: univariate or multivariate")
	runCmd.Flags().StringVar(&targetCols, "target-cols", "", "comma separated target columns")
	runCmd.Flags().StringVar(&dynamicCovariates, "dynamic-covariates", "", "comma separated dynamic covariate columns")
	runCmd.Flags().StringVar(&exportFormats, "export-formats", "", "comma separated export formats")
	runCmd.Flags().BoolVar(&follow, "follow", true, "poll the job until it reaches a terminal status")
	runCmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "poll cycle interval")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)
	svc, _ := buildService(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	payload := api.RunJobPayload{
		RunID:             runID,
		Model:             modelType,
		Epochs:            epochs,
		Synthetic:         synthetic,
		FeatureMode:       featureMode,
		TargetCols:        targetCols,
		DynamicCovariates: dynamicCovariates,
		ExportFormats:     exportFormats,
	}

	res, err := svc.SubmitRun(ctx, payload, nil)
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		return fmt.Errorf("submit failed: %s", api.FormatError(err))
	}

	if IsJSONOutput() && !follow {
		return printJSON(res)
	}
	fmt.Printf("Job submitted: %s (run %s, status %s)\n", res.JobID, res.RunID, res.Status)
	if !follow {
		return nil
	}

	final, err := watchJob(ctx, svc, res.JobID)
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

// watchJob polls the job, streaming new log lines as they appear.
func watchJob(ctx context.Context, svc api.Service, jobID string) (*api.JobDetail, error) {
	poller := api.NewPoller(svc, pollInterval)
	printed := 0
	final, err := poller.Watch(ctx, jobID, func(update api.PollUpdate) {
		for ; printed < len(update.Logs); printed++ {
			fmt.Println(update.Logs[printed])
		}
	})
	if err != nil {
		if api.IsCanceled(err) {
			return nil, err
		}
		return nil, fmt.Errorf("watch failed: %s", api.FormatError(err))
	}
	return final, nil
}
