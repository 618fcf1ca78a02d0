package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/spline-tsfm/dashctl/pkg/api"
)

var showReport bool

// resultCmd represents the result command
var resultCmd = &cobra.Command{
	Use:   "result <run-id>",
	Short: "Fetch the merged result of a run",
	Long: `Fetch the report, metrics, and artifacts of a finished run and print the
merged view. Missing facets are tolerated as long as metrics can be found.`,
	Args: cobra.ExactArgs(1),
	RunE: runResult,
}

func init() {
	rootCmd.AddCommand(resultCmd)
	resultCmd.Flags().BoolVar(&showReport, "report", false, "print the report markdown after the tables")
}

func runResult(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)
	svc, _ := buildService(cfg, log)

	ctx, stop := commandContext()
	defer stop()

	result, err := svc.FetchResult(ctx, args[0], nil)
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		return fmt.Errorf("fetch result failed: %s", api.FormatError(err))
	}
	if IsJSONOutput() {
		return printJSON(result)
	}

	fmt.Printf("Run: %s", result.RunID)
	if result.ModelType != "" {
		fmt.Printf("  model=%s", result.ModelType)
	}
	if result.FeatureMode != "" {
		fmt.Printf("  features=%s", result.FeatureMode)
	}
	fmt.Println()

	printMetricsTable(result.Metrics)
	if result.SplineInfo != nil {
		printSplineTable(result.SplineInfo, len(result.SplineComparison))
	}
	if len(result.Artifacts) > 0 {
		printArtifactsTable(result.Artifacts)
	}
	fmt.Printf("Predictions: %d points, input series: %d points\n", len(result.Predictions), len(result.InputSeries))

	if showReport && result.ReportMarkdown != "" {
		fmt.Println()
		fmt.Println(result.ReportMarkdown)
	}
	return nil
}

func printMetricsTable(metrics api.ResultMetrics) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	for _, name := range names {
		table.Append(name, fmt.Sprintf("%.4f", metrics[name]))
	}
	table.Render()
}

func printSplineTable(info *api.SplineInfo, comparisonPoints int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Spline", "Value")
	if info.Degree != nil {
		table.Append("Degree", fmt.Sprintf("%g", *info.Degree))
	}
	if info.SmoothingFactor != nil {
		table.Append("Smoothing Factor", fmt.Sprintf("%g", *info.SmoothingFactor))
	}
	if info.NumKnots != nil {
		table.Append("Knots", fmt.Sprintf("%g", *info.NumKnots))
	}
	if comparisonPoints > 0 {
		table.Append("Comparison Points", fmt.Sprintf("%d", comparisonPoints))
	}
	table.Render()
}

func printArtifactsTable(artifacts map[string]string) {
	keys := make([]string, 0, len(artifacts))
	for key := range artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Artifact", "Path")
	for _, key := range keys {
		table.Append(key, artifacts[key])
	}
	table.Render()
}
