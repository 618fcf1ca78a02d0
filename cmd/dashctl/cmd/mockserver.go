package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spline-tsfm/dashctl/pkg/api"
	"github.com/spline-tsfm/dashctl/pkg/mockserver"
)

var (
	mockAddr     string
	mockEnvelope bool
)

// mockServerCmd represents the mock-server command
var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve the mock backend over HTTP",
	Long: `Run the offline mock backend as a real HTTP server so the live client
(and the dashboard frontend) can be pointed at it during development.`,
	RunE: runMockServer,
}

func init() {
	rootCmd.AddCommand(mockServerCmd)

	mockServerCmd.Flags().StringVar(&mockAddr, "addr", ":8000", "listen address")
	mockServerCmd.Flags().BoolVar(&mockEnvelope, "envelope", true, "wrap responses in the {ok, data} envelope")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	log := buildLogger(cfg)

	ctx, stop := commandContext()
	defer stop()

	server := mockserver.New(api.NewMockStore(), log, mockEnvelope)
	return server.ListenAndServe(ctx, mockAddr)
}
