package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spline-tsfm/dashctl/pkg/api"
	"github.com/spline-tsfm/dashctl/pkg/config"
	"github.com/spline-tsfm/dashctl/pkg/logging"
	"github.com/spline-tsfm/dashctl/pkg/metrics"
)

var (
	cfgFile      string
	profileFlag  string
	apiBaseFlag  string
	useMockFlag  bool
	outputFormat string
	logLevelFlag string
	logJSONFlag  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dashctl",
	Short: "CLI for the spline-tsfm training service",
	Long:  `dashctl submits and monitors spline-tsfm training jobs and inspects their results and the service dashboard.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dashctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "deployment profile: dev, stage, or prod (default dev)")
	rootCmd.PersistentFlags().StringVar(&apiBaseFlag, "api-base", "", "backend base URL (overrides profile default)")
	rootCmd.PersistentFlags().BoolVar(&useMockFlag, "mock", false, "use the offline mock backend (dev profile only)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "emit logs as JSON")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".dashctl"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DASHCTL")
	viper.AutomaticEnv()

	viper.BindEnv("profile", "DASHCTL_PROFILE")
	viper.BindEnv("api_base", "DASHCTL_API_BASE")
	viper.BindEnv("use_mock", "DASHCTL_USE_MOCK")
	viper.BindEnv("log_level", "DASHCTL_LOG_LEVEL")

	viper.SetDefault("log_level", "info")

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

// buildConfig assembles the effective configuration with the precedence
// flag > env > config file > profile default.
func buildConfig() config.Config {
	profile := profileFlag
	if profile == "" {
		profile = viper.GetString("profile")
	}

	logLevel := logLevelFlag
	if logLevel == "" {
		logLevel = viper.GetString("log_level")
	}

	cfg := config.Config{
		Profile:  config.NormalizeProfile(profile),
		UseMock:  useMockFlag || viper.GetBool("use_mock"),
		LogLevel: logLevel,
		LogJSON:  logJSONFlag || viper.GetBool("log_json"),
	}
	cfg.APIBase = config.ResolveAPIBase(apiBaseFlag, viper.GetString("api_base"), cfg.Profile, "")
	return cfg
}

func buildLogger(cfg config.Config) *logging.Logger {
	return logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
}

// buildService constructs the backend client, routing to the mock when the
// mock branch is active. The live service is wrapped so every operation
// outcome and retry lands in the returned metric set; the mock carries no
// metrics.
func buildService(cfg config.Config, log *logging.Logger) (api.Service, *metrics.ClientMetrics) {
	if cfg.MockActive() {
		log.Debug("using mock backend", map[string]interface{}{"target": cfg.BaseInfo()})
		return api.NewMockClient(api.NewMockStore()), nil
	}

	client := api.NewClient(cfg.APIBase)
	client.SetLogger(log)
	m := metrics.NewClientMetrics()
	client.SetRetryObserver(m.RetryObserver())
	log.Debug("using live backend", map[string]interface{}{"target": cfg.BaseInfo()})
	return m.InstrumentService(client), m
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
