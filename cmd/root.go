// Package cmd provides the command-line interface for mist.
//
// Configuration System:
//
//	The CLI reads configuration from several sources with clear precedence:
//	1. Command-line flags (--port, --state, etc.) - highest priority
//	2. Individual environment variables (MIST_SERVER_PORT, etc.)
//	3. The configuration file named by --config or MIST_CONFIG_FILE
//	4. .mist.yml in the current directory - lowest priority
//
// Environment Variables:
//
//	MIST_CONFIG_FILE: Path to custom configuration file
//	MIST_SERVER_PORT: Override server port
//	MIST_APP_STATE_FILE: Initial application state
//	And the rest of the MIST_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mist/internal/config"
	"github.com/conneroisu/mist/internal/demo"
	"github.com/conneroisu/mist/internal/logging"
	"github.com/conneroisu/mist/internal/statefile"
	"github.com/conneroisu/mist/pkg/reactive"
)

// ConfigFileEnv names the environment variable holding a config file path.
const ConfigFileEnv = "MIST_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mist",
	Short: "A reactive single-page application runtime",
	Long: `Mist runs reactive single-page applications: a reactive store, a virtual
node reconciler and a client-side router, served live to the browser.

Quick Start:
  mist serve                      Start the live server
  mist render /todos              Render a route to HTML
  mist routes                     List the route table
  mist config show                Show the effective configuration

Documentation: https://github.com/conneroisu/mist`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .mist.yml, can also use MIST_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// initConfig selects the configuration file and enables environment
// overrides.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. MIST_CONFIG_FILE environment variable
//  3. .mist.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(ConfigFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mist")
	}

	config.BindEnv()

	// A missing file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the logger described by cfg, writing to the command's
// error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return logging.NewLogger(lc)
}

// loadStore wraps the demo state and overlays the state file at path, if
// any.
func loadStore(cfg *config.Config, path string, logger logging.Logger) (*reactive.Store, error) {
	store := reactive.Wrap(demo.InitialState(),
		reactive.WithPolicy(cfg.Policy()),
		reactive.WithLogger(logger),
	)
	if path == "" {
		return store, nil
	}
	if err := statefile.Apply(store, path); err != nil {
		return nil, err
	}
	return store, nil
}
