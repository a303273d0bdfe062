// Package cli contains the tweet-datasource commands.
package cli

import (
	"fmt"
	"os"

	"github.com/Sternrassler/tweet-datasource/internal/config"
	"github.com/Sternrassler/tweet-datasource/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	pretty   bool
	cfg      *config.Config
	version  = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tweet-datasource",
	Short: "Twitter search datasource",
	Long: `tweet-datasource collects tweets matching a query from the Twitter
search API and returns them as a LIF container.

Example usage:
  tweet-datasource serve                       # Serve the datasource over HTTP
  tweet-datasource search elections -n 250     # Collect up to 250 tweets
  tweet-datasource execute request.json        # Run one JSON request
  tweet-datasource metadata                    # Print the datasource metadata`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the CLI and the metadata.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tweet-datasource.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")
}

// initConfig loads configuration and sets up the global logger.
func initConfig(cmd *cobra.Command) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Logging.Pretty = pretty
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})

	log.Debug().
		Str("config_file", cfgFile).
		Bool("redis", cfg.RedisEnabled()).
		Bool("geocoding", cfg.Geocode.MapsKey != "").
		Msg("Configuration loaded")

	return nil
}
