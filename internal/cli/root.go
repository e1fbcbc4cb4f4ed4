// Package cli implements the simwatch command-line interface.
//
// The root command is "simwatch" with subcommands for different operations:
//
//	simwatch serve    - Run the monitor: poll loop, dashboard, indicator
//	simwatch status   - One-shot poll, printed to the terminal
//	simwatch init     - Create a .simwatch.yaml config
//	simwatch version  - Print version information
//
// Commands are thin; the actual work lives in the other internal packages.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simwatch/simwatch/internal/config"
	"github.com/simwatch/simwatch/internal/errors"
	"github.com/simwatch/simwatch/internal/logger"
)

// Global flags available to all subcommands.
var (
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "simwatch",
	Short: "Watch long-running MD simulations on a remote GPU box",
	Long: `simwatch polls a remote host over SSH for molecular dynamics job
progress, GPU utilization, and process liveness, and serves a local web
dashboard with a glanceable terminal indicator.

Examples:
  simwatch serve
  simwatch status
  simwatch init`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			os.Setenv(logger.DebugEnvVar, "1")
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// loadConfig finds and loads the config, shared by serve and status.
func loadConfig() (*config.Config, error) {
	path, err := config.Find(configFlag)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New(errors.ErrConfig,
			"no config file found",
			"run 'simwatch init' to create a .simwatch.yaml config file")
	}
	return config.Load(path)
}
