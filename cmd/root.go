// Package cmd defines the CLI commands for the fetchd executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetchd",
		Short: "A per-domain rate-limited fetch dispatcher.",
		Long: `fetchd admits fetch requests against per-domain crawl-delay budgets,
executes admitted fetches on a bounded worker pool and emits one normalized
result record per request to the configured downstream sinks.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
