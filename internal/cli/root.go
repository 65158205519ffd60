// Package cli provides the command-line interface for heats.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlheats/heats/internal/client"
	"github.com/mlheats/heats/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	serverFlag string

	// Global config, logger and server client
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	apiClient  *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "heats",
	Short: "Parallel classifier training harness",
	Long: `Heats trains and evaluates batches of classifiers in parallel and
collects their metrics into ranked, tabular logs.

Each submitted job trains one classifier, scores it against every test
set, and contributes rows to shared train.csv and pred.csv logs. Runs
execute locally or against a heats server.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version, help and completion commands
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg = config.Load()
		if serverFlag != "" {
			cfg.ServerURL = serverFlag
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		// TUI commands own the terminal, so console logging goes to the
		// file only.
		quiet := cmd.Name() == "watch"
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level, quiet)
		slog.SetDefault(logger)

		apiClient = client.New(cfg.ServerURL, cfg.RequestTimeout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "heats server URL (default from HEATS_SERVER_URL)")
}
