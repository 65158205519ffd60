package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlheats/heats/internal/client"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long: `Show the server's in-memory operation statistics: training,
prediction, scoring, merge and persistence timings with row counts.

Examples:
  heats stats
  heats stats --server http://heats.internal:8844`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stats, err := apiClient.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(stats *client.Stats) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", stats.UptimeSeconds)

	if stats.Train != nil {
		fmt.Printf("\nTrain:\n")
		printOpStats(stats.Train)
	}

	if stats.Predict != nil {
		fmt.Printf("\nPredict:\n")
		printOpStats(stats.Predict)
	}

	if stats.Score != nil {
		fmt.Printf("\nScore:\n")
		printOpStats(stats.Score)
	}

	if stats.Merge != nil {
		fmt.Printf("\nMerge:\n")
		printOpStats(stats.Merge)
		printRowStats(stats.Merge)
	}

	if stats.Persist != nil {
		fmt.Printf("\nPersist:\n")
		printOpStats(stats.Persist)
		printRowStats(stats.Persist)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *client.OperationStats) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printRowStats displays row statistics if available.
func printRowStats(op *client.OperationStats) {
	if op.TotalRows == nil {
		return
	}
	fmt.Printf("  Rows: %d total", *op.TotalRows)
	if op.AvgRows != nil {
		fmt.Printf(", avg %.1f", *op.AvgRows)
	}
	if op.MinRows != nil && op.MaxRows != nil {
		fmt.Printf(", min %d, max %d", *op.MinRows, *op.MaxRows)
	}
	fmt.Println()
}
