package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runsAll bool

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List or inspect runs on the server",
	Long: `List all runs on the server or inspect a specific run by ID.

Examples:
  heats runs            # List in-memory runs
  heats runs --all      # Include persisted runs from earlier lifetimes
  heats runs ab12cd34   # Show details for run ab12cd34`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().BoolVar(&runsAll, "all", false, "include persisted runs from earlier server lifetimes")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// If run ID provided, show that specific run
	if len(args) == 1 {
		return showRun(ctx, args[0])
	}

	return listRuns(ctx)
}

func listRuns(ctx context.Context) error {
	runs, err := apiClient.ListRuns(ctx, runsAll)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-10s %-20s %-10s %-10s %s\n", "ID", "NAME", "STATUS", "JOBS", "STARTED")
	fmt.Println("------------------------------------------------------------------------")

	for _, run := range runs {
		jobs := fmt.Sprintf("%d/%d", run.Completed, run.Total)
		if run.Failed > 0 {
			jobs += fmt.Sprintf(" (%d failed)", run.Failed)
		}
		started := run.StartedAt.Format("2006-01-02 15:04:05")
		fmt.Printf("%-10s %-20s %-10s %-10s %s\n", run.ID, run.Name, run.Status, jobs, started)
	}

	return nil
}

func showRun(ctx context.Context, id string) error {
	run, err := apiClient.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	fmt.Printf("Run: %s\n", run.ID)
	fmt.Printf("  Name: %s\n", run.Name)
	fmt.Printf("  Status: %s\n", run.Status)
	fmt.Printf("  Jobs: %d/%d completed", run.Completed, run.Total)
	if run.Failed > 0 {
		fmt.Printf(", %d failed", run.Failed)
	}
	fmt.Println()
	fmt.Printf("  Workers: %d\n", run.Workers)
	if run.LogDir != "" {
		fmt.Printf("  Logs: %s\n", run.LogDir)
	}
	fmt.Printf("  Started: %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", run.CompletedAt.Format(time.RFC3339))
		duration := run.CompletedAt.Sub(run.StartedAt)
		fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
	}
	if run.Error != "" {
		fmt.Printf("  Error: %s\n", run.Error)
	}

	if len(run.Jobs) > 0 {
		fmt.Println("\nJobs:")
		for _, job := range run.Jobs {
			name := job.Classifier
			if name == "" {
				name = job.SubmissionID
			}
			fmt.Printf("  %-10s %-12s %-10s train=%d pred=%d", job.ID, name, job.Status, job.TrainingRows, job.PredictionRows)
			if job.Error != "" {
				fmt.Printf(" error=%q", job.Error)
			}
			fmt.Println()
		}
	}

	if len(run.Summary) > 0 {
		fmt.Println("\nScores:")
		for _, row := range run.Summary {
			fmt.Printf("  %-12s %-10s F1 %.4f, accuracy %.4f\n", row.Classifier, row.TestSet, row.F1, row.Accuracy)
		}
	}

	return nil
}
