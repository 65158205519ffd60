package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mlheats/heats/internal/harness"
	"github.com/mlheats/heats/internal/record"
)

var summaryTop int

var summaryCmd = &cobra.Command{
	Use:   "summary <log-dir | pred.csv>",
	Short: "Rank classifiers from a finished run's logs",
	Long: `Rank the classifiers of a finished run by F1 score, best first.

Takes a run log directory or a prediction log file directly. Iteration
counts come from the train.csv next to it when present.

Examples:
  heats summary ./heats-logs/2026-08-25-14-03-11-000042
  heats summary ./heats-logs/2026-08-25-14-03-11-000042/pred.csv --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSummaryCmd,
}

func init() {
	summaryCmd.Flags().IntVarP(&summaryTop, "top", "n", 0, "show only the best N rows")
	rootCmd.AddCommand(summaryCmd)
}

func runSummaryCmd(cmd *cobra.Command, args []string) error {
	predPath := args[0]
	info, err := os.Stat(predPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", predPath, err)
	}
	if info.IsDir() {
		predPath = filepath.Join(predPath, harness.PredictionLogFile)
	}

	pred, err := record.ReadCSVFile(predPath)
	if err != nil {
		return fmt.Errorf("read prediction log: %w", err)
	}
	// The training log only feeds iteration counts; a summary works
	// without it.
	train, err := record.ReadCSVFile(filepath.Join(filepath.Dir(predPath), harness.TrainingLogFile))
	if err != nil {
		train = nil
	}

	printSummary(harness.SummaryFromTables(pred, train), summaryTop)
	return nil
}

// printSummary renders ranked score rows. On a TTY the best row is
// highlighted.
func printSummary(rows []harness.SummaryRow, top int) {
	if len(rows) == 0 {
		fmt.Println("No prediction scores recorded")
		return
	}
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	fmt.Printf("\n%-14s %-10s %-12s %8s %10s %6s\n", "CLASSIFIER", "ID", "TEST SET", "F1", "ACCURACY", "ITERS")
	fmt.Println("-----------------------------------------------------------------")
	for i, r := range rows {
		line := fmt.Sprintf("%-14s %-10s %-12s %8.4f %10.4f %6d",
			r.Classifier, r.ClassifierID, r.TestSet, r.F1, r.Accuracy, r.Iterations)
		if i == 0 && isTTY {
			line = defaultTheme.completedStyle().Render(line)
		}
		fmt.Println(line)
	}
}
