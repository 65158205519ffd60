package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mlheats/heats/internal/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Watch a server run until it finishes",
	Long: `Watch a run's progress until it reaches a terminal state.

On a terminal this shows a live progress bar. When output is piped, one
line is printed per job status change instead.

Examples:
  heats watch ab12cd34
  heats watch ab12cd34 | tee run.log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(context.Background(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchRun picks the presentation: interactive progress on a TTY, plain
// event lines otherwise.
func watchRun(ctx context.Context, id string) error {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		run, err := apiClient.GetRun(ctx, id)
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		return RunWatchProgress(apiClient, run)
	}
	return watchRunPlain(ctx, id)
}

func watchRunPlain(ctx context.Context, id string) error {
	var terminal client.Event
	err := apiClient.WatchRun(ctx, id, func(ev client.Event) error {
		switch ev.Type {
		case "job_status":
			line := fmt.Sprintf("%s job=%s status=%s", ev.At.Format("15:04:05"), ev.JobID, ev.Status)
			if ev.Classifier != "" {
				line += " classifier=" + ev.Classifier
			}
			fmt.Printf("%s (%d/%d done, %d failed)\n", line, ev.Completed, ev.Total, ev.Failed)
		default:
			terminal = ev
			fmt.Printf("%s run=%s %s: %d/%d completed, %d failed\n",
				ev.At.Format("15:04:05"), ev.RunID, ev.Type, ev.Completed, ev.Total, ev.Failed)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch run: %w", err)
	}
	if terminal.Type == "run_failed" {
		return fmt.Errorf("run %s failed", id)
	}
	return nil
}
