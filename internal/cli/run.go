package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlheats/heats/internal/experiment"
	"github.com/mlheats/heats/internal/harness"
	"github.com/mlheats/heats/internal/history"
	"github.com/mlheats/heats/internal/metrics"
	"github.com/mlheats/heats/internal/record"
)

var (
	runRemote    bool
	runFollow    bool
	runWorkers   int
	runLogDir    string
	runNoSummary bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute an experiment plan",
	Long: `Execute an experiment plan: train every job in parallel, score each
trained classifier against the plan's test sets, and merge the results
into shared train.csv and pred.csv logs.

By default the plan runs in-process. With --remote the plan is submitted
to a heats server instead; dataset paths must then be visible to the
server. Add --follow to stream remote progress.

Examples:
  heats run plans/spam.yaml
  heats run plans/spam.yaml --workers 8 --log-dir /tmp/spam
  heats run plans/spam.yaml --remote --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runRemote, "remote", false, "submit to a heats server instead of running locally")
	runCmd.Flags().BoolVarP(&runFollow, "follow", "f", false, "with --remote, stream progress until the run finishes")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "max concurrent jobs (default one per CPU)")
	runCmd.Flags().StringVar(&runLogDir, "log-dir", "", "base directory for run logs")
	runCmd.Flags().BoolVar(&runNoSummary, "no-summary", false, "skip the ranked summary table")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runRemote {
		return runRemotePlan(args[0])
	}
	return runLocalPlan(args[0])
}

func runLocalPlan(path string) error {
	ctx := context.Background()

	plan, err := experiment.Load(path)
	if err != nil {
		return err
	}
	if runWorkers > 0 {
		plan.Workers = runWorkers
	} else if plan.Workers == 0 {
		plan.Workers = cfg.Workers
	}
	if runLogDir != "" {
		plan.LogDir = runLogDir
	} else if plan.LogDir == "" {
		plan.LogDir = cfg.LogDir
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	data, err := plan.LoadData()
	if err != nil {
		return err
	}
	jobs, err := plan.Resolve(nil)
	if err != nil {
		return err
	}

	store := connectHistory(ctx)
	if store != nil {
		defer store.Close(context.Background())
	}

	h, err := harness.New(ctx, harness.Config{
		Name:           plan.Name,
		LogDir:         plan.LogDir,
		MaxWorkers:     plan.Workers,
		DefaultOptions: plan.Defaults,
		ExtraColumns:   record.Record(plan.Extra),
		Logger:         logger,
		Metrics:        metrics.NewCollector(),
		History:        store,
	})
	if err != nil {
		return fmt.Errorf("create harness: %w", err)
	}

	fmt.Printf("Running %s: %d job(s) on %d worker(s)\n", plan.Name, len(jobs), h.Workers())

	for _, job := range jobs {
		if _, err := h.Submit(ctx, job.Constructor, data.Train, data.TestSets, job.Options); err != nil {
			return fmt.Errorf("submit %s: %w", job.Classifier, err)
		}
	}
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("run plan: %w", err)
	}

	failures := h.Failures()
	if len(failures) > 0 {
		fmt.Printf("\nFailures (%d):\n", len(failures))
		for _, f := range failures {
			name := f.Classifier
			if name == "" {
				name = f.SubmissionID
			}
			fmt.Printf("  ✗ %s: %s\n", name, f.Message)
		}
	}

	fmt.Printf("\nCompleted %d/%d job(s)\n", h.Completed(), len(jobs))
	fmt.Printf("Logs: %s\n", h.LogDir())

	if !runNoSummary && h.Completed() > 0 {
		printSummary(h.Summary(), 0)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d job(s) failed", len(failures), len(jobs))
	}
	return nil
}

func runRemotePlan(path string) error {
	ctx := context.Background()

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	run, err := apiClient.SubmitRun(ctx, "", string(raw))
	if err != nil {
		return fmt.Errorf("submit run: %w", err)
	}
	fmt.Printf("Submitted run %s (%s): %d job(s)\n", run.ID, run.Name, run.Total)

	if !runFollow {
		fmt.Printf("Watch progress with 'heats watch %s'\n", run.ID)
		return nil
	}
	return watchRun(ctx, run.ID)
}

// connectHistory opens the run history store when one is configured.
// History is best effort; a run proceeds without it.
func connectHistory(ctx context.Context) *history.Store {
	histCfg := history.Config{
		URL:       cfg.HistoryURL,
		Namespace: cfg.HistoryNamespace,
		Database:  cfg.HistoryDatabase,
		Username:  cfg.HistoryUser,
		Password:  cfg.HistoryPass,
		AuthLevel: cfg.HistoryAuthLevel,
	}
	if !histCfg.Enabled() {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := history.Connect(connectCtx, histCfg, logger)
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
		return nil
	}
	return store
}
