package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlheats/heats/internal/experiment"
	"github.com/mlheats/heats/internal/harness"
	"github.com/mlheats/heats/internal/history"
)

// RunStatus is the lifecycle state of a server-side run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunView is the API representation of a run. Jobs, Failures and
// Summary are populated on detail views only.
type RunView struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Status      RunStatus            `json:"status"`
	Total       int                  `json:"total"`
	Completed   int                  `json:"completed"`
	Failed      int                  `json:"failed"`
	Workers     int                  `json:"workers"`
	LogDir      string               `json:"log_dir"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Error       string               `json:"error,omitempty"`
	Jobs        []harness.JobView    `json:"jobs,omitempty"`
	Failures    []harness.Failure    `json:"failures,omitempty"`
	Summary     []harness.SummaryRow `json:"summary,omitempty"`
}

// tracker owns one harness and the run state derived from it.
type tracker struct {
	id     string
	name   string
	h      *harness.Harness
	logger *slog.Logger

	mu          sync.RWMutex
	status      RunStatus
	total       int
	startedAt   time.Time
	completedAt *time.Time
	err         string
}

func newTracker(name string, h *harness.Harness, logger *slog.Logger) *tracker {
	return &tracker{
		id:        uuid.New().String()[:8],
		name:      name,
		h:         h,
		logger:    logger,
		status:    RunPending,
		startedAt: time.Now(),
	}
}

// submit queues every resolved job on the harness. Jobs already queued
// before an error stay queued so run can still drain them.
func (t *tracker) submit(ctx context.Context, data *experiment.Data, jobs []experiment.ResolvedJob) error {
	for _, job := range jobs {
		if _, err := t.h.Submit(ctx, job.Constructor, data.Train, data.TestSets, job.Options); err != nil {
			return fmt.Errorf("submit %s: %w", job.Classifier, err)
		}
		t.mu.Lock()
		t.total++
		t.mu.Unlock()
	}
	return nil
}

// run drains the harness and settles the terminal status. It is meant
// to run on its own goroutine with a context independent of the
// submitting request.
func (t *tracker) run(ctx context.Context) {
	t.mu.Lock()
	t.status = RunRunning
	t.mu.Unlock()

	err := t.h.Start(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.completedAt = &now
	switch {
	case err != nil:
		t.status = RunFailed
		t.err = err.Error()
	case t.h.Completed() == 0 && len(t.h.Failures()) > 0:
		t.status = RunFailed
	default:
		t.status = RunCompleted
	}
	t.logger.Info("run finished",
		"run_id", t.id,
		"status", string(t.status),
		"completed", t.h.Completed(),
		"failed", len(t.h.Failures()))
}

func (t *tracker) terminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status == RunCompleted || t.status == RunFailed
}

// view snapshots the run. Detail views include per-job state and, once
// the run is terminal, the ranked summary.
func (t *tracker) view(detail bool) RunView {
	t.mu.RLock()
	v := RunView{
		ID:          t.id,
		Name:        t.name,
		Status:      t.status,
		Total:       t.total,
		Workers:     t.h.Workers(),
		LogDir:      t.h.LogDir(),
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
		Error:       t.err,
	}
	t.mu.RUnlock()

	v.Completed = t.h.Completed()
	v.Failed = len(t.h.Failures())
	if detail {
		v.Jobs = t.h.Jobs()
		v.Failures = t.h.Failures()
		if v.Status == RunCompleted || v.Status == RunFailed {
			v.Summary = t.h.Summary()
		}
	}
	return v
}

// historyRunView converts a persisted run row into the API shape used
// for runs that are no longer in memory.
func historyRunView(run history.Run, heats []history.Heat) RunView {
	v := RunView{
		ID:          run.ShortID(),
		Name:        run.Name,
		Status:      RunStatus(run.Status),
		Total:       run.JobsCompleted + run.JobsFailed,
		Completed:   run.JobsCompleted,
		Failed:      run.JobsFailed,
		Workers:     run.Workers,
		LogDir:      run.LogDir,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	for _, heat := range heats {
		jv := harness.JobView{
			ID:             heat.JobID,
			SubmissionID:   heat.SubmissionID,
			Status:         harness.JobStatus(heat.Status),
			TrainingRows:   heat.TrainingRows,
			PredictionRows: heat.PredictionRows,
			StartedAt:      heat.StartedAt,
			CompletedAt:    heat.CompletedAt,
		}
		if heat.Classifier != nil {
			jv.Classifier = *heat.Classifier
		}
		if heat.Error != nil {
			jv.Error = *heat.Error
		}
		v.Jobs = append(v.Jobs, jv)
	}
	return v
}

// runName picks the run name: an explicit request name wins, then the
// plan's own name, then a generated one.
func runName(requested, planName string) string {
	if s := strings.TrimSpace(requested); s != "" {
		return s
	}
	if planName != "" {
		return planName
	}
	return "run-" + uuid.New().String()[:8]
}
