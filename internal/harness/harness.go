package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlheats/heats/internal/classifier"
	"github.com/mlheats/heats/internal/dataset"
	"github.com/mlheats/heats/internal/history"
	"github.com/mlheats/heats/internal/metrics"
	"github.com/mlheats/heats/internal/record"
)

// Log file names inside a harness's log directory.
const (
	TrainingLogFile   = "train.csv"
	PredictionLogFile = "pred.csv"
)

var (
	// ErrDraining rejects submissions while Start is consuming a batch.
	ErrDraining = errors.New("harness is draining")
	// ErrClosed rejects submissions after Close.
	ErrClosed = errors.New("harness is closed")
)

// Base columns the aggregate logs start with; record shaping keeps these
// names in sync with Job.RecordTraining and Job.RecordPrediction.
var (
	trainingColumns = []string{
		"timestamp", "classifier_name", "classifier_id", "epoch", "minibatch", "cost",
	}
	predictionColumns = []string{
		"timestamp", "classifier_name", "classifier_id", "test_set_id", "label",
		"f1", "precision", "recall", "accuracy", "support", "job_id",
	}
)

// Config configures a harness. Zero values get sensible defaults.
type Config struct {
	// Name identifies the run in logs, history and the server API.
	Name string
	// LogDir is the base directory; each harness writes into its own
	// timestamped subdirectory of it.
	LogDir string
	// MaxWorkers bounds concurrent jobs; <=0 means one per CPU.
	MaxWorkers int
	// DefaultOptions are merged under every submission's options.
	DefaultOptions classifier.Options
	// ExtraColumns are stamped onto every record of every job.
	ExtraColumns record.Record
	// JobCompleted, when set, observes each successful job right after
	// its records are merged and before they are persisted.
	JobCompleted func(Result)

	Logger  *slog.Logger
	Metrics *metrics.Collector
	// History, when set, receives run and per-job lifecycle rows.
	// Write failures are logged and never affect orchestration.
	History *history.Store
}

// Harness runs submitted jobs on a bounded worker pool and owns the
// aggregate logs. Submissions queue freely; Start drains them in
// completion order and is the only goroutine that mutates the logs.
type Harness struct {
	name     string
	logDir   string
	defaults classifier.Options
	extra    record.Record

	jobCompleted func(Result)
	logger       *slog.Logger
	metrics      *metrics.Collector
	history      *history.Store
	runID        string

	registry *Registry
	sem      chan struct{}

	trainingLog   *record.Table
	predictionLog *record.Table

	mu        sync.Mutex
	inflight  []*submission
	draining  bool
	closed    bool
	completed int
	failures  []Failure
}

// New creates a harness and its timestamped log directory.
func New(ctx context.Context, cfg Config) (*Harness, error) {
	name := cfg.Name
	if name == "" {
		name = "run"
	}
	base := cfg.LogDir
	if base == "" {
		base = "./heats-logs"
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	logDir := filepath.Join(base, runStamp(time.Now()))
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	h := &Harness{
		name:          name,
		logDir:        logDir,
		defaults:      cfg.DefaultOptions,
		extra:         cfg.ExtraColumns,
		jobCompleted:  cfg.JobCompleted,
		logger:        logger,
		metrics:       collector,
		history:       cfg.History,
		registry:      newRegistry(),
		sem:           make(chan struct{}, workers),
		trainingLog:   record.NewTable(trainingColumns...),
		predictionLog: record.NewTable(predictionColumns...),
	}

	if h.history != nil {
		id, err := h.history.CreateRun(ctx, history.RunInput{
			Name:    name,
			LogDir:  logDir,
			Workers: workers,
		})
		if err != nil {
			logger.Warn("create run history", "error", err)
		} else {
			h.runID = id
		}
	}

	logger.Info("harness ready", "name", name, "log_dir", logDir, "workers", workers)
	return h, nil
}

// runStamp renders a directory name unique to this harness instance.
func runStamp(t time.Time) string {
	return fmt.Sprintf("%s-%06d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/1000)
}

// Submit enqueues one job and returns its submission ID without blocking.
// The job starts as soon as a worker slot frees up; submissions beyond the
// worker bound queue. Submissions are rejected while a drain is running.
func (h *Harness) Submit(ctx context.Context, ctor classifier.Constructor, train dataset.Set, testSets map[string]dataset.Set, opts classifier.Options) (string, error) {
	if ctor == nil {
		return "", fmt.Errorf("submit: nil constructor")
	}
	if err := train.Validate(); err != nil {
		return "", fmt.Errorf("submit: training set: %w", err)
	}
	if len(testSets) == 0 {
		return "", fmt.Errorf("submit: no test sets")
	}
	for id, ts := range testSets {
		if err := ts.Validate(); err != nil {
			return "", fmt.Errorf("submit: test set %s: %w", id, err)
		}
	}

	sub := &submission{
		id:       uuid.New().String()[:8],
		ctor:     ctor,
		train:    train,
		testSets: testSets,
		opts:     mergeOptions(h.defaults, opts),
		extra:    h.extra,
		outcome:  make(chan outcome, 1),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrClosed
	}
	if h.draining {
		h.mu.Unlock()
		return "", ErrDraining
	}
	h.inflight = append(h.inflight, sub)
	queued := len(h.inflight)
	h.mu.Unlock()

	h.logger.Debug("job submitted", "submission", sub.id, "in_flight", queued)

	go func() {
		select {
		case h.sem <- struct{}{}:
		case <-ctx.Done():
			sub.outcome <- outcome{res: Result{SubmissionID: sub.id}, err: ctx.Err()}
			return
		}
		defer func() { <-h.sem }()
		res, err := h.runJob(ctx, sub)
		sub.outcome <- outcome{res: res, err: err}
	}()

	return sub.id, nil
}

// Start blocks until every job submitted since the previous drain has
// completed or failed, consuming outcomes in completion order. Successful
// jobs are merged into the aggregate logs as one atomic batch each,
// handed to the JobCompleted callback, and the logs are rewritten on
// disk. Job failures never abort the drain and never surface as Start's
// error; persistence errors are joined into the return value, with all
// merged rows kept in memory.
func (h *Harness) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		return ErrDraining
	}
	h.draining = true
	batch := h.inflight
	h.inflight = nil
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.draining = false
		h.mu.Unlock()
	}()

	if len(batch) == 0 {
		return nil
	}
	h.logger.Info("draining jobs", "count", len(batch), "workers", cap(h.sem))

	// Fan in. The merged channel is buffered to the batch size so that
	// an early return cannot strand a forwarder.
	merged := make(chan outcome, len(batch))
	for _, sub := range batch {
		go func(sub *submission) { merged <- <-sub.outcome }(sub)
	}

	var persistErrs []error
	for done := 0; done < len(batch); done++ {
		var out outcome
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain interrupted: %w", ctx.Err())
		case out = <-merged:
		}

		if out.err != nil {
			h.noteFailure(out)
			h.recordHeat(ctx, out.res.JobID)
			continue
		}

		h.merge(out.res)
		if h.jobCompleted != nil {
			h.jobCompleted(out.res)
		}
		if err := h.SaveLogs(); err != nil {
			h.logger.Error("persist aggregate logs", "job", out.res.JobID, "error", err)
			persistErrs = append(persistErrs, err)
		}
		h.recordHeat(ctx, out.res.JobID)
	}

	h.finishRun(ctx)

	h.mu.Lock()
	completed, failed := h.completed, len(h.failures)
	h.mu.Unlock()
	h.logger.Info("drain complete",
		"completed", completed,
		"failed", failed,
		"active_jobs", h.registry.ActiveCount())

	if len(persistErrs) > 0 {
		return fmt.Errorf("persist aggregate logs: %w", errors.Join(persistErrs...))
	}
	return nil
}

// merge appends one job's records to the aggregate logs, each sequence as
// a single contiguous batch.
func (h *Harness) merge(res Result) {
	start := time.Now()
	h.trainingLog.AppendBatch(res.Training)
	h.predictionLog.AppendBatch(res.Prediction)
	h.metrics.RecordBatch(metrics.OpMerge, time.Since(start), len(res.Training)+len(res.Prediction))

	h.mu.Lock()
	h.completed++
	h.mu.Unlock()

	h.logger.Info("job merged",
		"job", res.JobID,
		"classifier", res.Classifier,
		"training_rows", len(res.Training),
		"prediction_rows", len(res.Prediction))
}

func (h *Harness) noteFailure(out outcome) {
	f := Failure{
		SubmissionID: out.res.SubmissionID,
		JobID:        out.res.JobID,
		Classifier:   out.res.Classifier,
		Err:          out.err,
		Message:      out.err.Error(),
		At:           time.Now(),
	}
	h.mu.Lock()
	h.failures = append(h.failures, f)
	h.mu.Unlock()

	h.logger.Error("job failed",
		"submission", f.SubmissionID,
		"job", f.JobID,
		"classifier", f.Classifier,
		"error", out.err)
}

// SaveLogs rewrites both aggregate log files in full. Calling it twice
// without intervening merges produces byte-identical files.
func (h *Harness) SaveLogs() error {
	start := time.Now()
	rows := h.trainingLog.Len() + h.predictionLog.Len()
	if err := h.trainingLog.SaveCSV(filepath.Join(h.logDir, TrainingLogFile)); err != nil {
		return err
	}
	if err := h.predictionLog.SaveCSV(filepath.Join(h.logDir, PredictionLogFile)); err != nil {
		return err
	}
	h.metrics.RecordBatch(metrics.OpPersist, time.Since(start), rows)
	return nil
}

// Close stops the harness accepting new submissions.
func (h *Harness) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// TrainingLog returns the aggregate training log.
func (h *Harness) TrainingLog() *record.Table { return h.trainingLog }

// PredictionLog returns the aggregate prediction log.
func (h *Harness) PredictionLog() *record.Table { return h.predictionLog }

// LogDir returns this harness's timestamped log directory.
func (h *Harness) LogDir() string { return h.logDir }

// Name returns the run name.
func (h *Harness) Name() string { return h.name }

// RunID returns the history-store run ID, empty when history is off.
func (h *Harness) RunID() string { return h.runID }

// Workers returns the worker-pool bound.
func (h *Harness) Workers() int { return cap(h.sem) }

// Jobs returns snapshots of every job this harness created, newest first.
func (h *Harness) Jobs() []JobView { return h.registry.Views() }

// ActiveJobs counts jobs still in the active view; failed jobs leave it
// but stay listed in Jobs.
func (h *Harness) ActiveJobs() int { return h.registry.ActiveCount() }

// Failures returns a copy of all recorded job failures.
func (h *Harness) Failures() []Failure {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Failure, len(h.failures))
	copy(out, h.failures)
	return out
}

// Completed returns the number of successfully merged jobs.
func (h *Harness) Completed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}

func (h *Harness) recordHeat(ctx context.Context, jobID string) {
	if h.history == nil || h.runID == "" || jobID == "" {
		return
	}
	j, ok := h.registry.get(jobID)
	if !ok {
		return
	}
	v := j.Snapshot()
	err := h.history.CreateHeat(ctx, history.HeatInput{
		RunID:          h.runID,
		SubmissionID:   v.SubmissionID,
		JobID:          v.ID,
		Classifier:     v.Classifier,
		Status:         string(v.Status),
		Error:          v.Error,
		TrainingRows:   v.TrainingRows,
		PredictionRows: v.PredictionRows,
		StartedAt:      v.StartedAt,
		CompletedAt:    v.CompletedAt,
	})
	if err != nil {
		h.logger.Warn("record heat history", "job", jobID, "error", err)
	}
}

func (h *Harness) finishRun(ctx context.Context) {
	if h.history == nil || h.runID == "" {
		return
	}
	h.mu.Lock()
	completed, failed := h.completed, len(h.failures)
	h.mu.Unlock()
	if err := h.history.CompleteRun(ctx, h.runID, completed, failed); err != nil {
		h.logger.Warn("complete run history", "run", h.runID, "error", err)
	}
}

func mergeOptions(defaults, opts classifier.Options) classifier.Options {
	if len(defaults) == 0 {
		return maps.Clone(opts)
	}
	merged := make(classifier.Options, len(defaults)+len(opts))
	maps.Copy(merged, defaults)
	maps.Copy(merged, opts)
	return merged
}
