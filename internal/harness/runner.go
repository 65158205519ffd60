package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mlheats/heats/internal/classifier"
	"github.com/mlheats/heats/internal/dataset"
	"github.com/mlheats/heats/internal/metrics"
	"github.com/mlheats/heats/internal/record"
	"github.com/mlheats/heats/internal/score"
)

// submission is one queued job: the constructor plus the immutable inputs
// the worker needs. Nothing else is shared with the worker; records come
// back through the outcome channel.
type submission struct {
	id       string
	ctor     classifier.Constructor
	train    dataset.Set
	testSets map[string]dataset.Set
	opts     classifier.Options
	extra    record.Record

	// outcome has capacity 1 so a worker never blocks on delivery.
	outcome chan outcome
}

// Result is the data a finished job hands back to the coordinator: the
// job's full record sequences and enough identity to account for them.
type Result struct {
	SubmissionID string          `json:"submission_id"`
	JobID        string          `json:"job_id"`
	Classifier   string          `json:"classifier"`
	Training     []record.Record `json:"training"`
	Prediction   []record.Record `json:"prediction"`
}

// Failure describes one failed job. Classifier is empty when the
// constructor itself failed.
type Failure struct {
	SubmissionID string    `json:"submission_id"`
	JobID        string    `json:"job_id"`
	Classifier   string    `json:"classifier,omitempty"`
	Err          error     `json:"-"`
	Message      string    `json:"error"`
	At           time.Time `json:"at"`
}

type outcome struct {
	res Result
	err error
}

// runJob executes one job: construct the classifier, train it with a
// per-iteration callback, then predict and score every test set. Any
// error, including a recovered panic, marks the job failed; a failed job
// contributes no records downstream.
func (h *Harness) runJob(ctx context.Context, sub *submission) (res Result, err error) {
	job := newJob(sub.id)
	h.registry.add(job)
	res = Result{SubmissionID: sub.id, JobID: job.ID}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		if err != nil {
			job.fail(err)
			h.registry.markInactive(job.ID)
		}
	}()

	if err = ctx.Err(); err != nil {
		return res, err
	}

	job.setStatus(StatusTraining)
	c, err := sub.ctor(sub.train.X, sub.train.Y, sub.opts)
	if err != nil {
		return res, fmt.Errorf("construct classifier: %w", err)
	}
	job.setClassifier(c.Name(), c.InstanceID())
	res.Classifier = c.Name()

	trainStart := time.Now()
	err = c.Train(func(inst classifier.Classifier, it classifier.Iteration) {
		job.RecordTraining(inst, it, sub.extra)
	})
	h.metrics.RecordTiming(metrics.OpTrain, time.Since(trainStart))
	if err != nil {
		return res, fmt.Errorf("train %s: %w", c.Name(), err)
	}

	job.setStatus(StatusPredicting)
	for _, tsID := range sortedTestSetIDs(sub.testSets) {
		if err = ctx.Err(); err != nil {
			return res, err
		}
		ts := sub.testSets[tsID]

		predStart := time.Now()
		predicted, perr := c.Predict(ts.X)
		h.metrics.RecordTiming(metrics.OpPredict, time.Since(predStart))
		if perr != nil {
			return res, fmt.Errorf("predict %s on test set %s: %w", c.Name(), tsID, perr)
		}

		scoreStart := time.Now()
		rep, serr := score.Score(ts.Y, predicted, c.Labels())
		h.metrics.RecordTiming(metrics.OpScore, time.Since(scoreStart))
		if serr != nil {
			return res, fmt.Errorf("score %s on test set %s: %w", c.Name(), tsID, serr)
		}

		if _, err = job.RecordPrediction(c, tsID, rep, sub.extra); err != nil {
			return res, err
		}
		if h.logger.Enabled(ctx, slog.LevelDebug) {
			for _, row := range PerLabelRecords(c, tsID, rep, job.ID, sub.extra) {
				h.logger.Debug("per-label scores",
					"job", job.ID,
					"test_set", tsID,
					"label", row["label"],
					"precision", row["precision"],
					"recall", row["recall"],
					"f1", row["f1"])
			}
		}
	}

	job.complete()
	res.Training = job.TrainingRecords()
	res.Prediction = job.PredictionRecords()
	return res, nil
}

// sortedTestSetIDs fixes the prediction order so runs are reproducible.
func sortedTestSetIDs(sets map[string]dataset.Set) []string {
	ids := make([]string, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
