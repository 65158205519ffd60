// Package harness coordinates parallel training-and-evaluation jobs and
// aggregates their metric records into shared tabular logs.
package harness

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlheats/heats/internal/classifier"
	"github.com/mlheats/heats/internal/record"
	"github.com/mlheats/heats/internal/score"
)

// JobStatus tracks a job through its lifecycle. Transitions only move
// forward; terminal statuses never change.
type JobStatus string

const (
	StatusCreated    JobStatus = "created"
	StatusTraining   JobStatus = "training:started"
	StatusPredicting JobStatus = "prediction:started"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

var statusRank = map[JobStatus]int{
	StatusCreated:    0,
	StatusTraining:   1,
	StatusPredicting: 2,
	StatusCompleted:  3,
	StatusFailed:     3,
}

// Terminal reports whether the status is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TotalsLabel marks the one aggregate prediction row written per test set.
const TotalsLabel = "__totals__"

// Job accumulates the records of one training-and-evaluation run. Training
// and prediction sequences are append-only and guarded independently; the
// runner stops appending once a job reaches a terminal status, after which
// the job is read-only.
type Job struct {
	ID           string
	SubmissionID string
	StartedAt    time.Time

	mu             sync.RWMutex
	status         JobStatus
	classifierName string
	classifierID   string
	err            error
	completedAt    *time.Time

	trainMu  sync.Mutex
	training []record.Record

	predMu     sync.Mutex
	prediction []record.Record
}

func newJob(submissionID string) *Job {
	return &Job{
		ID:           uuid.New().String()[:8],
		SubmissionID: submissionID,
		StartedAt:    time.Now(),
		status:       StatusCreated,
	}
}

// Status returns the current lifecycle status.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Err returns the failure cause for failed jobs, nil otherwise.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// setStatus advances the lifecycle. Regressions and terminal rewrites are
// ignored.
func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if statusRank[s] > statusRank[j.status] {
		j.status = s
	}
}

func (j *Job) setClassifier(name, instanceID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.classifierName = name
	j.classifierID = instanceID
}

func (j *Job) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if statusRank[StatusCompleted] > statusRank[j.status] {
		j.status = StatusCompleted
		now := time.Now()
		j.completedAt = &now
	}
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if statusRank[StatusFailed] > statusRank[j.status] {
		j.status = StatusFailed
		j.err = err
		now := time.Now()
		j.completedAt = &now
	}
}

// RecordTraining shapes one training record and appends it. The record
// merges base columns, the iteration data, the classifier's
// hyperparameters and extra, in that order; later keys win on collision.
// Returns the appended record.
func (j *Job) RecordTraining(c classifier.Classifier, it classifier.Iteration, extra record.Record) record.Record {
	iter := record.Record{
		"epoch":     it.Epoch,
		"minibatch": it.Minibatch,
		"cost":      it.Cost,
	}
	for k, v := range it.Metrics {
		iter[k] = v
	}
	row := record.Merge(record.Record{
		"timestamp":       time.Now(),
		"classifier_name": c.Name(),
		"classifier_id":   c.InstanceID(),
	}, iter, record.Record(c.Hyperparameters()), extra)

	j.trainMu.Lock()
	j.training = append(j.training, row)
	j.trainMu.Unlock()
	return row
}

// RecordPrediction validates the report, shapes the totals row for one
// test set and appends it. Per-label rows are computed by PerLabelRecords
// for display; only the totals row is persisted. Returns the appended row.
func (j *Job) RecordPrediction(c classifier.Classifier, testSetID string, rep *score.Report, extra record.Record) (record.Record, error) {
	if err := rep.Validate(); err != nil {
		return nil, fmt.Errorf("test set %s: %w", testSetID, err)
	}
	row := record.Merge(record.Record{
		"timestamp":       time.Now(),
		"classifier_name": c.Name(),
		"classifier_id":   c.InstanceID(),
		"test_set_id":     testSetID,
		"label":           TotalsLabel,
		"precision":       rep.Totals.Precision,
		"recall":          rep.Totals.Recall,
		"accuracy":        rep.Accuracy,
		"f1":              rep.Totals.F1,
		"support":         rep.Totals.Support,
		"job_id":          j.ID,
	}, record.Record(c.Hyperparameters()), extra)

	j.predMu.Lock()
	j.prediction = append(j.prediction, row)
	j.predMu.Unlock()
	return row, nil
}

// PerLabelRecords shapes one row per report label in the totals row's
// column layout. These rows never enter the aggregate logs.
func PerLabelRecords(c classifier.Classifier, testSetID string, rep *score.Report, jobID string, extra record.Record) []record.Record {
	now := time.Now()
	rows := make([]record.Record, len(rep.Labels))
	for i, label := range rep.Labels {
		rows[i] = record.Merge(record.Record{
			"timestamp":       now,
			"classifier_name": c.Name(),
			"classifier_id":   c.InstanceID(),
			"test_set_id":     testSetID,
			"label":           label,
			"precision":       rep.Precision[i],
			"recall":          rep.Recall[i],
			"accuracy":        rep.Accuracy,
			"f1":              rep.F1[i],
			"support":         rep.Support[i],
			"job_id":          jobID,
		}, record.Record(c.Hyperparameters()), extra)
	}
	return rows
}

// TrainingRecords returns a copy of the training sequence in append order.
func (j *Job) TrainingRecords() []record.Record {
	j.trainMu.Lock()
	defer j.trainMu.Unlock()
	out := make([]record.Record, len(j.training))
	copy(out, j.training)
	return out
}

// PredictionRecords returns a copy of the prediction sequence in append order.
func (j *Job) PredictionRecords() []record.Record {
	j.predMu.Lock()
	defer j.predMu.Unlock()
	out := make([]record.Record, len(j.prediction))
	copy(out, j.prediction)
	return out
}

// JobView is a lock-consistent copy of a job's observable state.
type JobView struct {
	ID             string     `json:"id"`
	SubmissionID   string     `json:"submission_id"`
	Classifier     string     `json:"classifier,omitempty"`
	Status         JobStatus  `json:"status"`
	TrainingRows   int        `json:"training_rows"`
	PredictionRows int        `json:"prediction_rows"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Snapshot captures the job for display without exposing live state.
func (j *Job) Snapshot() JobView {
	j.trainMu.Lock()
	trainRows := len(j.training)
	j.trainMu.Unlock()
	j.predMu.Lock()
	predRows := len(j.prediction)
	j.predMu.Unlock()

	j.mu.RLock()
	defer j.mu.RUnlock()
	v := JobView{
		ID:             j.ID,
		SubmissionID:   j.SubmissionID,
		Classifier:     j.classifierName,
		Status:         j.status,
		TrainingRows:   trainRows,
		PredictionRows: predRows,
		StartedAt:      j.StartedAt,
	}
	if j.completedAt != nil {
		t := *j.completedAt
		v.CompletedAt = &t
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	return v
}
