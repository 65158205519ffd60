package harness

import (
	"errors"
	"testing"
	"time"

	"github.com/mlheats/heats/internal/classifier"
	"github.com/mlheats/heats/internal/record"
	"github.com/mlheats/heats/internal/score"
)

type fakeClassifier struct {
	name   string
	id     string
	hyper  map[string]any
	labels []string
}

func (f *fakeClassifier) Train(cb classifier.TrainFunc) error     { return nil }
func (f *fakeClassifier) Predict(x [][]float64) ([]string, error) { return nil, nil }
func (f *fakeClassifier) Hyperparameters() map[string]any         { return f.hyper }
func (f *fakeClassifier) Labels() []string                        { return f.labels }
func (f *fakeClassifier) InstanceID() string                      { return f.id }
func (f *fakeClassifier) Name() string                            { return f.name }

func TestSetStatus_NeverRegresses(t *testing.T) {
	j := newJob("sub-1")
	if got := j.Status(); got != StatusCreated {
		t.Fatalf("new job status = %q, want %q", got, StatusCreated)
	}

	j.setStatus(StatusTraining)
	j.setStatus(StatusCreated)
	if got := j.Status(); got != StatusTraining {
		t.Errorf("status after regression attempt = %q, want %q", got, StatusTraining)
	}

	j.setStatus(StatusPredicting)
	j.complete()
	if got := j.Status(); got != StatusCompleted {
		t.Fatalf("status after complete = %q, want %q", got, StatusCompleted)
	}

	j.fail(errors.New("too late"))
	if got := j.Status(); got != StatusCompleted {
		t.Errorf("fail overwrote terminal status: got %q", got)
	}
	if j.Err() != nil {
		t.Errorf("fail after complete recorded an error: %v", j.Err())
	}
}

func TestFail_IsTerminal(t *testing.T) {
	j := newJob("sub-1")
	j.setStatus(StatusTraining)
	j.fail(errors.New("boom"))

	if got := j.Status(); got != StatusFailed {
		t.Fatalf("status = %q, want %q", got, StatusFailed)
	}
	if j.Err() == nil || j.Err().Error() != "boom" {
		t.Errorf("err = %v, want boom", j.Err())
	}

	j.complete()
	if got := j.Status(); got != StatusFailed {
		t.Errorf("complete overwrote failed status: got %q", got)
	}

	v := j.Snapshot()
	if v.CompletedAt == nil {
		t.Error("failed job snapshot has no completion time")
	}
}

func TestTerminal(t *testing.T) {
	for _, tt := range []struct {
		status JobStatus
		want   bool
	}{
		{StatusCreated, false},
		{StatusTraining, false},
		{StatusPredicting, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	} {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRecordTraining_MergePrecedence(t *testing.T) {
	j := newJob("sub-1")
	c := &fakeClassifier{
		name: "centroid",
		id:   "c1d2e3f4",
		// cost collides with the iteration column, hyperparameters win.
		hyper: map[string]any{"cost": 9.9, "learning_rate": 0.5},
	}
	it := classifier.Iteration{
		Epoch:     2,
		Minibatch: 1,
		Cost:      0.25,
		Metrics:   map[string]float64{"train_accuracy": 0.8},
	}
	extra := record.Record{"learning_rate": "overridden", "run": "exp-7"}

	row := j.RecordTraining(c, it, extra)

	if got := row["cost"]; got != 9.9 {
		t.Errorf("cost = %v, want hyperparameter value 9.9", got)
	}
	if got := row["learning_rate"]; got != "overridden" {
		t.Errorf("learning_rate = %v, want extra value", got)
	}
	if got := row["epoch"]; got != 2 {
		t.Errorf("epoch = %v, want 2", got)
	}
	if got := row["train_accuracy"]; got != 0.8 {
		t.Errorf("train_accuracy = %v, want 0.8", got)
	}
	if got := row["classifier_name"]; got != "centroid" {
		t.Errorf("classifier_name = %v", got)
	}
	if got := row["classifier_id"]; got != "c1d2e3f4" {
		t.Errorf("classifier_id = %v", got)
	}
	if _, ok := row["timestamp"].(time.Time); !ok {
		t.Errorf("timestamp = %T, want time.Time", row["timestamp"])
	}
	if got := row["run"]; got != "exp-7" {
		t.Errorf("run = %v, want exp-7", got)
	}

	if n := len(j.TrainingRecords()); n != 1 {
		t.Fatalf("training records = %d, want 1", n)
	}
}

func TestRecordPrediction_TotalsRow(t *testing.T) {
	j := newJob("sub-1")
	c := &fakeClassifier{name: "perceptron", id: "abcd1234", hyper: map[string]any{"epochs": 20}}

	rep, err := score.Score(
		[]string{"a", "a", "b"},
		[]string{"a", "b", "b"},
		nil,
	)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	row, err := j.RecordPrediction(c, "holdout", rep, record.Record{"run": "exp-7"})
	if err != nil {
		t.Fatalf("record prediction: %v", err)
	}

	if got := row["label"]; got != TotalsLabel {
		t.Errorf("label = %v, want %q", got, TotalsLabel)
	}
	if got := row["test_set_id"]; got != "holdout" {
		t.Errorf("test_set_id = %v", got)
	}
	if got := row["job_id"]; got != j.ID {
		t.Errorf("job_id = %v, want %s", got, j.ID)
	}
	if got := row["support"]; got != 3 {
		t.Errorf("support = %v, want total 3", got)
	}
	if got := row["accuracy"]; got != rep.Accuracy {
		t.Errorf("accuracy = %v, want %v", got, rep.Accuracy)
	}
	if got := row["f1"]; got != rep.Totals.F1 {
		t.Errorf("f1 = %v, want %v", got, rep.Totals.F1)
	}
	if got := row["epochs"]; got != 20 {
		t.Errorf("hyperparameter epochs = %v, want 20", got)
	}
	if got := row["run"]; got != "exp-7" {
		t.Errorf("run = %v, want exp-7", got)
	}

	if n := len(j.PredictionRecords()); n != 1 {
		t.Fatalf("prediction records = %d, want exactly the totals row", n)
	}
}

func TestRecordPrediction_InvalidReport(t *testing.T) {
	j := newJob("sub-1")
	c := &fakeClassifier{name: "perceptron", id: "abcd1234"}

	rep := &score.Report{
		Labels:    []string{"a", "b"},
		Precision: []float64{1},
		Recall:    []float64{1, 1},
		F1:        []float64{1, 1},
		Support:   []int{1, 1},
	}

	if _, err := j.RecordPrediction(c, "holdout", rep, nil); !errors.Is(err, score.ErrInvalidReport) {
		t.Fatalf("err = %v, want ErrInvalidReport", err)
	}
	if n := len(j.PredictionRecords()); n != 0 {
		t.Errorf("invalid report appended %d records", n)
	}
}

func TestPerLabelRecords(t *testing.T) {
	c := &fakeClassifier{name: "centroid", id: "c1d2e3f4"}
	rep, err := score.Score(
		[]string{"a", "a", "b", "c"},
		[]string{"a", "b", "b", "c"},
		nil,
	)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	rows := PerLabelRecords(c, "holdout", rep, "job-1", nil)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want one per label", len(rows))
	}
	for i, label := range rep.Labels {
		if got := rows[i]["label"]; got != label {
			t.Errorf("row %d label = %v, want %s", i, got, label)
		}
		if got := rows[i]["job_id"]; got != "job-1" {
			t.Errorf("row %d job_id = %v", i, got)
		}
		if got := rows[i]["support"]; got != rep.Support[i] {
			t.Errorf("row %d support = %v, want %d", i, got, rep.Support[i])
		}
	}
}

func TestSnapshot_CountsRecords(t *testing.T) {
	j := newJob("sub-9")
	c := &fakeClassifier{name: "centroid", id: "c1d2e3f4"}
	j.setClassifier(c.Name(), c.InstanceID())

	for i := 1; i <= 3; i++ {
		j.RecordTraining(c, classifier.Iteration{Epoch: i, Cost: 1 / float64(i)}, nil)
	}
	rep, err := score.Score([]string{"a", "b"}, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if _, err := j.RecordPrediction(c, "holdout", rep, nil); err != nil {
		t.Fatalf("record prediction: %v", err)
	}

	v := j.Snapshot()
	if v.SubmissionID != "sub-9" {
		t.Errorf("submission = %q", v.SubmissionID)
	}
	if v.Classifier != "centroid" {
		t.Errorf("classifier = %q", v.Classifier)
	}
	if v.TrainingRows != 3 || v.PredictionRows != 1 {
		t.Errorf("rows = %d/%d, want 3/1", v.TrainingRows, v.PredictionRows)
	}
	if v.StartedAt.IsZero() {
		t.Error("snapshot has zero start time")
	}
}
