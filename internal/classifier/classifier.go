// Package classifier defines the contract trainable classifiers implement
// and ships two small reference implementations used by plans and tests.
// Training and prediction algorithms beyond these references live outside
// this module; anything satisfying Classifier can be submitted.
package classifier

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Options carries constructor keyword arguments, typically decoded from an
// experiment plan. Unknown keys are constructor errors so plan typos
// surface before training starts.
type Options map[string]any

// Iteration is one training-progress report passed to the train callback.
// Metrics may carry additional per-iteration values beyond cost.
type Iteration struct {
	Epoch     int
	Minibatch int
	Cost      float64
	Metrics   map[string]float64
}

// TrainFunc observes training progress, once per iteration.
type TrainFunc func(c Classifier, it Iteration)

// Classifier is the capability a job exercises: train on the data given at
// construction, predict labels for feature rows, and describe itself.
type Classifier interface {
	// Train fits the classifier, invoking cb after every iteration.
	// A nil cb is allowed.
	Train(cb TrainFunc) error
	// Predict returns one label per feature row.
	Predict(x [][]float64) ([]string, error)
	// Hyperparameters returns the effective settings for log records.
	Hyperparameters() map[string]any
	// Labels returns the label set seen at construction, sorted.
	Labels() []string
	// InstanceID identifies this instance across log rows.
	InstanceID() string
	// Name is the classifier kind, e.g. "centroid".
	Name() string
}

// Constructor builds a classifier over a training set.
type Constructor func(x [][]float64, y []string, opts Options) (Classifier, error)

// Builtin maps plan names to the constructors this module ships.
func Builtin() map[string]Constructor {
	return map[string]Constructor{
		"centroid":   NewCentroid,
		"perceptron": NewPerceptron,
	}
}

func shortID() string {
	return uuid.New().String()[:8]
}

// validateTrainingSet checks shape invariants shared by all constructors.
func validateTrainingSet(x [][]float64, y []string) error {
	if len(x) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d feature rows vs %d labels", len(x), len(y))
	}
	dim := len(x[0])
	if dim == 0 {
		return fmt.Errorf("feature rows are empty")
	}
	for i, row := range x {
		if len(row) != dim {
			return fmt.Errorf("feature row %d has %d values, want %d", i, len(row), dim)
		}
	}
	return nil
}

// uniqueLabels returns the sorted distinct labels of y.
func uniqueLabels(y []string) []string {
	set := make(map[string]struct{}, len(y))
	for _, l := range y {
		set[l] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
