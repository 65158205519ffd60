// Package score computes per-label classification scores and defines the
// report type exchanged between workers and the coordinator.
package score

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidReport marks reports rejected at the worker boundary.
var ErrInvalidReport = errors.New("invalid score report")

// Totals carries macro-averaged metrics over all labels plus total support.
type Totals struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report holds per-label metrics as parallel slices indexed like Labels,
// macro totals, and overall accuracy.
type Report struct {
	Labels    []string  `json:"labels"`
	Precision []float64 `json:"precision"`
	Recall    []float64 `json:"recall"`
	F1        []float64 `json:"f1"`
	Support   []int     `json:"support"`
	Totals    Totals    `json:"totals"`
	Accuracy  float64   `json:"accuracy"`
}

// Score builds a report from ground truth and predictions. When labels is
// nil the sorted union of labels observed in both slices is used. Metrics
// with a zero denominator come out as 0 rather than NaN.
func Score(truth, predicted []string, labels []string) (*Report, error) {
	if len(truth) == 0 {
		return nil, fmt.Errorf("score: no samples")
	}
	if len(truth) != len(predicted) {
		return nil, fmt.Errorf("score: %d truth labels vs %d predictions", len(truth), len(predicted))
	}
	if labels == nil {
		set := make(map[string]struct{})
		for _, l := range truth {
			set[l] = struct{}{}
		}
		for _, l := range predicted {
			set[l] = struct{}{}
		}
		for l := range set {
			labels = append(labels, l)
		}
		sort.Strings(labels)
	}

	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	n := len(labels)
	tp := make([]int, n)
	fp := make([]int, n)
	fn := make([]int, n)
	support := make([]int, n)
	correct := 0

	for i := range truth {
		ti, tok := index[truth[i]]
		pi, pok := index[predicted[i]]
		if tok {
			support[ti]++
		}
		if truth[i] == predicted[i] {
			correct++
			if tok {
				tp[ti]++
			}
			continue
		}
		if pok {
			fp[pi]++
		}
		if tok {
			fn[ti]++
		}
	}

	r := &Report{
		Labels:    labels,
		Precision: make([]float64, n),
		Recall:    make([]float64, n),
		F1:        make([]float64, n),
		Support:   support,
		Accuracy:  float64(correct) / float64(len(truth)),
	}
	for i := 0; i < n; i++ {
		r.Precision[i] = ratio(tp[i], tp[i]+fp[i])
		r.Recall[i] = ratio(tp[i], tp[i]+fn[i])
		if p, rec := r.Precision[i], r.Recall[i]; p+rec > 0 {
			r.F1[i] = 2 * p * rec / (p + rec)
		}
		r.Totals.Precision += r.Precision[i]
		r.Totals.Recall += r.Recall[i]
		r.Totals.F1 += r.F1[i]
		r.Totals.Support += support[i]
	}
	r.Totals.Precision /= float64(n)
	r.Totals.Recall /= float64(n)
	r.Totals.F1 /= float64(n)
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Validate checks the structural and range invariants a report must hold
// before its rows may enter an aggregate log.
func (r *Report) Validate() error {
	n := len(r.Labels)
	if n == 0 {
		return fmt.Errorf("%w: no labels", ErrInvalidReport)
	}
	if len(r.Precision) != n || len(r.Recall) != n || len(r.F1) != n || len(r.Support) != n {
		return fmt.Errorf("%w: parallel slices do not match %d labels (precision %d, recall %d, f1 %d, support %d)",
			ErrInvalidReport, n, len(r.Precision), len(r.Recall), len(r.F1), len(r.Support))
	}
	for i := 0; i < n; i++ {
		if err := inUnit("precision", r.Labels[i], r.Precision[i]); err != nil {
			return err
		}
		if err := inUnit("recall", r.Labels[i], r.Recall[i]); err != nil {
			return err
		}
		if err := inUnit("f1", r.Labels[i], r.F1[i]); err != nil {
			return err
		}
		if r.Support[i] < 0 {
			return fmt.Errorf("%w: negative support for label %q", ErrInvalidReport, r.Labels[i])
		}
	}
	if r.Accuracy < 0 || r.Accuracy > 1 {
		return fmt.Errorf("%w: accuracy %v out of range", ErrInvalidReport, r.Accuracy)
	}
	for name, v := range map[string]float64{
		"precision": r.Totals.Precision,
		"recall":    r.Totals.Recall,
		"f1":        r.Totals.F1,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: totals %s %v out of range", ErrInvalidReport, name, v)
		}
	}
	if r.Totals.Support < 0 {
		return fmt.Errorf("%w: negative totals support", ErrInvalidReport)
	}
	return nil
}

func inUnit(metric, label string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s %v out of range for label %q", ErrInvalidReport, metric, v, label)
	}
	return nil
}

// LabelIndex returns the position of label in the report, or -1.
func (r *Report) LabelIndex(label string) int {
	for i, l := range r.Labels {
		if l == label {
			return i
		}
	}
	return -1
}
