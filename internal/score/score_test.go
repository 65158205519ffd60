package score

import (
	"errors"
	"math"
	"testing"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_KnownConfusion(t *testing.T) {
	truth := []string{"a", "a", "a", "b", "b", "c"}
	pred := []string{"a", "a", "b", "b", "a", "c"}

	r, err := Score(truth, pred, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if got := r.Labels; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("Labels = %v, want [a b c]", got)
	}

	tests := []struct {
		label     string
		precision float64
		recall    float64
		f1        float64
		support   int
	}{
		{"a", 2.0 / 3, 2.0 / 3, 2.0 / 3, 3},
		{"b", 0.5, 0.5, 0.5, 2},
		{"c", 1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			i := r.LabelIndex(tt.label)
			if i < 0 {
				t.Fatalf("label %q missing", tt.label)
			}
			if !almost(r.Precision[i], tt.precision) {
				t.Errorf("precision = %v, want %v", r.Precision[i], tt.precision)
			}
			if !almost(r.Recall[i], tt.recall) {
				t.Errorf("recall = %v, want %v", r.Recall[i], tt.recall)
			}
			if !almost(r.F1[i], tt.f1) {
				t.Errorf("f1 = %v, want %v", r.F1[i], tt.f1)
			}
			if r.Support[i] != tt.support {
				t.Errorf("support = %d, want %d", r.Support[i], tt.support)
			}
		})
	}

	if !almost(r.Accuracy, 4.0/6) {
		t.Errorf("accuracy = %v, want %v", r.Accuracy, 4.0/6)
	}
	wantMacroP := (2.0/3 + 0.5 + 1) / 3
	if !almost(r.Totals.Precision, wantMacroP) {
		t.Errorf("totals precision = %v, want %v", r.Totals.Precision, wantMacroP)
	}
	if r.Totals.Support != 6 {
		t.Errorf("totals support = %d, want 6", r.Totals.Support)
	}
}

func TestScore_ExplicitLabelSubset(t *testing.T) {
	truth := []string{"a", "b", "a"}
	pred := []string{"a", "b", "a"}

	r, err := Score(truth, pred, []string{"a"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(r.Labels) != 1 {
		t.Fatalf("Labels = %v, want [a]", r.Labels)
	}
	// Accuracy still counts every sample, support only the listed labels.
	if !almost(r.Accuracy, 1) {
		t.Errorf("accuracy = %v, want 1", r.Accuracy)
	}
	if r.Totals.Support != 2 {
		t.Errorf("totals support = %d, want 2", r.Totals.Support)
	}
}

func TestScore_NeverPredictedLabel(t *testing.T) {
	truth := []string{"a", "b"}
	pred := []string{"a", "a"}

	r, err := Score(truth, pred, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	i := r.LabelIndex("b")
	if r.Precision[i] != 0 || r.Recall[i] != 0 || r.F1[i] != 0 {
		t.Errorf("label b metrics = %v/%v/%v, want zeros", r.Precision[i], r.Recall[i], r.F1[i])
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestScore_InputErrors(t *testing.T) {
	if _, err := Score(nil, nil, nil); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := Score([]string{"a"}, []string{"a", "b"}, nil); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Report {
		return &Report{
			Labels:    []string{"a", "b"},
			Precision: []float64{1, 0.5},
			Recall:    []float64{0.5, 1},
			F1:        []float64{2.0 / 3, 2.0 / 3},
			Support:   []int{2, 2},
			Totals:    Totals{Precision: 0.75, Recall: 0.75, F1: 2.0 / 3, Support: 4},
			Accuracy:  0.75,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Report)
		wantOK bool
	}{
		{"valid", func(r *Report) {}, true},
		{"no labels", func(r *Report) { r.Labels = nil }, false},
		{"short precision", func(r *Report) { r.Precision = r.Precision[:1] }, false},
		{"f1 above one", func(r *Report) { r.F1[0] = 1.5 }, false},
		{"negative recall", func(r *Report) { r.Recall[1] = -0.1 }, false},
		{"negative support", func(r *Report) { r.Support[0] = -1 }, false},
		{"accuracy out of range", func(r *Report) { r.Accuracy = 1.01 }, false},
		{"totals out of range", func(r *Report) { r.Totals.F1 = -2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("Validate: %v, want nil", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("Validate: nil, want error")
				}
				if !errors.Is(err, ErrInvalidReport) {
					t.Errorf("error %v does not wrap ErrInvalidReport", err)
				}
			}
		})
	}
}
