package classifier

import (
	"math"
	"testing"
)

// twoClusters returns a small linearly separable training set.
func twoClusters() ([][]float64, []string) {
	x := [][]float64{
		{0, 0}, {0.5, 0}, {0, 0.5}, {0.25, 0.25},
		{10, 10}, {9.5, 10}, {10, 9.5}, {9.75, 9.75},
	}
	y := []string{"low", "low", "low", "low", "high", "high", "high", "high"}
	return x, y
}

func TestConstructorErrors(t *testing.T) {
	x, y := twoClusters()
	tests := []struct {
		name string
		ctor Constructor
		x    [][]float64
		y    []string
		opts Options
	}{
		{"centroid empty set", NewCentroid, nil, nil, nil},
		{"centroid length mismatch", NewCentroid, x, y[:3], nil},
		{"centroid ragged rows", NewCentroid, [][]float64{{1, 2}, {1}}, []string{"a", "b"}, nil},
		{"centroid unknown option", NewCentroid, x, y, Options{"iteratons": 5}},
		{"centroid zero iterations", NewCentroid, x, y, Options{"iterations": 0}},
		{"centroid rate above one", NewCentroid, x, y, Options{"learning_rate": 1.5}},
		{"centroid non-integer iterations", NewCentroid, x, y, Options{"iterations": "ten"}},
		{"perceptron unknown option", NewPerceptron, x, y, Options{"epoch": 5}},
		{"perceptron zero epochs", NewPerceptron, x, y, Options{"epochs": 0}},
		{"perceptron negative rate", NewPerceptron, x, y, Options{"learning_rate": -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.ctor(tt.x, tt.y, tt.opts); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestCentroid_TrainCallbackPerIteration(t *testing.T) {
	x, y := twoClusters()
	c, err := NewCentroid(x, y, Options{"iterations": 5})
	if err != nil {
		t.Fatalf("NewCentroid: %v", err)
	}

	var epochs []int
	err = c.Train(func(inst Classifier, it Iteration) {
		if inst.InstanceID() != c.InstanceID() {
			t.Errorf("callback instance %q, want %q", inst.InstanceID(), c.InstanceID())
		}
		if math.IsNaN(it.Cost) || it.Cost < 0 {
			t.Errorf("iteration %d: bad cost %v", it.Epoch, it.Cost)
		}
		epochs = append(epochs, it.Epoch)
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(epochs) != 5 {
		t.Fatalf("got %d callbacks, want 5", len(epochs))
	}
	for i, e := range epochs {
		if e != i+1 {
			t.Errorf("epoch[%d] = %d, want %d", i, e, i+1)
		}
	}
}

func TestCentroid_PredictSeparable(t *testing.T) {
	x, y := twoClusters()
	c, err := NewCentroid(x, y, nil)
	if err != nil {
		t.Fatalf("NewCentroid: %v", err)
	}
	if err := c.Train(nil); err != nil {
		t.Fatalf("Train: %v", err)
	}

	got, err := c.Predict([][]float64{{0.1, 0.1}, {9.9, 9.9}, {1, 1}, {8, 9}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []string{"low", "high", "low", "high"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prediction[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCentroid_PredictBeforeTrain(t *testing.T) {
	x, y := twoClusters()
	c, _ := NewCentroid(x, y, nil)
	if _, err := c.Predict(x); err == nil {
		t.Error("expected error predicting before train")
	}
}

func TestCentroid_PredictDimensionMismatch(t *testing.T) {
	x, y := twoClusters()
	c, _ := NewCentroid(x, y, nil)
	if err := c.Train(nil); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if _, err := c.Predict([][]float64{{1, 2, 3}}); err == nil {
		t.Error("expected error for wrong feature width")
	}
}

func TestCentroid_Hyperparameters(t *testing.T) {
	x, y := twoClusters()
	c, err := NewCentroid(x, y, Options{"iterations": 7, "learning_rate": 0.25})
	if err != nil {
		t.Fatalf("NewCentroid: %v", err)
	}
	hp := c.Hyperparameters()
	if hp["iterations"] != 7 {
		t.Errorf("iterations = %v, want 7", hp["iterations"])
	}
	if hp["learning_rate"] != 0.25 {
		t.Errorf("learning_rate = %v, want 0.25", hp["learning_rate"])
	}
}

func TestPerceptron_TrainAndPredict(t *testing.T) {
	x, y := twoClusters()
	p, err := NewPerceptron(x, y, Options{"epochs": 15})
	if err != nil {
		t.Fatalf("NewPerceptron: %v", err)
	}

	calls := 0
	lastCost := math.Inf(1)
	err = p.Train(func(_ Classifier, it Iteration) {
		calls++
		lastCost = it.Cost
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if calls != 15 {
		t.Errorf("got %d callbacks, want 15", calls)
	}
	// Separable data converges, the final epochs run mistake free.
	if lastCost != 0 {
		t.Errorf("final cost = %v, want 0", lastCost)
	}

	got, err := p.Predict([][]float64{{0.2, 0.3}, {9.8, 10.2}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got[0] != "low" || got[1] != "high" {
		t.Errorf("predictions = %v, want [low high]", got)
	}
}

func TestPerceptron_Deterministic(t *testing.T) {
	x, y := twoClusters()
	probe := [][]float64{{5, 5}, {2, 8}, {8, 2}, {4.9, 5.1}}

	run := func() []string {
		p, err := NewPerceptron(x, y, Options{"epochs": 10, "shuffle_seed": 42})
		if err != nil {
			t.Fatalf("NewPerceptron: %v", err)
		}
		if err := p.Train(nil); err != nil {
			t.Fatalf("Train: %v", err)
		}
		out, err := p.Predict(probe)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("probe %d: %q vs %q across identical runs", i, first[i], second[i])
		}
	}
}

func TestLabelsSortedAndCopied(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	y := []string{"c", "a", "b"}
	c, err := NewCentroid(x, y, nil)
	if err != nil {
		t.Fatalf("NewCentroid: %v", err)
	}
	labels := c.Labels()
	want := []string{"a", "b", "c"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("Labels() = %v, want %v", labels, want)
		}
	}
	labels[0] = "mutated"
	if c.Labels()[0] != "a" {
		t.Error("Labels() exposed internal slice")
	}
}

func TestBuiltin(t *testing.T) {
	b := Builtin()
	for _, name := range []string{"centroid", "perceptron"} {
		ctor, ok := b[name]
		if !ok || ctor == nil {
			t.Errorf("Builtin() missing %q", name)
		}
	}
}

func TestInstanceIDs(t *testing.T) {
	x, y := twoClusters()
	a, _ := NewCentroid(x, y, nil)
	b, _ := NewCentroid(x, y, nil)
	if a.InstanceID() == b.InstanceID() {
		t.Error("two instances share an ID")
	}
	if len(a.InstanceID()) != 8 {
		t.Errorf("InstanceID length = %d, want 8", len(a.InstanceID()))
	}
}
