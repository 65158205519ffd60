package classifier

import (
	"fmt"
	"math/rand"
)

// Perceptron is a multi-class perceptron with one weight vector per label
// and a bias term. Training shuffles sample order with a fixed seed, so
// identical inputs and options always produce the same model.
type Perceptron struct {
	id           string
	x            [][]float64
	y            []string
	labels       []string
	dim          int
	epochs       int
	learningRate float64
	seed         int64
	weights      map[string][]float64 // len dim+1, bias last
}

// NewPerceptron builds a perceptron over the training set.
// Options: epochs (default 20), learning_rate (default 0.1),
// shuffle_seed (default 1).
func NewPerceptron(x [][]float64, y []string, opts Options) (Classifier, error) {
	if err := validateTrainingSet(x, y); err != nil {
		return nil, fmt.Errorf("perceptron: %w", err)
	}
	if err := opts.checkKeys("epochs", "learning_rate", "shuffle_seed"); err != nil {
		return nil, fmt.Errorf("perceptron: %w", err)
	}
	epochs, err := opts.intOption("epochs", 20)
	if err != nil {
		return nil, fmt.Errorf("perceptron: %w", err)
	}
	if epochs < 1 {
		return nil, fmt.Errorf("perceptron: epochs must be positive, got %d", epochs)
	}
	rate, err := opts.floatOption("learning_rate", 0.1)
	if err != nil {
		return nil, fmt.Errorf("perceptron: %w", err)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("perceptron: learning_rate must be positive, got %v", rate)
	}
	seed, err := opts.intOption("shuffle_seed", 1)
	if err != nil {
		return nil, fmt.Errorf("perceptron: %w", err)
	}
	return &Perceptron{
		id:           shortID(),
		x:            x,
		y:            y,
		labels:       uniqueLabels(y),
		dim:          len(x[0]),
		epochs:       epochs,
		learningRate: rate,
		seed:         int64(seed),
	}, nil
}

func (p *Perceptron) Train(cb TrainFunc) error {
	p.weights = make(map[string][]float64, len(p.labels))
	for _, l := range p.labels {
		p.weights[l] = make([]float64, p.dim+1)
	}

	rng := rand.New(rand.NewSource(p.seed))
	order := make([]int, len(p.x))
	for i := range order {
		order[i] = i
	}

	for e := 1; e <= p.epochs; e++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		mistakes := 0
		for _, i := range order {
			truth := p.y[i]
			pred := p.argmax(p.x[i])
			if pred == truth {
				continue
			}
			mistakes++
			up, down := p.weights[truth], p.weights[pred]
			for j, v := range p.x[i] {
				up[j] += p.learningRate * v
				down[j] -= p.learningRate * v
			}
			up[p.dim] += p.learningRate
			down[p.dim] -= p.learningRate
		}
		if cb != nil {
			cb(p, Iteration{Epoch: e, Cost: float64(mistakes) / float64(len(p.x))})
		}
	}
	return nil
}

func (p *Perceptron) Predict(x [][]float64) ([]string, error) {
	if p.weights == nil {
		return nil, fmt.Errorf("perceptron: predict before train")
	}
	out := make([]string, len(x))
	for i, row := range x {
		if len(row) != p.dim {
			return nil, fmt.Errorf("perceptron: feature row %d has %d values, want %d", i, len(row), p.dim)
		}
		out[i] = p.argmax(row)
	}
	return out, nil
}

func (p *Perceptron) Hyperparameters() map[string]any {
	return map[string]any{
		"epochs":        p.epochs,
		"learning_rate": p.learningRate,
		"shuffle_seed":  p.seed,
	}
}

func (p *Perceptron) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

func (p *Perceptron) InstanceID() string { return p.id }

func (p *Perceptron) Name() string { return "perceptron" }

// argmax iterates sorted labels; score ties keep the first label.
func (p *Perceptron) argmax(row []float64) string {
	best := p.labels[0]
	bestScore := p.score(best, row)
	for _, l := range p.labels[1:] {
		if s := p.score(l, row); s > bestScore {
			best, bestScore = l, s
		}
	}
	return best
}

func (p *Perceptron) score(label string, row []float64) float64 {
	w := p.weights[label]
	s := w[p.dim]
	for j, v := range row {
		s += w[j] * v
	}
	return s
}
