package classifier

import "fmt"

// Centroid is an iterative nearest-centroid classifier. Centroids start at
// the per-label feature means; each iteration pulls the true centroid of
// every misclassified point toward it and pushes the imposter away, with a
// step size that decays per iteration.
type Centroid struct {
	id           string
	x            [][]float64
	y            []string
	labels       []string
	dim          int
	iterations   int
	learningRate float64
	centroids    map[string][]float64
}

// NewCentroid builds a centroid classifier over the training set.
// Options: iterations (default 10), learning_rate (default 0.5).
func NewCentroid(x [][]float64, y []string, opts Options) (Classifier, error) {
	if err := validateTrainingSet(x, y); err != nil {
		return nil, fmt.Errorf("centroid: %w", err)
	}
	if err := opts.checkKeys("iterations", "learning_rate"); err != nil {
		return nil, fmt.Errorf("centroid: %w", err)
	}
	iterations, err := opts.intOption("iterations", 10)
	if err != nil {
		return nil, fmt.Errorf("centroid: %w", err)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("centroid: iterations must be positive, got %d", iterations)
	}
	rate, err := opts.floatOption("learning_rate", 0.5)
	if err != nil {
		return nil, fmt.Errorf("centroid: %w", err)
	}
	if rate <= 0 || rate > 1 {
		return nil, fmt.Errorf("centroid: learning_rate must be in (0, 1], got %v", rate)
	}
	return &Centroid{
		id:           shortID(),
		x:            x,
		y:            y,
		labels:       uniqueLabels(y),
		dim:          len(x[0]),
		iterations:   iterations,
		learningRate: rate,
	}, nil
}

func (c *Centroid) Train(cb TrainFunc) error {
	c.centroids = labelMeans(c.x, c.y, c.dim)
	for it := 1; it <= c.iterations; it++ {
		step := c.learningRate / float64(it)
		cost := 0.0
		for i, row := range c.x {
			truth := c.y[i]
			if nearest := c.nearestLabel(row); nearest != truth {
				nudge(c.centroids[truth], row, step)
				nudge(c.centroids[nearest], row, -step)
			}
			cost += sqDist(row, c.centroids[truth])
		}
		cost /= float64(len(c.x))
		if cb != nil {
			cb(c, Iteration{Epoch: it, Cost: cost})
		}
	}
	return nil
}

func (c *Centroid) Predict(x [][]float64) ([]string, error) {
	if c.centroids == nil {
		return nil, fmt.Errorf("centroid: predict before train")
	}
	out := make([]string, len(x))
	for i, row := range x {
		if len(row) != c.dim {
			return nil, fmt.Errorf("centroid: feature row %d has %d values, want %d", i, len(row), c.dim)
		}
		out[i] = c.nearestLabel(row)
	}
	return out, nil
}

func (c *Centroid) Hyperparameters() map[string]any {
	return map[string]any{
		"iterations":    c.iterations,
		"learning_rate": c.learningRate,
	}
}

func (c *Centroid) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

func (c *Centroid) InstanceID() string { return c.id }

func (c *Centroid) Name() string { return "centroid" }

// nearestLabel iterates sorted labels so distance ties break the same way
// every run.
func (c *Centroid) nearestLabel(row []float64) string {
	best := c.labels[0]
	bestDist := sqDist(row, c.centroids[best])
	for _, l := range c.labels[1:] {
		if d := sqDist(row, c.centroids[l]); d < bestDist {
			best, bestDist = l, d
		}
	}
	return best
}

func labelMeans(x [][]float64, y []string, dim int) map[string][]float64 {
	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for i, row := range x {
		s, ok := sums[y[i]]
		if !ok {
			s = make([]float64, dim)
			sums[y[i]] = s
		}
		for j, v := range row {
			s[j] += v
		}
		counts[y[i]]++
	}
	for l, s := range sums {
		n := float64(counts[l])
		for j := range s {
			s[j] /= n
		}
	}
	return sums
}

// nudge moves centroid toward the point for positive steps and away for
// negative ones.
func nudge(centroid, point []float64, step float64) {
	for j := range centroid {
		centroid[j] += step * (point[j] - centroid[j])
	}
}

func sqDist(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
