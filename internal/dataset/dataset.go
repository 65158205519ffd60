// Package dataset loads feature/label sets from CSV files for plans and
// the CLI. Sets are read-only once loaded and may be shared across jobs.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// DefaultLabelColumn is used when a plan does not name one.
const DefaultLabelColumn = "label"

// Set pairs feature rows with their ground-truth labels.
type Set struct {
	X [][]float64
	Y []string
}

// Len returns the number of samples.
func (s Set) Len() int { return len(s.X) }

// Validate checks the invariants constructors rely on.
func (s Set) Validate() error {
	if len(s.X) == 0 {
		return fmt.Errorf("dataset is empty")
	}
	if len(s.X) != len(s.Y) {
		return fmt.Errorf("%d feature rows vs %d labels", len(s.X), len(s.Y))
	}
	dim := len(s.X[0])
	for i, row := range s.X {
		if len(row) != dim {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), dim)
		}
	}
	return nil
}

// LoadCSV reads a dataset from a CSV file with a header row. The column
// named labelColumn (empty means DefaultLabelColumn) holds the label;
// every other column is parsed as a float64 feature.
func LoadCSV(path, labelColumn string) (Set, error) {
	if labelColumn == "" {
		labelColumn = DefaultLabelColumn
	}
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Set{}, fmt.Errorf("read dataset %s: %w", path, err)
	}
	if len(rows) < 2 {
		return Set{}, fmt.Errorf("dataset %s: need a header row and at least one sample", path)
	}

	header := rows[0]
	labelIdx := -1
	for i, col := range header {
		if col == labelColumn {
			labelIdx = i
			break
		}
	}
	if labelIdx < 0 {
		return Set{}, fmt.Errorf("dataset %s: no %q column in header %v", path, labelColumn, header)
	}

	set := Set{
		X: make([][]float64, 0, len(rows)-1),
		Y: make([]string, 0, len(rows)-1),
	}
	for n, cells := range rows[1:] {
		if len(cells) != len(header) {
			return Set{}, fmt.Errorf("dataset %s: row %d has %d cells, want %d", path, n+2, len(cells), len(header))
		}
		features := make([]float64, 0, len(header)-1)
		for i, cell := range cells {
			if i == labelIdx {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return Set{}, fmt.Errorf("dataset %s: row %d column %q: %w", path, n+2, header[i], err)
			}
			features = append(features, v)
		}
		set.X = append(set.X, features)
		set.Y = append(set.Y, cells[labelIdx])
	}
	if err := set.Validate(); err != nil {
		return Set{}, fmt.Errorf("dataset %s: %w", path, err)
	}
	return set, nil
}
