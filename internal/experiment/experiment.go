// Package experiment parses YAML experiment plans: which classifiers to
// run, with which options, against which datasets.
package experiment

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mlheats/heats/internal/classifier"
	"github.com/mlheats/heats/internal/dataset"
)

// Plan is one experiment file: shared datasets plus a list of jobs.
type Plan struct {
	Name        string             `yaml:"name"`
	Workers     int                `yaml:"workers"`
	LogDir      string             `yaml:"log_dir"`
	Train       string             `yaml:"train"`
	LabelColumn string             `yaml:"label_column"`
	TestSets    map[string]string  `yaml:"test_sets"`
	Defaults    classifier.Options `yaml:"defaults"`
	Extra       map[string]any     `yaml:"extra"`
	Jobs        []JobSpec          `yaml:"jobs"`
}

// JobSpec describes one classifier entry. Count submits the same spec
// that many times.
type JobSpec struct {
	Classifier string             `yaml:"classifier"`
	Count      int                `yaml:"count"`
	Options    classifier.Options `yaml:"options"`
}

// ResolvedJob pairs a job spec with its constructor, one per submission.
type ResolvedJob struct {
	Classifier  string
	Constructor classifier.Constructor
	Options     classifier.Options
}

// Data holds the datasets a plan references, loaded once and shared by
// every submission.
type Data struct {
	Train    dataset.Set
	TestSets map[string]dataset.Set
}

// Load reads and parses a plan file. A missing name defaults to the file
// base name.
func Load(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	// Dataset paths are relative to the plan file.
	dir := filepath.Dir(path)
	p.Train = resolvePath(dir, p.Train)
	for id, tsPath := range p.TestSets {
		p.TestSets[id] = resolvePath(dir, tsPath)
	}
	return p, nil
}

// Parse decodes plan YAML. Unknown fields are errors so plan typos fail
// fast instead of silently dropping settings.
func Parse(raw []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if p.LabelColumn == "" {
		p.LabelColumn = dataset.DefaultLabelColumn
	}
	for i := range p.Jobs {
		if p.Jobs[i].Count <= 0 {
			p.Jobs[i].Count = 1
		}
	}
	return &p, nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Validate checks the plan is runnable before any dataset I/O happens.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan has no name")
	}
	if p.Train == "" {
		return fmt.Errorf("plan %s: no training set", p.Name)
	}
	if len(p.TestSets) == 0 {
		return fmt.Errorf("plan %s: no test sets", p.Name)
	}
	for id, path := range p.TestSets {
		if id == "" {
			return fmt.Errorf("plan %s: test set with empty id", p.Name)
		}
		if path == "" {
			return fmt.Errorf("plan %s: test set %s has no path", p.Name, id)
		}
	}
	if len(p.Jobs) == 0 {
		return fmt.Errorf("plan %s: no jobs", p.Name)
	}
	for i, job := range p.Jobs {
		if job.Classifier == "" {
			return fmt.Errorf("plan %s: job %d has no classifier", p.Name, i)
		}
	}
	return nil
}

// TotalJobs returns the number of submissions the plan expands to.
func (p *Plan) TotalJobs() int {
	n := 0
	for _, job := range p.Jobs {
		n += job.Count
	}
	return n
}

// LoadData reads the training set and every test set from disk.
func (p *Plan) LoadData() (*Data, error) {
	train, err := dataset.LoadCSV(p.Train, p.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("load training set: %w", err)
	}
	testSets := make(map[string]dataset.Set, len(p.TestSets))
	for id, path := range p.TestSets {
		ts, err := dataset.LoadCSV(path, p.LabelColumn)
		if err != nil {
			return nil, fmt.Errorf("load test set %s: %w", id, err)
		}
		testSets[id] = ts
	}
	return &Data{Train: train, TestSets: testSets}, nil
}

// Resolve maps every job's classifier name through builtins (nil means
// classifier.Builtin()) and expands count into repeated entries, in plan
// order.
func (p *Plan) Resolve(builtins map[string]classifier.Constructor) ([]ResolvedJob, error) {
	if builtins == nil {
		builtins = classifier.Builtin()
	}
	resolved := make([]ResolvedJob, 0, p.TotalJobs())
	for _, job := range p.Jobs {
		ctor, ok := builtins[job.Classifier]
		if !ok {
			return nil, fmt.Errorf("unknown classifier %q, have %s",
				job.Classifier, strings.Join(builtinNames(builtins), ", "))
		}
		for i := 0; i < job.Count; i++ {
			resolved = append(resolved, ResolvedJob{
				Classifier:  job.Classifier,
				Constructor: ctor,
				Options:     job.Options,
			})
		}
	}
	return resolved, nil
}

func builtinNames(builtins map[string]classifier.Constructor) []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
