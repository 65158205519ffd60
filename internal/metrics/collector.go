// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Row metrics (only for batch operations: merge, persist)
	TotalRows int64
	MinRows   int64
	MaxRows   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// Row stats (nil if not applicable)
	TotalRows *int64   `json:"total_rows,omitempty"`
	AvgRows   *float64 `json:"avg_rows,omitempty"`
	MinRows   *int64   `json:"min_rows,omitempty"`
	MaxRows   *int64   `json:"max_rows,omitempty"`
}

// Snapshot represents the full collector state at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Train         *OperationSnapshot `json:"train,omitempty"`
	Predict       *OperationSnapshot `json:"predict,omitempty"`
	Score         *OperationSnapshot `json:"score,omitempty"`
	Merge         *OperationSnapshot `json:"merge,omitempty"`
	Persist       *OperationSnapshot `json:"persist,omitempty"`
}

// Operation names for the collector.
const (
	OpTrain   = "train"
	OpPredict = "predict"
	OpScore   = "score"
	OpMerge   = "merge"
	OpPersist = "persist"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
			MinRows: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordBatch records timing and row volume for a batch operation.
func (c *Collector) RecordBatch(op string, duration time.Duration, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	n := int64(rows)
	m.TotalRows += n

	if n < m.MinRows {
		m.MinRows = n
	}
	if n > m.MaxRows {
		m.MaxRows = n
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeRows bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeRows && m.TotalRows > 0 {
		total := m.TotalRows
		avg := float64(m.TotalRows) / float64(m.Count)
		min := m.MinRows
		max := m.MaxRows

		// Reset sentinel values for display
		if min == math.MaxInt64 {
			min = 0
		}

		snap.TotalRows = &total
		snap.AvgRows = &avg
		snap.MinRows = &min
		snap.MaxRows = &max
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Train:         snapshotOp(c.ops[OpTrain], false),
		Predict:       snapshotOp(c.ops[OpPredict], false),
		Score:         snapshotOp(c.ops[OpScore], false),
		Merge:         snapshotOp(c.ops[OpMerge], true),
		Persist:       snapshotOp(c.ops[OpPersist], true),
	}
}
