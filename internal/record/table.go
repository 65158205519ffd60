package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"sort"
	"sync"
)

// Table is an append-only aggregate log. Columns keep first-seen order;
// keys introduced by later rows are appended to the right. Appends happen
// only on the owning coordinator goroutine, the lock exists so HTTP
// handlers and the summary view can read while a drain is merging.
type Table struct {
	mu      sync.RWMutex
	columns []string
	seen    map[string]struct{}
	rows    []Record
}

// NewTable creates a table seeded with the given base columns.
func NewTable(columns ...string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		seen:    make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		if _, ok := t.seen[c]; ok {
			continue
		}
		t.seen[c] = struct{}{}
		t.columns = append(t.columns, c)
	}
	return t
}

// AppendBatch appends all rows under a single lock acquisition, so one
// job's rows always occupy contiguous indices. Unseen keys join the
// column order, sorted within each row for determinism.
func (t *Table) AppendBatch(rows []Record) {
	if len(rows) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		var fresh []string
		for k := range row {
			if _, ok := t.seen[k]; !ok {
				fresh = append(fresh, k)
			}
		}
		if len(fresh) > 0 {
			sort.Strings(fresh)
			for _, k := range fresh {
				t.seen[k] = struct{}{}
				t.columns = append(t.columns, k)
			}
		}
		t.rows = append(t.rows, maps.Clone(row))
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Columns returns a copy of the column order.
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Rows returns shallow copies of all rows.
func (t *Table) Rows() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = maps.Clone(r)
	}
	return out
}

// WriteCSV writes a header row followed by every data row. Cells a row
// does not carry are left empty.
func (t *Table) WriteCSV(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cells := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, col := range t.columns {
			v, ok := row[col]
			if !ok {
				cells[i] = ""
				continue
			}
			cells[i] = formatCell(v)
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV rewrites the file at path in full. Unchanged tables produce
// byte-identical files on repeated calls.
func (t *Table) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadCSVFile loads a table from a file written by SaveCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV loads a table previously written by WriteCSV. All cells come
// back as strings; empty cells are omitted from the row.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header row")
	}
	t := NewTable(records[0]...)
	rows := make([]Record, 0, len(records)-1)
	for _, cells := range records[1:] {
		row := make(Record, len(cells))
		for i, cell := range cells {
			if cell == "" || i >= len(t.columns) {
				continue
			}
			row[t.columns[i]] = cell
		}
		rows = append(rows, row)
	}
	t.rows = rows
	return t, nil
}
