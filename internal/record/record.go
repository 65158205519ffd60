// Package record holds flat metric rows and the append-only tables that
// aggregate them across jobs.
package record

import (
	"fmt"
	"strconv"
	"time"
)

// Record is one flat metric row keyed by column name. Values are written
// once when the row is built and treated as immutable afterwards.
type Record map[string]any

// Merge returns a new record combining the given records in order.
// Later records win on key collisions.
func Merge(records ...Record) Record {
	size := 0
	for _, r := range records {
		size += len(r)
	}
	out := make(Record, size)
	for _, r := range records {
		for k, v := range r {
			out[k] = v
		}
	}
	return out
}

// Float coerces a cell value to float64. Returns false for values that
// have no numeric reading, including empty strings from parsed CSV.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// formatCell renders a value for CSV output. The mapping is deterministic
// so that saving an unchanged table twice produces identical bytes.
func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case time.Time:
		return c.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'g', -1, 32)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case int32:
		return strconv.FormatInt(int64(c), 10)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprintf("%v", c)
	}
}
