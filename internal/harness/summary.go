package harness

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mlheats/heats/internal/record"
)

// SummaryRow ranks one classifier's totals on one test set.
type SummaryRow struct {
	Classifier   string  `json:"classifier"`
	ClassifierID string  `json:"classifier_id"`
	TestSet      string  `json:"test_set"`
	JobID        string  `json:"job_id"`
	F1           float64 `json:"f1"`
	Accuracy     float64 `json:"accuracy"`
	Iterations   int     `json:"iterations"`
}

// Summary ranks every totals row currently in the prediction log, best
// F1 first.
func (h *Harness) Summary() []SummaryRow {
	return SummaryFromTables(h.predictionLog, h.trainingLog)
}

// SummaryFromTables builds a ranking from a prediction log and, when
// train is non-nil, annotates each row with the iteration count logged
// for its classifier instance. It works both on live tables and on
// tables read back from CSV, where every cell is a string.
func SummaryFromTables(pred, train *record.Table) []SummaryRow {
	iterations := map[string]int{}
	if train != nil {
		for _, row := range train.Rows() {
			iterations[cellString(row["classifier_id"])]++
		}
	}

	var rows []SummaryRow
	for _, row := range pred.Rows() {
		if cellString(row["label"]) != TotalsLabel {
			continue
		}
		f1, _ := record.Float(row["f1"])
		acc, _ := record.Float(row["accuracy"])
		id := cellString(row["classifier_id"])
		rows = append(rows, SummaryRow{
			Classifier:   cellString(row["classifier_name"]),
			ClassifierID: id,
			TestSet:      cellString(row["test_set_id"]),
			JobID:        cellString(row["job_id"]),
			F1:           f1,
			Accuracy:     acc,
			Iterations:   iterations[id],
		})
	}

	slices.SortFunc(rows, func(a, b SummaryRow) int {
		if c := cmp.Compare(b.F1, a.F1); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Classifier, b.Classifier); c != 0 {
			return c
		}
		return cmp.Compare(a.TestSet, b.TestSet)
	})
	return rows
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
