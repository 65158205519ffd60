package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpTrain, 10*time.Millisecond)
	c.RecordTiming(OpTrain, 30*time.Millisecond)

	snap := c.Snapshot()
	if snap.Train == nil {
		t.Fatal("Train snapshot is nil")
	}
	if snap.Train.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Train.Count)
	}
	if snap.Train.MinTimeMs != 10 || snap.Train.MaxTimeMs != 30 {
		t.Errorf("min/max = %d/%d, want 10/30", snap.Train.MinTimeMs, snap.Train.MaxTimeMs)
	}
	if snap.Train.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %v, want 20", snap.Train.AvgTimeMs)
	}
	if snap.Predict != nil {
		t.Error("Predict snapshot should be nil with no data")
	}
}

func TestRecordBatch(t *testing.T) {
	c := NewCollector()
	c.RecordBatch(OpMerge, 5*time.Millisecond, 3)
	c.RecordBatch(OpMerge, 5*time.Millisecond, 7)

	snap := c.Snapshot()
	if snap.Merge == nil {
		t.Fatal("Merge snapshot is nil")
	}
	if snap.Merge.TotalRows == nil || *snap.Merge.TotalRows != 10 {
		t.Fatalf("TotalRows = %v, want 10", snap.Merge.TotalRows)
	}
	if *snap.Merge.MinRows != 3 || *snap.Merge.MaxRows != 7 {
		t.Errorf("min/max rows = %d/%d, want 3/7", *snap.Merge.MinRows, *snap.Merge.MaxRows)
	}
	if *snap.Merge.AvgRows != 5 {
		t.Errorf("AvgRows = %v, want 5", *snap.Merge.AvgRows)
	}
}

func TestSnapshot_EmptyCollector(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()
	if snap.Train != nil || snap.Predict != nil || snap.Score != nil || snap.Merge != nil || snap.Persist != nil {
		t.Error("empty collector should produce nil operation snapshots")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %v", snap.UptimeSeconds)
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpPredict, time.Millisecond)
				c.RecordBatch(OpPersist, time.Millisecond, 1)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Predict.Count != 1000 {
		t.Errorf("Predict.Count = %d, want 1000", snap.Predict.Count)
	}
	if *snap.Persist.TotalRows != 1000 {
		t.Errorf("Persist.TotalRows = %d, want 1000", *snap.Persist.TotalRows)
	}
}
