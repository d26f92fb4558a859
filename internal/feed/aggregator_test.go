package feed

import (
	"testing"
	"time"

	"github.com/jarrettlin/execcore/internal/domain"
)

func barAt(t time.Time, open, high, low, close float64, vol int64) domain.Bar {
	return domain.Bar{StartTime: t, Open: open, High: high, Low: low, Close: close, Volume: vol}
}

func TestAggregatorFoldsWithinBucket(t *testing.T) {
	base := time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC)
	a := newAggregator()

	if closed := a.Add(barAt(base, 10, 11, 9, 10.5, 100)); closed != nil {
		t.Fatalf("first bar should not close a bucket, got %v", closed)
	}
	if closed := a.Add(barAt(base.Add(5*time.Second), 10.5, 12, 9.5, 11, 50)); closed != nil {
		t.Fatalf("bar within the same bucket should not close it, got %v", closed)
	}

	last, ok := a.Last()
	if ok {
		t.Fatalf("no bucket has closed yet, Last() should report false, got %v", last)
	}
}

func TestAggregatorClosesBucketOnRollover(t *testing.T) {
	bucketStart := time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC)
	a := newAggregator()

	a.Add(barAt(bucketStart, 10, 11, 9, 10.5, 100))
	a.Add(barAt(bucketStart.Add(time.Minute), 10.5, 12, 9.5, 11, 50))

	next := bucketStart.Add(5 * time.Minute)
	closed := a.Add(barAt(next, 11, 11.2, 10.9, 11.1, 30))
	if len(closed) != 1 {
		t.Fatalf("expected exactly one closed bar, got %d", len(closed))
	}

	bar := closed[0]
	if !bar.StartTime.Equal(bucketStart) {
		t.Errorf("StartTime = %v, want %v", bar.StartTime, bucketStart)
	}
	if bar.Open != 10 {
		t.Errorf("Open = %v, want 10 (from the first bar in the bucket)", bar.Open)
	}
	if bar.High != 12 {
		t.Errorf("High = %v, want 12 (max across the bucket)", bar.High)
	}
	if bar.Low != 9 {
		t.Errorf("Low = %v, want 9 (min across the bucket)", bar.Low)
	}
	if bar.Close != 11 {
		t.Errorf("Close = %v, want 11 (from the last bar in the bucket)", bar.Close)
	}
	if bar.Volume != 150 {
		t.Errorf("Volume = %d, want 150 (summed across the bucket)", bar.Volume)
	}
	if bar.TimestepMinutes != 5 {
		t.Errorf("TimestepMinutes = %d, want 5", bar.TimestepMinutes)
	}

	last, ok := a.Last()
	if !ok || !last.StartTime.Equal(bucketStart) {
		t.Errorf("Last() should report the just-closed bucket, got %v, ok=%v", last, ok)
	}
}

func TestAggregatorOnlyClosesTheAccumulatingBucketAcrossAGap(t *testing.T) {
	bucketStart := time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC)
	a := newAggregator()
	a.Add(barAt(bucketStart, 10, 10, 10, 10, 10))

	// Skip several buckets ahead rather than the immediate next one.
	farBucket := bucketStart.Add(20 * time.Minute)
	closed := a.Add(barAt(farBucket, 20, 20, 20, 20, 5))

	if len(closed) != 1 {
		t.Fatalf("expected exactly one closed bar even across a multi-bucket gap, got %d", len(closed))
	}
	if !closed[0].StartTime.Equal(bucketStart) {
		t.Errorf("the closed bar should be the one that was accumulating, got StartTime=%v", closed[0].StartTime)
	}
}
