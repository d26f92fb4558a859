package feed

import (
	"time"

	"github.com/jarrettlin/execcore/internal/domain"
)

const fiveMinutes = 5 * time.Minute

// aggregator folds a contract's 5-second realtime bars into 5-minute bars,
// the same bucket-rollover shape as the original's on_new_5sec_bar: a bar
// belongs to the 5-minute bucket its start time truncates down to, and a
// bucket is considered closed the moment a bar from the next bucket
// arrives.
type aggregator struct {
	bucketStart time.Time
	open        float64
	high        float64
	low         float64
	close       float64
	volume      int64
	hasBucket   bool

	last domain.Bar
	hasLast bool
}

func newAggregator() *aggregator {
	return &aggregator{}
}

// Add folds one 5-second bar in and returns the 5-minute bar that closed as
// a result, if any. A gap in the 5-second stream that spans more than one
// bucket only closes the bucket that was actually accumulating data; the
// empty buckets in between are left for the gap-detection/backfill path
// rather than fabricated here.
func (a *aggregator) Add(bar domain.Bar) []domain.Bar {
	bucket := bar.StartTime.Truncate(fiveMinutes)

	if !a.hasBucket {
		a.startBucket(bucket, bar)
		return nil
	}

	if bucket.Equal(a.bucketStart) {
		a.fold(bar)
		return nil
	}

	closed := a.finish(a.bucketStart)
	a.startBucket(bucket, bar)
	return []domain.Bar{closed}
}

func (a *aggregator) startBucket(bucket time.Time, bar domain.Bar) {
	a.bucketStart = bucket
	a.open = bar.Open
	a.high = bar.High
	a.low = bar.Low
	a.close = bar.Close
	a.volume = bar.Volume
	a.hasBucket = true
}

func (a *aggregator) fold(bar domain.Bar) {
	if bar.High > a.high {
		a.high = bar.High
	}
	if bar.Low < a.low {
		a.low = bar.Low
	}
	a.close = bar.Close
	a.volume += bar.Volume
}

func (a *aggregator) finish(bucketStart time.Time) domain.Bar {
	bar := domain.Bar{
		TimestepMinutes: 5,
		StartTime:       bucketStart,
		Open:            a.open,
		High:            a.high,
		Low:             a.low,
		Close:           a.close,
		Volume:          a.volume,
	}
	a.last = bar
	a.hasLast = true
	return bar
}

// Last returns the most recently closed 5-minute bar, used by CurrentPrice
// to serve a live-subscription price without touching the cache.
func (a *aggregator) Last() (domain.Bar, bool) {
	return a.last, a.hasLast
}
