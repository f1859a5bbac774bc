package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Times aggregates invocation latencies for the bench harness.
// Thread-safe; the zero value is ready to use.
type Times struct {
	mu    sync.Mutex
	count int64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

// TimesSnapshot is an immutable view of a Times aggregate.
type TimesSnapshot struct {
	Count int64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

// Add records one observed latency.
func (t *Times) Add(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	t.sum += d
	t.count++
}

// Snapshot returns the current aggregate. Mean is zero when no
// latencies have been recorded.
func (t *Times) Snapshot() TimesSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := TimesSnapshot{Count: t.count, Sum: t.sum, Min: t.min, Max: t.max}
	if t.count > 0 {
		s.Mean = t.sum / time.Duration(t.count)
	}
	return s
}

// String formats the aggregate as "MEAN (min: MIN, max: MAX)" with
// millisecond precision, the shape the bench harness prints.
func (t *Times) String() string {
	s := t.Snapshot()
	if s.Count == 0 {
		return "no samples"
	}
	ms := func(d time.Duration) string {
		return fmt.Sprintf("%gms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%s (min: %s, max: %s)", ms(s.Mean), ms(s.Min), ms(s.Max))
}
