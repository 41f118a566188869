// Package usage implements the usage tracker of spec §4.8: per-chunk
// execution/error counts and a 100-sample moving average of execution
// time, with a hot-path flag once a chunk's execution count exceeds
// 1,000. Grounded on original_source/rust/fluentai-vm/src/vm.rs's
// UsageTracker; the bounded LRU cache backing the per-chunk table is
// grounded on go-probeum's own use of hashicorp/golang-lru.
package usage

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru"
)

const hotPathThreshold = 1000
const movingAverageWindow = 100

// Stats is one chunk's usage record.
type Stats struct {
	mu         sync.Mutex
	ExecCount  int64
	ErrorCount int64
	samples    []int64 // last-100 execution times, nanoseconds
	sampleSum  int64
	IsHotPath  bool
}

func newStats() *Stats { return &Stats{} }

// RecordExecution appends one execution's wall time to the moving
// average and flips IsHotPath once ExecCount exceeds the threshold
// (spec §4.8, §8 property 8).
func (s *Stats) RecordExecution(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExecCount++
	if s.ExecCount > hotPathThreshold {
		s.IsHotPath = true
	}
	ns := d.Nanoseconds()
	s.samples = append(s.samples, ns)
	s.sampleSum += ns
	if len(s.samples) > movingAverageWindow {
		s.sampleSum -= s.samples[0]
		s.samples = s.samples[1:]
	}
}

func (s *Stats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorCount++
}

func (s *Stats) AverageNanos() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return 0
	}
	return s.sampleSum / int64(len(s.samples))
}

func (s *Stats) Snapshot() (execCount, errorCount int64, avgNanos int64, hot bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg := int64(0)
	if len(s.samples) > 0 {
		avg = s.sampleSum / int64(len(s.samples))
	}
	return s.ExecCount, s.ErrorCount, avg, s.IsHotPath
}

// String renders a human-readable summary using dustin/go-humanize,
// matching the ambient-stack style pulled from estevaofon-noxy and
// wudi-hey's shared dependency on that library.
func (s *Stats) String() string {
	exec, errs, avg, hot := s.Snapshot()
	return humanize.Comma(exec) + " execs, " + humanize.Comma(errs) + " errors, avg " +
		time.Duration(avg).String() + ", hot=" + humanizeBool(hot)
}

func humanizeBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Tracker owns a bounded LRU of per-chunk Stats, keyed by chunk id. The
// bound exists purely for memory hygiene across a long-lived VM that
// loads many module chunks; an evicted chunk simply restarts its
// counters (no correctness dependency on retention).
type Tracker struct {
	cache *lru.Cache
}

func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 4096
	}
	c, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors on a non-positive size, already guarded above.
		panic(err)
	}
	return &Tracker{cache: c}
}

func (t *Tracker) Stats(chunkID int) *Stats {
	if v, ok := t.cache.Get(chunkID); ok {
		return v.(*Stats)
	}
	s := newStats()
	t.cache.Add(chunkID, s)
	return s
}

func (t *Tracker) IsHotPath(chunkID int) bool {
	s := t.Stats(chunkID)
	_, _, _, hot := s.Snapshot()
	return hot
}
