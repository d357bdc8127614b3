// Package telemetry holds in-memory counters for search latency,
// indexing duration, cache hits/misses and blocks decoded, read back
// through Snapshot; it does not log. Index.Search records search
// latency; nothing in the module calls the other recorders.
//
// Adapted from the teacher's performance.go PerformanceMonitor
// (bounded latency history, cache hit rate, GetMetrics snapshot).
package telemetry

import (
	"sync"
	"time"
)

// Monitor aggregates search and indexing performance counters for one
// index's lifetime.
type Monitor struct {
	mu sync.RWMutex

	searchLatencies []time.Duration
	indexingTimes   []time.Duration
	cacheHits       int64
	cacheMisses     int64
	blocksDecoded   int64
	startTime       time.Time
}

// NewMonitor returns a Monitor with its uptime clock starting now.
func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// RecordSearchLatency records one query's end-to-end latency, keeping
// only the most recent 1000 samples.
func (m *Monitor) RecordSearchLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchLatencies = append(m.searchLatencies, d)
	if len(m.searchLatencies) > 1000 {
		m.searchLatencies = m.searchLatencies[len(m.searchLatencies)-1000:]
	}
}

// RecordIndexingDuration records one build's wall-clock time, keeping
// only the most recent 100 samples.
func (m *Monitor) RecordIndexingDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexingTimes = append(m.indexingTimes, d)
	if len(m.indexingTimes) > 100 {
		m.indexingTimes = m.indexingTimes[len(m.indexingTimes)-100:]
	}
}

// RecordCacheHit records a postings.BlockCache hit.
func (m *Monitor) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

// RecordCacheMiss records a postings.BlockCache miss.
func (m *Monitor) RecordCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

// RecordBlocksDecoded accumulates the number of postings blocks
// decoded while answering a query, useful for confirming a
// dynamic-pruning algorithm skipped work an exhaustive scan would not.
func (m *Monitor) RecordBlocksDecoded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocksDecoded += int64(n)
}

// Snapshot is a point-in-time read of the monitor's counters.
type Snapshot struct {
	Uptime             time.Duration
	CacheHits          int64
	CacheMisses        int64
	CacheHitRate       float64
	BlocksDecoded      int64
	TotalSearches      int
	AvgSearchLatency   time.Duration
	TotalIndexingRuns  int
	AvgIndexingLatency time.Duration
}

// Snapshot returns the monitor's current metrics.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Uptime:        time.Since(m.startTime),
		CacheHits:     m.cacheHits,
		CacheMisses:   m.cacheMisses,
		BlocksDecoded: m.blocksDecoded,
	}
	if total := m.cacheHits + m.cacheMisses; total > 0 {
		s.CacheHitRate = float64(m.cacheHits) / float64(total)
	}
	if n := len(m.searchLatencies); n > 0 {
		var total time.Duration
		for _, l := range m.searchLatencies {
			total += l
		}
		s.TotalSearches = n
		s.AvgSearchLatency = total / time.Duration(n)
	}
	if n := len(m.indexingTimes); n > 0 {
		var total time.Duration
		for _, d := range m.indexingTimes {
			total += d
		}
		s.TotalIndexingRuns = n
		s.AvgIndexingLatency = total / time.Duration(n)
	}
	return s
}
