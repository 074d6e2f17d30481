package app

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks event dispatch and asset mutation counts.
type Metrics struct {
	mu sync.Mutex

	// Per event name dispatch timing
	events map[string]*eventStats

	// Asset mutations
	created atomic.Uint64
	updated atomic.Uint64
	deleted atomic.Uint64

	// Start time for uptime calculation
	startTime time.Time
}

type eventStats struct {
	count   uint64
	totalNs int64
	maxNs   int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		events:    make(map[string]*eventStats),
		startTime: time.Now(),
	}
}

// RecordEvent records how long one broadcast of event took.
func (m *Metrics) RecordEvent(event string, duration time.Duration) {
	ns := duration.Nanoseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.events[event]
	if !ok {
		s = &eventStats{}
		m.events[event] = s
	}
	s.count++
	s.totalNs += ns
	if ns > s.maxNs {
		s.maxNs = ns
	}
}

// RecordCreated counts a created asset.
func (m *Metrics) RecordCreated() { m.created.Add(1) }

// RecordUpdated counts an updated asset.
func (m *Metrics) RecordUpdated() { m.updated.Add(1) }

// RecordDeleted counts a deleted asset.
func (m *Metrics) RecordDeleted() { m.deleted.Add(1) }

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	events := make([]EventMetrics, 0, len(m.events))
	var total uint64
	for name, s := range m.events {
		var avg int64
		if s.count > 0 {
			avg = s.totalNs / int64(s.count)
		}
		events = append(events, EventMetrics{
			Event: name,
			Count: s.count,
			AvgNs: avg,
			MaxNs: s.maxNs,
		})
		total += s.count
	}
	m.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Event < events[j].Event })

	return MetricsSnapshot{
		Uptime:        time.Since(m.startTime),
		EventCount:    total,
		Events:        events,
		AssetsCreated: m.created.Load(),
		AssetsUpdated: m.updated.Load(),
		AssetsDeleted: m.deleted.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	m.events = make(map[string]*eventStats)
	m.startTime = time.Now()
	m.mu.Unlock()

	m.created.Store(0)
	m.updated.Store(0)
	m.deleted.Store(0)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Uptime        time.Duration
	EventCount    uint64
	Events        []EventMetrics // sorted by event name
	AssetsCreated uint64
	AssetsUpdated uint64
	AssetsDeleted uint64
}

// EventMetrics holds dispatch statistics for one event name.
type EventMetrics struct {
	Event string
	Count uint64
	AvgNs int64
	MaxNs int64
}

// Event returns the statistics for name.
func (s MetricsSnapshot) Event(name string) (EventMetrics, bool) {
	for _, e := range s.Events {
		if e.Event == name {
			return e, true
		}
	}
	return EventMetrics{}, false
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer starts a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
