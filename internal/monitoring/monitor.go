package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps the point-in-time counters reported by the health endpoint
type Monitor struct {
	counters     map[string]int64
	lastEvent    map[string]time.Time
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		counters:  make(map[string]int64),
		lastEvent: make(map[string]time.Time),
		startTime: time.Now(),
	}
}

// Inc bumps a named counter and remembers when it last changed
func (m *Monitor) Inc(name string) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.counters[name]++
	m.lastEvent[name] = time.Now()
}

// Count returns a counter value
func (m *Monitor) Count(name string) int64 {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()
	return m.counters[name]
}

// Snapshot returns all counters plus uptime
func (m *Monitor) Snapshot() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	snapshot := make(map[string]interface{}, len(m.counters)+2)
	for k, v := range m.counters {
		snapshot[k] = v
	}
	var last time.Time
	for _, at := range m.lastEvent {
		if at.After(last) {
			last = at
		}
	}
	if !last.IsZero() {
		snapshot["last_event_at"] = last.UTC().Format(time.RFC3339)
	}
	snapshot["uptime_seconds"] = time.Since(m.startTime).Seconds()
	return snapshot
}

// Reset clears all counters
func (m *Monitor) Reset() {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.counters = make(map[string]int64)
	m.lastEvent = make(map[string]time.Time)
}
