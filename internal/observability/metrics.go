package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters for the ticket core.
type Metrics struct {
	mu                  sync.Mutex
	allocations         int64
	degradedAllocations int64
	lockTimeouts        int64
	corruptionResets    int64
	slaBreaches         map[string]int64
	versionConflicts    int64
	errorCount          map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		slaBreaches: make(map[string]int64),
		errorCount:  make(map[string]int64),
	}
}

// RecordAllocation counts an id allocation, degraded or not.
func (m *Metrics) RecordAllocation(degraded bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations++
	if degraded {
		m.degradedAllocations++
	}
}

// RecordLockTimeout counts a lock acquisition that ran out its wait budget.
func (m *Metrics) RecordLockTimeout() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockTimeouts++
}

// RecordCorruptionReset counts a store entry that was reset after failing to deserialize.
func (m *Metrics) RecordCorruptionReset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptionResets++
}

// RecordSLABreach counts a breach by reason ("response" or "resolution").
func (m *Metrics) RecordSLABreach(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaBreaches[reason]++
}

// RecordVersionConflict counts a rejected stale overwrite.
func (m *Metrics) RecordVersionConflict() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versionConflicts++
}

// RecordError increments per-route error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot returns a copy of the counters for the statistics endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{
		"allocations":          m.allocations,
		"degraded_allocations": m.degradedAllocations,
		"lock_timeouts":        m.lockTimeouts,
		"corruption_resets":    m.corruptionResets,
		"version_conflicts":    m.versionConflicts,
	}
	for reason, n := range m.slaBreaches {
		out["sla_breach_"+reason] = n
	}
	return out
}
