// Package diagnostics reports the process's own resource usage
// periodically, trimmed from the reference's cross-platform system monitor
// down to the handful of fields useful for watching one long-lived peer
// connection.
package diagnostics

import (
	"runtime"
	"time"
)

// Snapshot is a point-in-time read of process health.
type Snapshot struct {
	Uptime       time.Duration `json:"uptime"`
	NumGoroutine int           `json:"num_goroutine"`
	HeapAlloc    uint64        `json:"heap_alloc"`
	HeapObjects  uint64        `json:"heap_objects"`
	NumGC        uint32        `json:"num_gc"`
}

// Monitor samples runtime.MemStats against a fixed start time.
type Monitor struct {
	startTime time.Time
}

// NewMonitor creates a Monitor whose uptime is measured from now.
func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// Sample returns a fresh Snapshot.
func (m *Monitor) Sample() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Snapshot{
		Uptime:       time.Since(m.startTime),
		NumGoroutine: runtime.NumGoroutine(),
		HeapAlloc:    ms.HeapAlloc,
		HeapObjects:  ms.HeapObjects,
		NumGC:        ms.NumGC,
	}
}
