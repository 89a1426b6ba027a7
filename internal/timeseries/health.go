package timeseries

import (
	"sync/atomic"
	"time"

	"github.com/aaronlmathis/mesos-stats/internal/metrics"
)

// HealthMetrics tracks lifetime counters for a datapoint queue
type HealthMetrics struct {
	totalAdded   int64 // Datapoints accepted (lifetime)
	totalDrained int64 // Datapoints handed to a consumer (lifetime)
	totalDropped int64 // Datapoints rejected by the cap or discarded
	depth        int64 // Current pending datapoints
	limit        int64 // Maximum pending datapoints, 0 for unbounded
}

// NewHealthMetrics creates a new health metrics tracker
func NewHealthMetrics() *HealthMetrics {
	return &HealthMetrics{}
}

// SetLimit configures the queue cap reported in snapshots
func (h *HealthMetrics) SetLimit(limit int) {
	atomic.StoreInt64(&h.limit, int64(limit))
}

// RecordAdded records accepted datapoints
func (h *HealthMetrics) RecordAdded(n int) {
	atomic.AddInt64(&h.totalAdded, int64(n))
	metrics.RecordDatapointsQueued(n)
}

// RecordDrained records datapoints removed by a consumer
func (h *HealthMetrics) RecordDrained(n int) {
	atomic.AddInt64(&h.totalDrained, int64(n))
}

// RecordDropped records datapoints that never reached a consumer
func (h *HealthMetrics) RecordDropped(n int) {
	atomic.AddInt64(&h.totalDropped, int64(n))
	metrics.RecordDatapointsDropped(n)
}

// SetDepth records the current queue depth
func (h *HealthMetrics) SetDepth(n int) {
	atomic.StoreInt64(&h.depth, int64(n))
	metrics.SetQueueDepth(n)
}

// GetSnapshot returns a snapshot of current health metrics
func (h *HealthMetrics) GetSnapshot() HealthSnapshot {
	return HealthSnapshot{
		TotalAdded:   atomic.LoadInt64(&h.totalAdded),
		TotalDrained: atomic.LoadInt64(&h.totalDrained),
		TotalDropped: atomic.LoadInt64(&h.totalDropped),
		Depth:        atomic.LoadInt64(&h.depth),
		Limit:        atomic.LoadInt64(&h.limit),
		Timestamp:    time.Now(),
	}
}

// HealthSnapshot represents a point-in-time snapshot of queue health
type HealthSnapshot struct {
	TotalAdded   int64     `json:"total_added"`
	TotalDrained int64     `json:"total_drained"`
	TotalDropped int64     `json:"total_dropped"`
	Depth        int64     `json:"depth"`
	Limit        int64     `json:"limit"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsHealthy returns false when the queue is close to its cap
func (s HealthSnapshot) IsHealthy() bool {
	if s.Limit > 0 && float64(s.Depth)/float64(s.Limit) > 0.9 {
		return false
	}
	return true
}

// GetStatus returns a human-readable status string
func (s HealthSnapshot) GetStatus() string {
	if s.IsHealthy() {
		return "healthy"
	}
	return "warning: approaching queue limit"
}
