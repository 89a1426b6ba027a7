package timeseries

import "sync"

// Queue is a multi-producer, single-consumer sink of pending datapoints
type Queue interface {
	// Add appends datapoints and returns how many were accepted
	Add(points ...Datapoint) int

	// Drain removes and returns up to max datapoints in insertion order.
	// A max of zero or less drains everything.
	Drain(max int) []Datapoint

	// Discard drops every pending datapoint and returns how many were dropped
	Discard() int

	// Len returns the number of pending datapoints
	Len() int
}

// MemQueue is an in-memory implementation of Queue
type MemQueue struct {
	mu     sync.Mutex
	points []Datapoint
	config Config
	health *HealthMetrics
}

// NewMemQueue creates a new in-memory queue with the given configuration
func NewMemQueue(config Config) *MemQueue {
	return NewMemQueueWithHealth(config, NewHealthMetrics())
}

// NewMemQueueWithHealth creates a new in-memory queue with custom health metrics
func NewMemQueueWithHealth(config Config, health *HealthMetrics) *MemQueue {
	health.SetLimit(config.MaxQueuedPoints)

	return &MemQueue{
		config: config,
		health: health,
	}
}

// Add appends datapoints, rejecting those that would exceed the configured cap
func (q *MemQueue) Add(points ...Datapoint) int {
	if len(points) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	accepted := len(points)
	if limit := q.config.MaxQueuedPoints; limit > 0 {
		room := limit - len(q.points)
		if room < 0 {
			room = 0
		}
		if accepted > room {
			accepted = room
		}
	}

	q.points = append(q.points, points[:accepted]...)
	q.health.RecordAdded(accepted)
	if dropped := len(points) - accepted; dropped > 0 {
		q.health.RecordDropped(dropped)
	}
	q.health.SetDepth(len(q.points))
	return accepted
}

// Drain removes and returns up to max datapoints from the head of the queue
func (q *MemQueue) Drain(max int) []Datapoint {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.points)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]Datapoint, n)
	copy(out, q.points[:n])

	remaining := len(q.points) - n
	if remaining == 0 {
		q.points = nil
	} else {
		// Shift instead of reslicing so the backing array does not pin drained points.
		copy(q.points, q.points[n:])
		q.points = q.points[:remaining]
	}

	q.health.RecordDrained(n)
	q.health.SetDepth(len(q.points))
	return out
}

// Discard drops every pending datapoint
func (q *MemQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.points)
	q.points = nil
	if n > 0 {
		q.health.RecordDropped(n)
	}
	q.health.SetDepth(0)
	return n
}

// Len returns the number of pending datapoints
func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.points)
}

// GetHealthSnapshot returns a snapshot of current health metrics
func (q *MemQueue) GetHealthSnapshot() HealthSnapshot {
	return q.health.GetSnapshot()
}
