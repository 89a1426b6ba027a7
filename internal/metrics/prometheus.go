package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics describing the agent itself
var (
	// Admin HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesos_stats_http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mesos_stats_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// Collection cycle metrics
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesos_stats_cycles_total",
			Help: "Total number of collection cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mesos_stats_cycle_duration_seconds",
			Help:    "Collection cycle duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90}, // 1s to 90s
		},
		[]string{"outcome"},
	)

	lastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mesos_stats_last_cycle_timestamp_seconds",
			Help: "Unix time at which the last collection cycle finished",
		},
	)

	// Upstream fetch metrics
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mesos_stats_fetch_duration_seconds",
			Help:    "Duration of upstream JSON fetches",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0}, // 50ms to 20s
		},
		[]string{"target"},
	)

	fetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesos_stats_fetch_errors_total",
			Help: "Total number of failed upstream JSON fetches",
		},
		[]string{"target"},
	)

	leaderElections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesos_stats_leader_selections_total",
			Help: "Total number of leader selection runs",
		},
	)

	clusterNodesReachable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mesos_stats_nodes_reachable",
			Help: "Number of nodes that answered in the last cycle",
		},
	)

	clusterNodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mesos_stats_nodes_total",
			Help: "Number of nodes listed by the leader in the last cycle",
		},
	)

	// Queue and delivery metrics
	datapointsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesos_stats_datapoints_queued_total",
			Help: "Total number of datapoints accepted into the queue",
		},
	)

	datapointsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesos_stats_datapoints_dropped_total",
			Help: "Total number of datapoints dropped before delivery",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mesos_stats_queue_depth",
			Help: "Current number of pending datapoints",
		},
	)

	datapointsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesos_stats_datapoints_sent_total",
			Help: "Total number of datapoints delivered to carbon",
		},
		[]string{"protocol"},
	)

	deliveryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesos_stats_delivery_retries_total",
			Help: "Total number of chunk resends after a reconnect",
		},
		[]string{"protocol"},
	)

	deliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesos_stats_delivery_failures_total",
			Help: "Total number of deliveries aborted after a failed retry",
		},
		[]string{"protocol"},
	)
)

// RecordHTTPRequest records metrics for admin HTTP requests
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(statusCode),
	}

	httpRequestsTotal.With(labels).Inc()
	httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// RecordCycle records the outcome of one collection cycle
func RecordCycle(outcome string, duration time.Duration) {
	labels := prometheus.Labels{"outcome": outcome}
	cyclesTotal.With(labels).Inc()
	cycleDuration.With(labels).Observe(duration.Seconds())
	lastCycleTimestamp.SetToCurrentTime()
}

// RecordFetch records one upstream fetch
func RecordFetch(target string, duration time.Duration, hasError bool) {
	fetchDuration.With(prometheus.Labels{"target": target}).Observe(duration.Seconds())

	if hasError {
		fetchErrors.With(prometheus.Labels{"target": target}).Inc()
	}
}

// RecordLeaderSelection records a leader selection run
func RecordLeaderSelection() {
	leaderElections.Inc()
}

// UpdateNodeCounts updates node reachability gauges
func UpdateNodeCounts(reachable, total int) {
	clusterNodesReachable.Set(float64(reachable))
	clusterNodesTotal.Set(float64(total))
}

// RecordDatapointsQueued records datapoints accepted into the queue
func RecordDatapointsQueued(n int) {
	if n > 0 {
		datapointsQueued.Add(float64(n))
	}
}

// RecordDatapointsDropped records datapoints dropped before delivery
func RecordDatapointsDropped(n int) {
	if n > 0 {
		datapointsDropped.Add(float64(n))
	}
}

// SetQueueDepth updates the current queue depth
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordDatapointsSent records datapoints written to carbon
func RecordDatapointsSent(protocol string, n int) {
	if n > 0 {
		datapointsSent.With(prometheus.Labels{"protocol": protocol}).Add(float64(n))
	}
}

// RecordDeliveryRetry records a reconnect-and-resend
func RecordDeliveryRetry(protocol string) {
	deliveryRetries.With(prometheus.Labels{"protocol": protocol}).Inc()
}

// RecordDeliveryFailure records a delivery aborted after its retry failed
func RecordDeliveryFailure(protocol string) {
	deliveryFailures.With(prometheus.Labels{"protocol": protocol}).Inc()
}
