// Package collector runs the fixed-period collection loop: gather Mesos and
// Singularity state, map it to datapoints, and deliver them to carbon before
// the next cycle starts.
package collector

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronlmathis/mesos-stats/internal/carbon"
	"github.com/aaronlmathis/mesos-stats/internal/fetch"
	"github.com/aaronlmathis/mesos-stats/internal/mapper"
	"github.com/aaronlmathis/mesos-stats/internal/mesos"
	"github.com/aaronlmathis/mesos-stats/internal/metrics"
	"github.com/aaronlmathis/mesos-stats/internal/singularity"
	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
)

// ErrPanic wraps a panic recovered inside a cycle
var ErrPanic = errors.New("cycle panicked")

// Cycle outcomes, also used as metric labels
const (
	OutcomeOK             = "ok"
	OutcomeEmpty          = "empty"
	OutcomeNoLeader       = "no_leader"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeFailed         = "failed"
)

// ClusterSource is the Mesos side of a cycle. *mesos.Client satisfies it.
type ClusterSource interface {
	Reset()
	Update(ctx context.Context) error
	Snapshot() mesos.ClusterSnapshot
	NodeMetrics() map[string]mesos.NodeSnapshot
	Executors() map[string][]mesos.ExecutorRecord
}

// ClusterFactory builds the ClusterSource. It is retried every cycle until it
// succeeds.
type ClusterFactory func(ctx context.Context) (ClusterSource, error)

// SchedulerSource is the Singularity side of a cycle. *singularity.Client
// satisfies it.
type SchedulerSource interface {
	Reset()
	Update(ctx context.Context) error
	State() singularity.State
	TaskLookup() map[string]string
}

// Deliverer drains the queue to carbon. *carbon.Sender satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, queue timeseries.Queue, ioTimeout time.Duration) (int, error)
}

// Config holds configuration for the collection loop
type Config struct {
	Period time.Duration `yaml:"period"`
	// Margin is reserved at the end of each period; delivery must finish before it
	Margin time.Duration `yaml:"margin"`
}

// DefaultConfig returns the default collection loop configuration
func DefaultConfig() Config {
	return Config{
		Period: 60 * time.Second,
		Margin: 1 * time.Second,
	}
}

// CycleResult summarizes one cycle
type CycleResult struct {
	ID         string
	Outcome    string
	Datapoints int
	Sent       int
	Err        error
}

// Collector owns the collection loop
type Collector struct {
	logger     *zap.Logger
	config     Config
	newCluster ClusterFactory
	cluster    ClusterSource
	scheduler  SchedulerSource
	mapper     *mapper.Mapper
	queue      timeseries.Queue
	sender     Deliverer

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time

	mu          sync.RWMutex
	lastCycle   time.Time
	lastOutcome string

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Collector. scheduler may be nil when Singularity is not configured.
func New(
	logger *zap.Logger,
	config Config,
	newCluster ClusterFactory,
	scheduler SchedulerSource,
	m *mapper.Mapper,
	queue timeseries.Queue,
	sender Deliverer,
) *Collector {
	defaults := DefaultConfig()
	if config.Period <= 0 {
		config.Period = defaults.Period
	}
	if config.Margin < 0 || config.Margin >= config.Period {
		config.Margin = 0
	}

	return &Collector{
		logger:     logger,
		config:     config,
		newCluster: newCluster,
		scheduler:  scheduler,
		mapper:     m,
		queue:      queue,
		sender:     sender,
		now:        time.Now,
		after:      time.After,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the collection loop in the background
func (c *Collector) Start(ctx context.Context) error {
	c.logger.Info("Starting collection loop",
		zap.Duration("period", c.config.Period),
		zap.Duration("margin", c.config.Margin),
		zap.Bool("singularity", c.scheduler != nil),
	)

	go func() {
		defer close(c.done)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Info("Collection loop exited", zap.Error(err))
		}
	}()
	return nil
}

// Stop ends the loop started by Start and waits for it to exit. An in-flight
// cycle is abandoned only through the context passed to Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

// Run sleeps until each period boundary and runs one cycle. It returns only
// when ctx is cancelled or Stop is called.
func (c *Collector) Run(ctx context.Context) error {
	for {
		wait := nextBoundary(c.now(), c.config.Period).Sub(c.now())

		select {
		case <-ctx.Done():
			c.logger.Info("Collection loop stopped due to context cancellation")
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Collection loop stopped gracefully")
			return nil
		case <-c.after(wait):
		}

		c.RunCycle(ctx)
	}
}

// nextBoundary returns the first multiple of period strictly after now
func nextBoundary(now time.Time, period time.Duration) time.Time {
	return now.Truncate(period).Add(period)
}

// LastCycle returns when the last cycle finished and its outcome
func (c *Collector) LastCycle() (time.Time, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCycle, c.lastOutcome
}

// Healthy reports whether a cycle finished within the last three periods.
// Before the first cycle it allows three periods from start.
func (c *Collector) Healthy(startedAt time.Time) error {
	last, _ := c.LastCycle()
	if last.IsZero() {
		last = startedAt
	}
	if age := c.now().Sub(last); age > 3*c.config.Period {
		return fmt.Errorf("no collection cycle finished in %s", age.Round(time.Second))
	}
	return nil
}

// RunCycle performs one collection and delivery. Every error, including a
// panic, ends the cycle and is reported in the result; nothing carries over
// to the next cycle.
func (c *Collector) RunCycle(ctx context.Context) (result CycleResult) {
	start := c.now()
	result.ID = uuid.NewString()
	logger := c.logger.With(zap.String("cycle", result.ID))
	deadline := start.Add(c.config.Period - c.config.Margin)

	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Error("Recovered panic in collection cycle",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}

		if dropped := c.queue.Discard(); dropped > 0 {
			logger.Warn("Discarded undelivered datapoints", zap.Int("count", dropped))
		}

		took := c.now().Sub(start)
		metrics.RecordCycle(result.Outcome, took)
		c.mu.Lock()
		c.lastCycle = c.now()
		c.lastOutcome = result.Outcome
		c.mu.Unlock()

		fields := []zap.Field{
			zap.String("outcome", result.Outcome),
			zap.Int("datapoints", result.Datapoints),
			zap.Int("sent", result.Sent),
			zap.Duration("took", took),
		}
		if result.Err != nil {
			logger.Warn("Collection cycle ended with error", append(fields, zap.String("class", Classify(result.Err)), zap.Error(result.Err))...)
			return
		}
		logger.Info("Collection cycle finished", fields...)
	}()

	cluster, err := c.ensureCluster(ctx)
	if err != nil {
		result.Outcome = OutcomeNoLeader
		result.Err = err
		return result
	}

	collectStart := c.now()
	clusterErr, schedulerErr := c.collect(ctx, cluster)
	logger.Info("Collection finished", zap.Duration("took", c.now().Sub(collectStart)))

	if schedulerErr != nil {
		logger.Warn("Singularity update failed", zap.Error(schedulerErr))
	}
	if clusterErr != nil {
		result.Err = clusterErr
		if mesos.IsLeadershipError(clusterErr) {
			result.Outcome = OutcomeNoLeader
		} else {
			result.Outcome = OutcomeFailed
		}
		return result
	}

	ts := c.now().Unix()
	result.Datapoints = c.queue.Add(c.mapAll(cluster, ts)...)
	if c.queue.Len() == 0 {
		result.Outcome = OutcomeEmpty
		return result
	}

	budget := deadline.Sub(c.now())
	sent, err := c.sender.Deliver(ctx, c.queue, budget)
	result.Sent = sent
	if err != nil {
		result.Err = err
		if errors.Is(err, carbon.ErrDelivery) {
			result.Outcome = OutcomeDeliveryFailed
		} else {
			result.Outcome = OutcomeFailed
		}
		return result
	}

	result.Outcome = OutcomeOK
	return result
}

// ensureCluster builds the cluster client on first use
func (c *Collector) ensureCluster(ctx context.Context) (ClusterSource, error) {
	if c.cluster != nil {
		return c.cluster, nil
	}

	cluster, err := c.newCluster(ctx)
	if err != nil {
		if !mesos.IsLeadershipError(err) {
			err = fmt.Errorf("%w: %v", mesos.ErrNoLeaderReachable, err)
		}
		return nil, err
	}
	c.cluster = cluster
	return cluster, nil
}

// collect resets and updates both sources in parallel and waits for both
func (c *Collector) collect(ctx context.Context, cluster ClusterSource) (clusterErr, schedulerErr error) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		clusterErr = guard(func() error {
			cluster.Reset()
			return cluster.Update(ctx)
		})
	}()

	if c.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			schedulerErr = guard(func() error {
				c.scheduler.Reset()
				return c.scheduler.Update(ctx)
			})
		}()
	}

	wg.Wait()
	return clusterErr, schedulerErr
}

// mapAll maps every gathered facet with the shared cycle timestamp
func (c *Collector) mapAll(cluster ClusterSource, ts int64) []timeseries.Datapoint {
	var lookup map[string]string
	var points []timeseries.Datapoint

	points = append(points, c.mapper.MapClusterMetrics(cluster.Snapshot(), ts)...)
	points = append(points, c.mapper.MapNodeMetrics(cluster.NodeMetrics(), ts)...)

	if c.scheduler != nil {
		lookup = c.scheduler.TaskLookup()
		points = append(points, c.mapper.MapSingularityMetrics(c.scheduler.State(), ts)...)
	}
	points = append(points, c.mapper.MapExecutorMetrics(cluster.Executors(), lookup, ts)...)
	return points
}

// guard turns a panic in fn into an ErrPanic error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

// Classify names the error class of err for logs
func Classify(err error) string {
	var statusErr *fetch.StatusError
	switch {
	case err == nil:
		return ""
	case mesos.IsLeadershipError(err):
		return "leadership"
	case errors.Is(err, carbon.ErrDelivery):
		return "delivery"
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, fetch.ErrTransport):
		return "transport"
	case errors.As(err, &statusErr), errors.Is(err, fetch.ErrDecode):
		return "protocol"
	case errors.Is(err, ErrPanic):
		return "panic"
	default:
		return "unexpected"
	}
}
