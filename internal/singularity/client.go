// Package singularity polls the Singularity scheduler for aggregate state and
// the active-task table used to name executor metrics.
package singularity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/mesos-stats/internal/fetch"
)

// ErrUnavailable is returned by Update when every facet failed
var ErrUnavailable = errors.New("singularity unavailable")

const (
	endpointState     = "/api/state"
	endpointSlaves    = "/api/slaves"
	endpointDisasters = "/api/disasters/stats"
	endpointActive    = "/api/tasks/active"
	endpointRequests  = "/api/requests"
	endpointScheduled = "/api/tasks/scheduled"
	endpointDeploys   = "/api/deploys/pending"
	endpointHistory   = "/api/history/request/%s/tasks"

	facetCount = 8

	// failureWindow bounds the task history counted as recent failures
	failureWindow = 25 * time.Minute
	taskFailed    = "TASK_FAILED"
)

// JSONGetter performs one JSON GET. *fetch.Fetcher satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, out any) error
}

// Config holds configuration for the Singularity client
type Config struct {
	Host string `yaml:"host"`
	// Workers bounds the concurrent per-request history fetches
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default Singularity client settings
func DefaultConfig() Config {
	return Config{Workers: 10}
}

// Client gathers Singularity facets for one cycle
type Client struct {
	logger  *zap.Logger
	fetcher JSONGetter
	config  Config
	baseURL string
	now     func() time.Time

	mu     sync.Mutex
	state  State
	lookup map[string]string
}

// NewClient creates a client for the Singularity host in config
func NewClient(logger *zap.Logger, fetcher JSONGetter, config Config) (*Client, error) {
	host := strings.TrimSpace(config.Host)
	if host == "" {
		return nil, fmt.Errorf("singularity host is required")
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}

	c := &Client{
		logger:  logger,
		fetcher: fetcher,
		config:  config,
		baseURL: fetch.BaseURL(host, ""),
		now:     time.Now,
	}
	c.Reset()
	return c, nil
}

// Reset clears all facets
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = State{
		Scheduler:         map[string]float64{},
		Disasters:         map[string]float64{},
		RequestsByState:   map[string]int{},
		RequestsByType:    map[string]int{},
		FailuresByRequest: map[string]int{},
	}
	c.lookup = map[string]string{}
}

// Update fetches every facet in parallel. A failed facet is logged and left
// empty; Update fails only when all of them failed.
func (c *Client) Update(ctx context.Context) error {
	start := time.Now()

	var (
		g        errgroup.Group
		failedMu sync.Mutex
		failed   []string
	)

	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				c.logger.Warn("Singularity facet unavailable",
					zap.String("facet", name),
					zap.Error(err))
				failedMu.Lock()
				failed = append(failed, name)
				failedMu.Unlock()
			}
			return nil
		})
	}

	run("state", c.updateState)
	run("slaves", c.updateSlaves)
	run("disasters", c.updateDisasters)
	run("active_tasks", c.updateActiveTasks)
	run("requests", c.updateRequests)
	run("scheduled_tasks", c.updateScheduled)
	run("pending_deploys", c.updatePendingDeploys)
	run("task_history", c.updateFailureHistory)
	_ = g.Wait()

	c.logger.Info("Singularity update finished",
		zap.String("host", c.baseURL),
		zap.Int("facetsFailed", len(failed)),
		zap.Duration("took", time.Since(start)))

	if len(failed) == facetCount {
		return fmt.Errorf("%w: %s", ErrUnavailable, c.baseURL)
	}
	return nil
}

func (c *Client) updateState(ctx context.Context) error {
	var raw map[string]any
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointState, &raw); err != nil {
		return err
	}
	values := fetch.NumericMap(raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.state.Scheduler[k] = v
	}
	return nil
}

func (c *Client) updateSlaves(ctx context.Context) error {
	var slaves []slaveEntry
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointSlaves, &slaves); err != nil {
		return err
	}

	count := 0
	for _, s := range slaves {
		if decommissionStates[strings.ToUpper(s.CurrentState.State)] {
			count++
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Scheduler[DecommissionedKey] = float64(count)
	return nil
}

func (c *Client) updateDisasters(ctx context.Context) error {
	var resp disastersResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointDisasters, &resp); err != nil {
		return err
	}
	if len(resp.Stats) == 0 {
		return fmt.Errorf("%s: no stats entries", endpointDisasters)
	}
	values := fetch.NumericMap(resp.Stats[0])

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Disasters = values
	return nil
}

func (c *Client) updateActiveTasks(ctx context.Context) error {
	var tasks []activeTask
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointActive, &tasks); err != nil {
		return err
	}

	lookup := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if t.TaskID.RequestID == "" {
			continue
		}
		name := t.requestName()
		if id := t.TaskID.ID; id != "" {
			lookup[id] = name
		}
		if id := t.MesosTask.TaskID.Value; id != "" {
			lookup[id] = name
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookup = lookup
	return nil
}

func (c *Client) updateRequests(ctx context.Context) error {
	var requests []requestEntry
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointRequests, &requests); err != nil {
		return err
	}

	byState := map[string]int{}
	byType := map[string]int{}
	for _, r := range requests {
		byState[normalizeLabel(r.State)]++
		byType[normalizeLabel(r.Request.RequestType)]++
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.RequestsByState = byState
	c.state.RequestsByType = byType
	return nil
}

// updateScheduled counts scheduled tasks whose next run time has passed
func (c *Client) updateScheduled(ctx context.Context) error {
	var tasks []scheduledTask
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointScheduled, &tasks); err != nil {
		return err
	}

	nowMillis := c.now().UnixMilli()
	overdue := 0
	for _, t := range tasks {
		if t.PendingTask.PendingTaskID.NextRunAt < nowMillis {
			overdue++
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.HasScheduled = true
	c.state.ScheduledTasks = len(tasks)
	c.state.OverdueTasks = overdue
	return nil
}

func (c *Client) updatePendingDeploys(ctx context.Context) error {
	var deploys []map[string]any
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointDeploys, &deploys); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.HasPendingDeploys = true
	c.state.PendingDeploys = len(deploys)
	return nil
}

// updateFailureHistory counts TASK_FAILED history entries per request over
// the last failureWindow. Each request's history is fetched on a bounded
// pool; a request whose history is unavailable is skipped.
func (c *Client) updateFailureHistory(ctx context.Context) error {
	var requests []requestEntry
	if err := c.fetcher.GetJSON(ctx, c.baseURL+endpointRequests, &requests); err != nil {
		return err
	}

	nowMillis := c.now().UnixMilli()
	since := nowMillis - failureWindow.Milliseconds()

	var (
		g           errgroup.Group
		mu          sync.Mutex
		failures    = map[string]int{}
		unavailable int
	)
	g.SetLimit(c.config.Workers)

	for _, r := range requests {
		id := r.Request.ID
		if id == "" {
			continue
		}
		g.Go(func() error {
			var history []taskHistoryEntry
			if err := c.fetcher.GetJSON(ctx, c.baseURL+fmt.Sprintf(endpointHistory, url.PathEscape(id)), &history); err != nil {
				c.logger.Debug("Task history unavailable",
					zap.String("request", id),
					zap.Error(err))
				mu.Lock()
				unavailable++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, h := range history {
				if h.LastTaskState == taskFailed && h.UpdatedAt > since && h.UpdatedAt < nowMillis {
					failures[h.TaskID.RequestID]++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if unavailable > 0 && unavailable == len(requests) {
		return fmt.Errorf("%s: history unavailable for all %d requests", endpointRequests, unavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.FailuresByRequest = failures
	return nil
}

// State returns a copy of the facets gathered by the last Update
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Scheduler:       copyFloats(c.state.Scheduler),
		Disasters:       copyFloats(c.state.Disasters),
		RequestsByState: copyInts(c.state.RequestsByState),
		RequestsByType:  copyInts(c.state.RequestsByType),
		HasScheduled:    c.state.HasScheduled,
		ScheduledTasks:  c.state.ScheduledTasks,
		OverdueTasks:    c.state.OverdueTasks,

		HasPendingDeploys: c.state.HasPendingDeploys,
		PendingDeploys:    c.state.PendingDeploys,
		FailuresByRequest: copyInts(c.state.FailuresByRequest),
	}
}

// TaskLookup maps Singularity and Mesos task ids to "requestId_instanceNo"
func (c *Client) TaskLookup() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.lookup))
	for k, v := range c.lookup {
		out[k] = v
	}
	return out
}

func copyFloats(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyInts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
