package mesos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/mesos-stats/internal/fetch"
	"github.com/aaronlmathis/mesos-stats/internal/metrics"
)

const (
	endpointSnapshot   = "/metrics/snapshot"
	endpointSlaves     = "/slaves"
	endpointStatistics = "/monitor/statistics.json"

	// ElectedKey is the snapshot entry a master sets to 1 while it leads
	ElectedKey = "master/elected"

	// DefaultMasterPort is appended to masters configured without a port
	DefaultMasterPort = "5050"
)

// JSONGetter performs one JSON GET. *fetch.Fetcher satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, out any) error
}

// Config holds configuration for the cluster client
type Config struct {
	Masters []string `yaml:"masters"`
	Workers int      `yaml:"workers"` // Maximum concurrent node requests
}

// DefaultConfig returns the default cluster client configuration
func DefaultConfig() Config {
	return Config{
		Workers: 10,
	}
}

// Client discovers the elected master and gathers per-cycle cluster state
type Client struct {
	logger  *zap.Logger
	fetcher JSONGetter
	config  Config
	masters []string

	// leader is only written by NewClient and Update, which never run concurrently.
	leader string

	mu          sync.Mutex
	cluster     map[string]float64
	nodes       []NodeRef
	nodeMetrics map[string]NodeSnapshot
	executors   map[string][]ExecutorRecord
}

// NewClient normalizes the configured masters and selects the current leader.
// It fails with ErrNoLeaderReachable when no master reports itself elected.
func NewClient(ctx context.Context, logger *zap.Logger, fetcher JSONGetter, config Config) (*Client, error) {
	if len(config.Masters) == 0 {
		return nil, fmt.Errorf("at least one mesos master is required")
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}

	masters := make([]string, 0, len(config.Masters))
	for _, m := range config.Masters {
		if m = strings.TrimSpace(m); m != "" {
			masters = append(masters, fetch.BaseURL(m, DefaultMasterPort))
		}
	}

	c := &Client{
		logger:  logger,
		fetcher: fetcher,
		config:  config,
		masters: masters,
	}
	c.Reset()

	leader, err := c.SelectLeader(ctx, masters)
	if err != nil {
		return nil, err
	}
	c.leader = leader
	return c, nil
}

// Leader returns the base URL of the current leader
func (c *Client) Leader() string {
	return c.leader
}

// SelectLeader returns the first candidate whose snapshot marks it elected.
// Unreachable and non-elected candidates are skipped.
func (c *Client) SelectLeader(ctx context.Context, candidates []string) (string, error) {
	metrics.RecordLeaderSelection()

	for _, candidate := range candidates {
		if _, err := c.electedSnapshot(ctx, candidate); err != nil {
			c.logger.Info("Skipping master candidate",
				zap.String("master", candidate),
				zap.Error(err))
			continue
		}

		c.logger.Info("Selected mesos leader", zap.String("leader", candidate))
		return candidate, nil
	}

	return "", fmt.Errorf("%w: tried %s", ErrNoLeaderReachable, strings.Join(candidates, ", "))
}

// electedSnapshot fetches a master's snapshot and fails with ErrNotLeader
// unless the master reports itself elected.
func (c *Client) electedSnapshot(ctx context.Context, master string) (map[string]float64, error) {
	var raw map[string]any
	if err := c.fetcher.GetJSON(ctx, master+endpointSnapshot, &raw); err != nil {
		return nil, err
	}

	snapshot := fetch.NumericMap(raw)
	if elected, ok := snapshot[ElectedKey]; !ok || elected != 1 {
		return nil, fmt.Errorf("%s: %w", master, ErrNotLeader)
	}
	return snapshot, nil
}

// Reset clears all per-cycle state
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cluster = map[string]float64{}
	c.nodes = nil
	c.nodeMetrics = map[string]NodeSnapshot{}
	c.executors = map[string][]ExecutorRecord{}
}

// Update refreshes the leader snapshot, the node list, and every node's
// metrics and executor statistics. Node failures are logged and omitted; only
// losing the leader fails the update.
func (c *Client) Update(ctx context.Context) error {
	start := time.Now()

	cluster, err := c.electedSnapshot(ctx, c.leader)
	if err != nil {
		c.logger.Warn("Cached leader unusable, re-running leader selection",
			zap.String("leader", c.leader),
			zap.Error(err))

		leader, selErr := c.SelectLeader(ctx, c.masters)
		if selErr != nil {
			return selErr
		}
		c.leader = leader

		cluster, err = c.electedSnapshot(ctx, c.leader)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoLeaderReachable, err)
		}
	}

	c.mu.Lock()
	c.cluster = cluster
	c.mu.Unlock()

	var listing slavesResponse
	if err := c.fetcher.GetJSON(ctx, c.leader+endpointSlaves, &listing); err != nil {
		c.logger.Warn("Failed to list nodes from leader",
			zap.String("leader", c.leader),
			zap.Error(err))
		metrics.UpdateNodeCounts(0, 0)
		return nil
	}

	c.mu.Lock()
	c.nodes = listing.Slaves
	c.mu.Unlock()

	c.gatherNodes(ctx, c.uniqueNodes(listing.Slaves))

	c.mu.Lock()
	reachable := len(c.nodeMetrics)
	withExecutors := len(c.executors)
	c.mu.Unlock()

	metrics.UpdateNodeCounts(reachable, len(listing.Slaves))
	c.logger.Info("Mesos update finished",
		zap.String("leader", c.leader),
		zap.Int("clusterMetrics", len(cluster)),
		zap.Int("nodes", len(listing.Slaves)),
		zap.Int("nodesReachable", reachable),
		zap.Int("nodesWithExecutors", withExecutors),
		zap.Duration("took", time.Since(start)))
	return nil
}

// uniqueNodes keeps the first node listed for each hostname. Results and
// metric paths are keyed by hostname, so a second agent on the same host
// would overwrite the first.
func (c *Client) uniqueNodes(nodes []NodeRef) []NodeRef {
	seen := make(map[string]string, len(nodes))
	out := make([]NodeRef, 0, len(nodes))
	for _, node := range nodes {
		if kept, ok := seen[node.Hostname]; ok {
			c.logger.Warn("Skipping node with duplicate hostname",
				zap.String("node", node.Hostname),
				zap.String("kept", kept),
				zap.String("skipped", node.Address()))
			continue
		}
		seen[node.Hostname] = node.Address()
		out = append(out, node)
	}
	return out
}

// gatherNodes fans out the per-node fetches over a bounded pool and returns
// once every fetch has completed or failed.
func (c *Client) gatherNodes(ctx context.Context, nodes []NodeRef) {
	var g errgroup.Group
	g.SetLimit(c.config.Workers)

	for _, node := range nodes {
		node := node
		base := fetch.BaseURL(node.Address(), "")

		g.Go(func() error {
			var raw map[string]any
			if err := c.fetcher.GetJSON(ctx, base+endpointSnapshot, &raw); err != nil {
				c.logger.Warn("Node snapshot unavailable",
					zap.String("node", node.Hostname),
					zap.Error(err))
				return nil
			}

			c.mu.Lock()
			c.nodeMetrics[node.Hostname] = NodeSnapshot{
				Hostname: node.Hostname,
				Metrics:  fetch.NumericMap(raw),
			}
			c.mu.Unlock()
			return nil
		})

		g.Go(func() error {
			var raw []rawExecutor
			if err := c.fetcher.GetJSON(ctx, base+endpointStatistics, &raw); err != nil {
				c.logger.Warn("Node executor statistics unavailable",
					zap.String("node", node.Hostname),
					zap.Error(err))
				return nil
			}

			records := make([]ExecutorRecord, 0, len(raw))
			for _, e := range raw {
				records = append(records, ExecutorRecord{
					ExecutorID:   e.ExecutorID,
					ExecutorName: e.ExecutorName,
					FrameworkID:  e.FrameworkID,
					Source:       e.Source,
					Statistics:   fetch.NumericMap(e.Statistics),
				})
			}

			c.mu.Lock()
			c.executors[node.Hostname] = records
			c.mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait is the barrier.
	_ = g.Wait()
}

// Snapshot returns the cluster-wide state gathered by the last Update
func (c *Client) Snapshot() ClusterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	cluster := make(map[string]float64, len(c.cluster))
	for k, v := range c.cluster {
		cluster[k] = v
	}
	nodes := make([]NodeRef, len(c.nodes))
	copy(nodes, c.nodes)

	return ClusterSnapshot{
		LeaderAddress:  c.leader,
		ClusterMetrics: cluster,
		Nodes:          nodes,
	}
}

// NodeMetrics returns the reachable nodes' snapshots keyed by hostname
func (c *Client) NodeMetrics() map[string]NodeSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]NodeSnapshot, len(c.nodeMetrics))
	for k, v := range c.nodeMetrics {
		out[k] = v
	}
	return out
}

// Executors returns executor statistics keyed by hostname
func (c *Client) Executors() map[string][]ExecutorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]ExecutorRecord, len(c.executors))
	for k, v := range c.executors {
		out[k] = v
	}
	return out
}

// IsLeadershipError reports whether err means no leader could be used
func IsLeadershipError(err error) bool {
	return errors.Is(err, ErrNoLeaderReachable)
}
