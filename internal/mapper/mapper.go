// Package mapper turns raw Mesos and Singularity payloads into Graphite
// datapoints using static key tables.
package mapper

import (
	"sort"

	"go.uber.org/zap"

	"github.com/aaronlmathis/mesos-stats/internal/mesos"
	"github.com/aaronlmathis/mesos-stats/internal/singularity"
	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
)

// Config holds mapper options
type Config struct {
	// RequestTree also emits executor metrics under tasks.<name>.<N>
	RequestTree bool `yaml:"request_tree"`
}

// Mapper converts snapshots into datapoints
type Mapper struct {
	logger *zap.Logger
	config Config
}

// New creates a Mapper
func New(logger *zap.Logger, config Config) *Mapper {
	return &Mapper{logger: logger, config: config}
}

func scaled(rule Rule, value float64) float64 {
	if rule.Percent {
		return value * 100
	}
	return value
}

// mapTable emits one datapoint per raw key known to table, in table order.
// Unknown keys are dropped. A non-empty base is prepended to every rendered
// template.
func mapTable(table Table, raw map[string]float64, ts int64, base string, segments ...string) []timeseries.Datapoint {
	out := make([]timeseries.Datapoint, 0, len(raw))
	for _, rule := range table {
		value, ok := raw[rule.Key]
		if !ok {
			continue
		}
		path := timeseries.JoinPath(base, timeseries.RenderPath(rule.Template, segments...))
		out = append(out, timeseries.NewDatapoint(path, scaled(rule, value), ts))
	}
	return out
}

// segment sanitizes a dynamic path segment, substituting "unknown" for an
// empty value so the path keeps its segment count.
func segment(s string) string {
	if s == "" {
		return "unknown"
	}
	return timeseries.SanitizeSegment(s)
}

// MapClusterMetrics maps the leader's snapshot
func (m *Mapper) MapClusterMetrics(snapshot mesos.ClusterSnapshot, ts int64) []timeseries.Datapoint {
	return mapTable(ClusterTable, snapshot.ClusterMetrics, ts, "")
}

// MapNodeMetrics maps every reachable node's snapshot
func (m *Mapper) MapNodeMetrics(nodes map[string]mesos.NodeSnapshot, ts int64) []timeseries.Datapoint {
	var out []timeseries.Datapoint
	for _, host := range sortedKeys(nodes) {
		out = append(out, mapTable(NodeTable, nodes[host].Metrics, ts, "", segment(host))...)
	}
	return out
}

// MapExecutorMetrics maps executor statistics grouped by host. Task names
// come from lookup first, then from the naming heuristics.
func (m *Mapper) MapExecutorMetrics(executors map[string][]mesos.ExecutorRecord, lookup map[string]string, ts int64) []timeseries.Datapoint {
	var (
		out        []timeseries.Datapoint
		unresolved int
	)

	for _, host := range sortedKeys(executors) {
		for _, rec := range executors[host] {
			name, instance, ok := ResolveTask(rec.ExecutorID, lookup)

			var task string
			if ok {
				task = timeseries.JoinPath(timeseries.SanitizeSegment(name), timeseries.SanitizeSegment(instance))
			} else {
				unresolved++
				m.logger.Debug("Unresolved executor id",
					zap.String("host", host),
					zap.String("executorId", rec.ExecutorID))
				task = segment(rec.ExecutorID)
			}

			base := timeseries.JoinPath("slave", segment(host), "executors", segment(rec.FrameworkID), task)
			out = append(out, mapTable(ExecutorTable, rec.Statistics, ts, base)...)

			if m.config.RequestTree && ok {
				tree := timeseries.JoinPath("tasks", task)
				out = append(out, mapTable(ExecutorTable, rec.Statistics, ts, tree)...)
			}
		}
	}

	if unresolved > 0 {
		m.logger.Info("Executors left unresolved", zap.Int("count", unresolved))
	}
	return out
}

// MapSingularityMetrics maps every Singularity facet that produced data
func (m *Mapper) MapSingularityMetrics(state singularity.State, ts int64) []timeseries.Datapoint {
	if state.IsEmpty() {
		return nil
	}

	out := mapTable(SingularityStateTable, state.Scheduler, ts, "")
	out = append(out, mapTable(SingularityDisasterTable, state.Disasters, ts, "")...)

	for _, s := range sortedKeys(state.RequestsByState) {
		path := timeseries.RenderPath("singularity.requests.state.[]", s)
		out = append(out, timeseries.NewDatapoint(path, float64(state.RequestsByState[s]), ts))
	}
	for _, t := range sortedKeys(state.RequestsByType) {
		path := timeseries.RenderPath("singularity.requests.type.[]", t)
		out = append(out, timeseries.NewDatapoint(path, float64(state.RequestsByType[t]), ts))
	}

	if state.HasScheduled {
		out = append(out,
			timeseries.NewDatapoint("singularity.tasks.pending.total", float64(state.ScheduledTasks), ts),
			timeseries.NewDatapoint("singularity.deploys.pending.overdue", float64(state.OverdueTasks), ts),
		)
	}
	if state.HasPendingDeploys {
		out = append(out, timeseries.NewDatapoint("singularity.deploys.pending.total", float64(state.PendingDeploys), ts))
	}
	for _, id := range sortedKeys(state.FailuresByRequest) {
		path := timeseries.RenderPath("singularity.tasks.history.failure.[]", segment(id))
		out = append(out, timeseries.NewDatapoint(path, float64(state.FailuresByRequest[id]), ts))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
