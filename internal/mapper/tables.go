package mapper

// Rule maps one raw upstream key to a path template. Percent rules carry a
// 0..1 ratio that is published as 0..100.
type Rule struct {
	Key      string
	Template string
	Percent  bool
}

// Table is an ordered set of rules for one metric family
type Table []Rule

// ClusterTable covers the leader's /metrics/snapshot
var ClusterTable = Table{
	{Key: "master/cpus_percent", Template: "cluster.cpus.percent", Percent: true},
	{Key: "master/cpus_total", Template: "cluster.cpus.total"},
	{Key: "master/cpus_used", Template: "cluster.cpus.used"},
	{Key: "master/mem_percent", Template: "cluster.mem.percent", Percent: true},
	{Key: "master/mem_total", Template: "cluster.mem.total"},
	{Key: "master/mem_used", Template: "cluster.mem.used"},
	{Key: "master/disk_percent", Template: "cluster.disk.percent", Percent: true},
	{Key: "master/disk_total", Template: "cluster.disk.total"},
	{Key: "master/disk_used", Template: "cluster.disk.used"},
	{Key: "master/slaves_active", Template: "cluster.slaves.active"},
	{Key: "master/slaves_connected", Template: "cluster.slaves.connected"},
	{Key: "master/slaves_disconnected", Template: "cluster.slaves.disconnected"},
	{Key: "master/slaves_inactive", Template: "cluster.slaves.inactive"},
	{Key: "master/tasks_error", Template: "cluster.tasks.error"},
	{Key: "master/tasks_failed", Template: "cluster.tasks.failed"},
	{Key: "master/tasks_finished", Template: "cluster.tasks.finished"},
	{Key: "master/tasks_killed", Template: "cluster.tasks.killed"},
	{Key: "master/tasks_lost", Template: "cluster.tasks.lost"},
	{Key: "master/tasks_running", Template: "cluster.tasks.running"},
	{Key: "master/tasks_staging", Template: "cluster.tasks.staging"},
	{Key: "master/tasks_starting", Template: "cluster.tasks.starting"},
	{Key: "master/frameworks_active", Template: "cluster.frameworks.active"},
	{Key: "master/uptime_secs", Template: "cluster.uptime.secs"},
	{Key: "master/elected", Template: "cluster.elected"},
}

// NodeTable covers each node's /metrics/snapshot
var NodeTable = Table{
	{Key: "slave/mem_total", Template: "slave.[].mem.total"},
	{Key: "slave/mem_used", Template: "slave.[].mem.used"},
	{Key: "slave/mem_percent", Template: "slave.[].mem.percent", Percent: true},
	{Key: "slave/cpus_total", Template: "slave.[].cpus.total"},
	{Key: "slave/cpus_used", Template: "slave.[].cpus.used"},
	{Key: "slave/cpus_percent", Template: "slave.[].cpus.percent", Percent: true},
	{Key: "slave/disk_total", Template: "slave.[].disk.total"},
	{Key: "slave/disk_used", Template: "slave.[].disk.used"},
	{Key: "slave/disk_percent", Template: "slave.[].disk.percent", Percent: true},
	{Key: "slave/tasks_running", Template: "slave.[].tasks.running"},
	{Key: "slave/tasks_staging", Template: "slave.[].tasks.staging"},
	{Key: "slave/tasks_failed", Template: "slave.[].tasks.failed"},
	{Key: "slave/tasks_finished", Template: "slave.[].tasks.finished"},
	{Key: "slave/tasks_killed", Template: "slave.[].tasks.killed"},
	{Key: "slave/tasks_lost", Template: "slave.[].tasks.lost"},
	{Key: "slave/executors_running", Template: "slave.[].executors.running"},
	{Key: "slave/uptime_secs", Template: "slave.[].uptime.secs"},
	{Key: "system/load_1min", Template: "slave.[].system.load.1min"},
	{Key: "system/load_5min", Template: "slave.[].system.load.5min"},
	{Key: "system/load_15min", Template: "slave.[].system.load.15min"},
	{Key: "system/mem_free_bytes", Template: "slave.[].system.mem.free.bytes"},
	{Key: "system/mem_total_bytes", Template: "slave.[].system.mem.total.bytes"},
	{Key: "system/cpus_total", Template: "slave.[].system.cpus.total"},
}

// ExecutorTable covers the statistics object of /monitor/statistics.json.
// Templates are relative to the executor's own path.
var ExecutorTable = Table{
	{Key: "cpus_limit", Template: "cpus.limit"},
	{Key: "cpus_system_time_secs", Template: "cpus.system_time_secs"},
	{Key: "cpus_user_time_secs", Template: "cpus.user_time_secs"},
	{Key: "cpus_nr_periods", Template: "cpus.nr_periods"},
	{Key: "cpus_nr_throttled", Template: "cpus.nr_throttled"},
	{Key: "cpus_throttled_time_secs", Template: "cpus.throttled_time_secs"},
	{Key: "mem_limit_bytes", Template: "mem.limit_bytes"},
	{Key: "mem_rss_bytes", Template: "mem.rss_bytes"},
	{Key: "mem_anon_bytes", Template: "mem.anon_bytes"},
	{Key: "mem_file_bytes", Template: "mem.file_bytes"},
	{Key: "mem_mapped_bytes", Template: "mem.mapped_bytes"},
	{Key: "net_rx_bytes", Template: "net.rx.bytes"},
	{Key: "net_tx_bytes", Template: "net.tx.bytes"},
	{Key: "net_rx_dropped", Template: "net.rx.dropped"},
	{Key: "net_tx_dropped", Template: "net.tx.dropped"},
	{Key: "net_rx_errors", Template: "net.rx.errors"},
	{Key: "net_tx_errors", Template: "net.tx.errors"},
}

// SingularityStateTable covers /api/state plus the derived decommission count
var SingularityStateTable = Table{
	{Key: "activeTasks", Template: "singularity.tasks.active"},
	{Key: "launchingTasks", Template: "singularity.tasks.launching"},
	{Key: "scheduledTasks", Template: "singularity.tasks.scheduled"},
	{Key: "cleaningTasks", Template: "singularity.tasks.cleaning"},
	{Key: "lateTasks", Template: "singularity.tasks.late"},
	{Key: "futureTasks", Template: "singularity.tasks.future"},
	{Key: "lbCleanupTasks", Template: "singularity.tasks.lb_cleanup"},
	{Key: "maxTaskLag", Template: "singularity.tasks.max_lag_ms"},
	{Key: "activeRequests", Template: "singularity.requests.active"},
	{Key: "cooldownRequests", Template: "singularity.requests.cooldown"},
	{Key: "pausedRequests", Template: "singularity.requests.paused"},
	{Key: "pendingRequests", Template: "singularity.requests.pending"},
	{Key: "cleaningRequests", Template: "singularity.requests.cleaning"},
	{Key: "finishedRequests", Template: "singularity.requests.finished"},
	{Key: "lbCleanupRequests", Template: "singularity.requests.lb_cleanup"},
	{Key: "overProvisionedRequests", Template: "singularity.requests.over_provisioned"},
	{Key: "underProvisionedRequests", Template: "singularity.requests.under_provisioned"},
	{Key: "allRequests", Template: "singularity.requests.all"},
	{Key: "activeSlaves", Template: "singularity.slaves.active"},
	{Key: "deadSlaves", Template: "singularity.slaves.dead"},
	{Key: "decommissioningSlaves", Template: "singularity.slaves.decommissioning"},
	{Key: "unknownSlaves", Template: "singularity.slaves.unknown"},
	{Key: "decommissionedSlaves", Template: "singularity.slaves.decommissioned"},
	{Key: "activeRacks", Template: "singularity.racks.active"},
	{Key: "deadRacks", Template: "singularity.racks.dead"},
	{Key: "decommissioningRacks", Template: "singularity.racks.decommissioning"},
	{Key: "unknownRacks", Template: "singularity.racks.unknown"},
	{Key: "numDeploys", Template: "singularity.deploys.total"},
	{Key: "oldestDeploy", Template: "singularity.deploys.oldest_ms"},
	{Key: "oldestDeployStep", Template: "singularity.deploys.oldest_step_ms"},
	{Key: "avgStatusUpdateDelayMs", Template: "singularity.status_update_delay_ms"},
	{Key: "authDatastoreHealthy", Template: "singularity.datastore.healthy"},
}

// SingularityDisasterTable covers the newest /api/disasters/stats entry
var SingularityDisasterTable = Table{
	{Key: "numActiveTasks", Template: "singularity.disasters.tasks.active"},
	{Key: "numPendingTasks", Template: "singularity.disasters.tasks.pending"},
	{Key: "numLateTasks", Template: "singularity.disasters.tasks.late"},
	{Key: "numLostTasks", Template: "singularity.disasters.tasks.lost"},
	{Key: "avgTaskLagMillis", Template: "singularity.disasters.tasks.avg_lag_ms"},
	{Key: "numActiveSlaves", Template: "singularity.disasters.slaves.active"},
	{Key: "numLostSlaves", Template: "singularity.disasters.slaves.lost"},
}
