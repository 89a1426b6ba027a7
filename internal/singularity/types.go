package singularity

import (
	"strconv"
	"strings"
)

// Slave states counted as decommissioned in the state facet
var decommissionStates = map[string]bool{
	"DECOMMISSIONED":  true,
	"DECOMMISSIONING": true,
}

// DecommissionedKey is the state facet entry derived from the slave listing
const DecommissionedKey = "decommissionedSlaves"

// State is everything one Update gathered. Facets that failed are empty.
type State struct {
	// Scheduler holds the numeric fields of /api/state plus DecommissionedKey
	Scheduler map[string]float64
	// Disasters holds the numeric fields of the newest /api/disasters/stats entry
	Disasters map[string]float64

	RequestsByState map[string]int
	RequestsByType  map[string]int

	// HasScheduled is set when the scheduled-task facet succeeded
	HasScheduled   bool
	ScheduledTasks int
	OverdueTasks   int

	// HasPendingDeploys is set when the pending-deploy facet succeeded
	HasPendingDeploys bool
	PendingDeploys    int

	// FailuresByRequest counts recent TASK_FAILED history entries per request
	FailuresByRequest map[string]int
}

// IsEmpty reports whether no facet produced data
func (s State) IsEmpty() bool {
	return len(s.Scheduler) == 0 &&
		len(s.Disasters) == 0 &&
		len(s.RequestsByState) == 0 &&
		len(s.RequestsByType) == 0 &&
		len(s.FailuresByRequest) == 0 &&
		!s.HasScheduled &&
		!s.HasPendingDeploys
}

type slaveEntry struct {
	ID           string `json:"id"`
	CurrentState struct {
		State string `json:"state"`
	} `json:"currentState"`
}

type disastersResponse struct {
	Stats []map[string]any `json:"stats"`
}

type activeTask struct {
	TaskID struct {
		RequestID  string `json:"requestId"`
		DeployID   string `json:"deployId"`
		InstanceNo int    `json:"instanceNo"`
		Host       string `json:"host"`
		ID         string `json:"id"`
	} `json:"taskId"`
	MesosTask struct {
		TaskID struct {
			Value string `json:"value"`
		} `json:"taskId"`
		Name string `json:"name"`
	} `json:"mesosTask"`
}

// requestName renders "requestId_instanceNo"
func (t activeTask) requestName() string {
	return t.TaskID.RequestID + "_" + strconv.Itoa(t.TaskID.InstanceNo)
}

type requestEntry struct {
	Request struct {
		ID          string `json:"id"`
		RequestType string `json:"requestType"`
	} `json:"request"`
	State string `json:"state"`
}

type taskHistoryEntry struct {
	TaskID struct {
		RequestID string `json:"requestId"`
	} `json:"taskId"`
	LastTaskState string `json:"lastTaskState"`
	UpdatedAt     int64  `json:"updatedAt"`
}

type scheduledTask struct {
	PendingTask struct {
		PendingTaskID struct {
			RequestID string `json:"requestId"`
			NextRunAt int64  `json:"nextRunAt"`
		} `json:"pendingTaskId"`
	} `json:"pendingTask"`
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
