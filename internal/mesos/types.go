package mesos

import (
	"bytes"
	"fmt"
	"net"
	"strconv"

	"github.com/goccy/go-json"
)

// DefaultAgentPort is used when the leader lists a node without a port
const DefaultAgentPort = "5051"

// Port is a node port that the leader reports either as a number or a string
type Port string

// UnmarshalJSON accepts both 5051 and "5051"
func (p *Port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Port(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	*p = Port(strconv.FormatInt(int64(n), 10))
	return nil
}

// NodeRef identifies one worker node as listed by the leader
type NodeRef struct {
	Hostname string `json:"hostname"`
	Port     Port   `json:"port"`
}

// Address returns "hostname:port"
func (n NodeRef) Address() string {
	port := string(n.Port)
	if port == "" {
		port = DefaultAgentPort
	}
	return net.JoinHostPort(n.Hostname, port)
}

// slavesResponse is the body of GET /slaves on the leader
type slavesResponse struct {
	Slaves []NodeRef `json:"slaves"`
}

// ClusterSnapshot holds the leader's view of the cluster for one cycle
type ClusterSnapshot struct {
	LeaderAddress  string
	ClusterMetrics map[string]float64
	Nodes          []NodeRef
}

// NodeSnapshot holds one reachable node's flat metrics
type NodeSnapshot struct {
	Hostname string
	Metrics  map[string]float64
}

// ExecutorRecord holds resource statistics for one executor on a node
type ExecutorRecord struct {
	ExecutorID   string
	ExecutorName string
	FrameworkID  string
	Source       string
	Statistics   map[string]float64
}

// rawExecutor is one element of GET /monitor/statistics.json
type rawExecutor struct {
	ExecutorID   string         `json:"executor_id"`
	ExecutorName string         `json:"executor_name"`
	FrameworkID  string         `json:"framework_id"`
	Source       string         `json:"source"`
	Statistics   map[string]any `json:"statistics"`
}
