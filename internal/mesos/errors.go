package mesos

import "errors"

var (
	// ErrNoLeaderReachable means no candidate master reported itself elected
	ErrNoLeaderReachable = errors.New("no elected mesos master reachable")

	// ErrNotLeader means a master answered but is not the elected leader
	ErrNotLeader = errors.New("master is not the elected leader")
)
