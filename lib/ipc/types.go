// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "time"

// Actions accepted by the launcher control socket.
const (
	// ActionStatus returns launch-wide information: descriptor path,
	// launcher version and binary hash, uptime, node counts.
	ActionStatus = "status"

	// ActionListNodes returns the full per-node status table.
	ActionListNodes = "list-nodes"

	// ActionStartNode starts a stopped or disabled node by name.
	ActionStartNode = "start-node"

	// ActionStopNode stops a running node by name (graceful, with
	// KILL escalation after the configured grace period).
	ActionStopNode = "stop-node"

	// ActionShutdown stops every node and exits the launcher.
	ActionShutdown = "shutdown"
)

// Node states reported in NodeStatus.State.
const (
	StateRunning    = "running"
	StateStopped    = "stopped"
	StateRespawning = "respawning"
	StateDisabled   = "disabled"
)

// Request is a CBOR-encoded request from the CLI to the launcher,
// sent over the launcher's Unix control socket.
type Request struct {
	// Action is the request type: one of the Action constants.
	Action string `cbor:"action"`

	// Node is the node name to operate on (start-node, stop-node).
	Node string `cbor:"node,omitempty"`
}

// Response is a CBOR-encoded response from the launcher to the CLI.
type Response struct {
	// OK indicates whether the request succeeded.
	OK bool `cbor:"ok"`

	// Error contains the error message if OK is false.
	Error string `cbor:"error,omitempty"`

	// Status carries launch-wide information for "status".
	Status *LaunchStatus `cbor:"status,omitempty"`

	// Nodes lists per-node status for "list-nodes". Also returned by
	// start-node and stop-node with the single affected node.
	Nodes []NodeStatus `cbor:"nodes,omitempty"`
}

// LaunchStatus describes the launcher itself.
type LaunchStatus struct {
	// Descriptor is the absolute path of the loaded launch descriptor.
	Descriptor string `cbor:"descriptor"`

	// Version is the launcher's build version string.
	Version string `cbor:"version"`

	// BinaryHash is the hex BLAKE3 digest of the launcher binary,
	// computed at startup.
	BinaryHash string `cbor:"binary_hash,omitempty"`

	// StartedAt is when the launcher finished starting the descriptor.
	StartedAt time.Time `cbor:"started_at"`

	// Running and Stopped count nodes by current state.
	Running int `cbor:"running"`
	Stopped int `cbor:"stopped"`
}

// NodeStatus describes one managed node.
type NodeStatus struct {
	// Name is the node's unique name from the descriptor.
	Name string `cbor:"name"`

	// Exec is the resolved executable path (local nodes) or the
	// remote command (remote nodes).
	Exec string `cbor:"exec"`

	// Machine is the machine name the node runs on; empty for local.
	Machine string `cbor:"machine,omitempty"`

	// State is "running", "stopped", "respawning", or "disabled".
	State string `cbor:"state"`

	// PID is the local process ID; zero for remote or stopped nodes.
	PID int `cbor:"pid,omitempty"`

	// Restarts counts respawns since launch.
	Restarts int `cbor:"restarts"`

	// ExitCode is the last exit code. Uses a pointer to distinguish
	// "exited with 0" from "has not exited".
	ExitCode *int `cbor:"exit_code,omitempty"`

	// BinaryHash is the hex BLAKE3 digest of the node executable at
	// its most recent start; empty for remote nodes.
	BinaryHash string `cbor:"binary_hash,omitempty"`

	// StartedAt is when the node was most recently started; the zero
	// time when the node has never run.
	StartedAt time.Time `cbor:"started_at"`
}
