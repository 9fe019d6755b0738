// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"time"
)

// Descriptor is a fully resolved launch descriptor: substitution
// applied, includes flattened, conditions evaluated.
type Descriptor struct {
	// Path is the absolute path of the top-level descriptor file.
	Path string

	// Args are the top-level argument declarations in declaration
	// order, with their resolved values.
	Args []Arg

	// Machines are the declared execution targets, including those
	// contributed by includes.
	Machines []Machine

	// Nodes are the process-launch directives in document order,
	// including those contributed by includes. Disabled nodes (a
	// false if condition or true unless condition) are present with
	// Disabled set.
	Nodes []Node
}

// Arg is a descriptor argument: a named pass-through string with an
// optional default. Callers override values at parse time.
type Arg struct {
	// Name is the argument name referenced by $(arg name).
	Name string

	// Default is the declared default, after substitution. Arguments
	// without a default must be supplied by the caller.
	Default string

	// Value is the resolved value used during substitution.
	Value string

	// Doc is the optional human-readable description.
	Doc string
}

// Machine is a named execution target. A machine whose address is
// empty, "localhost", or a loopback address is executed locally; any
// other address is reached over SSH.
type Machine struct {
	// Name is the machine name referenced by node machine="...".
	Name string

	// Address is the host to run on.
	Address string

	// User is the login user; empty means the connecting user's
	// inventory-configured default.
	User string

	// Port is the SSH port; zero means the configured default.
	Port int

	// EnvLoader is a path to an environment-loader script on the
	// machine. When set, remote commands run as
	// "<env-loader> <exec> <args...>" so the node starts with the
	// machine's full environment. Typically populated from the
	// optional ROS_ENV_LOADER environment variable via
	// $(optenv ROS_ENV_LOADER).
	EnvLoader string

	// Default marks this machine as the target for nodes that do not
	// name one. At most one machine may be the default.
	Default bool

	// Timeout bounds how long a launch waits for this machine to
	// become reachable. Zero means the configured default.
	Timeout time.Duration
}

// Local reports whether the machine resolves to local execution.
func (m Machine) Local() bool {
	switch m.Address {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Node is one process-launch directive.
type Node struct {
	// Name uniquely identifies the node within the launch.
	Name string

	// Pkg is the package the executable belongs to. Used for
	// diagnostics and log grouping only; executable resolution is by
	// Exec.
	Pkg string

	// Exec is the executable name or absolute path.
	Exec string

	// Args are the resolved command-line arguments.
	Args []string

	// Machine names the execution target; empty means the default
	// machine if one is declared, otherwise local.
	Machine string

	// Env are additional environment variables set for the node.
	Env map[string]string

	// CWD is the node's working directory; empty inherits the
	// launcher's.
	CWD string

	// Output selects where node stdout/stderr goes: "log" (per-node
	// log file, the default) or "screen" (the launcher's stderr).
	Output string

	// Respawn restarts the node when it exits.
	Respawn bool

	// RespawnDelay overrides the configured delay before a respawn.
	// Zero means the configured default.
	RespawnDelay time.Duration

	// Required terminates the whole launch with this node's exit
	// code when it exits.
	Required bool

	// Disabled marks a node whose if/unless condition evaluated
	// false. Disabled nodes are not started at launch but can be
	// started later by an operator.
	Disabled bool
}

// Machine returns the declared machine with the given name, or false
// when none matches.
func (d *Descriptor) Machine(name string) (Machine, bool) {
	for _, machine := range d.Machines {
		if machine.Name == name {
			return machine, true
		}
	}
	return Machine{}, false
}

// DefaultMachine returns the machine marked default="true", or false
// when none is declared.
func (d *Descriptor) DefaultMachine() (Machine, bool) {
	for _, machine := range d.Machines {
		if machine.Default {
			return machine, true
		}
	}
	return Machine{}, false
}

// Node returns the node with the given name, or false when none
// matches.
func (d *Descriptor) Node(name string) (Node, bool) {
	for _, node := range d.Nodes {
		if node.Name == name {
			return node, true
		}
	}
	return Node{}, false
}

// Enabled returns the nodes that should start at launch.
func (d *Descriptor) Enabled() []Node {
	nodes := make([]Node, 0, len(d.Nodes))
	for _, node := range d.Nodes {
		if !node.Disabled {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
