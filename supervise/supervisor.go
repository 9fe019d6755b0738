// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package supervise

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/corral-robotics/corral/descriptor"
	"github.com/corral-robotics/corral/lib/binhash"
	"github.com/corral-robotics/corral/lib/clock"
	"github.com/corral-robotics/corral/lib/config"
	"github.com/corral-robotics/corral/lib/ipc"
)

// RequiredExitError is returned by Run when a node marked
// required="true" exits: the whole launch terminates and the launcher
// propagates the node's exit code.
type RequiredExitError struct {
	Node string
	Code int
}

func (e *RequiredExitError) Error() string {
	return fmt.Sprintf("required node %s exited with code %d", e.Node, e.Code)
}

// RunnerFunc selects the Runner for a machine.
type RunnerFunc func(machine descriptor.Machine) (Runner, error)

// OutputFunc provides stdout/stderr writers for a node, plus a close
// function invoked after the process exits. The writers outlive a
// single process run only until close is called.
type OutputFunc func(node descriptor.Node) (stdout, stderr io.Writer, close func() error, err error)

// ResolveFunc resolves a node's exec attribute into the command the
// runner should start, plus an optional binary identity hash.
type ResolveFunc func(node descriptor.Node, machine descriptor.Machine) (exec, hash string, err error)

// Options configures a Supervisor. Descriptor, Config, and Log are
// required; the function fields default to local-only execution with
// descriptor-declared output routing.
type Options struct {
	Descriptor *descriptor.Descriptor
	Config     *config.Config
	Log        *slog.Logger

	// Clock defaults to the real clock. Tests inject a fake one.
	Clock clock.Clock

	// RunnerFor defaults to a shared LocalRunner for local machines
	// and an error for remote ones.
	RunnerFor RunnerFunc

	// Output defaults to the launcher's stderr for output="screen"
	// nodes and discarding otherwise.
	Output OutputFunc

	// Resolve defaults to Config.BinaryPath plus a BLAKE3 file hash
	// for local nodes, and the bare exec name for remote ones.
	Resolve ResolveFunc
}

// Supervisor owns the node lifecycles of one launch.
type Supervisor struct {
	cfg     *config.Config
	desc    *descriptor.Descriptor
	log     *slog.Logger
	clk     clock.Clock
	runners RunnerFunc
	output  OutputFunc
	resolve ResolveFunc

	mu    sync.Mutex
	nodes map[string]*managedNode

	// failed receives the first required-node failure.
	failed chan error
	wg     sync.WaitGroup
}

// New builds a Supervisor for the descriptor's nodes. Machine
// references are resolved here; nothing is started until Run.
func New(opts Options) (*Supervisor, error) {
	if opts.Descriptor == nil || opts.Config == nil || opts.Log == nil {
		return nil, fmt.Errorf("supervise: Descriptor, Config, and Log are required")
	}

	s := &Supervisor{
		cfg:     opts.Config,
		desc:    opts.Descriptor,
		log:     opts.Log,
		clk:     opts.Clock,
		runners: opts.RunnerFor,
		output:  opts.Output,
		resolve: opts.Resolve,
		nodes:   make(map[string]*managedNode, len(opts.Descriptor.Nodes)),
		failed:  make(chan error, 1),
	}
	if s.clk == nil {
		s.clk = clock.Real()
	}
	if s.runners == nil {
		local := &LocalRunner{}
		s.runners = func(machine descriptor.Machine) (Runner, error) {
			if !machine.Local() {
				return nil, fmt.Errorf("no runner configured for remote machine %q", machine.Name)
			}
			return local, nil
		}
	}
	if s.output == nil {
		s.output = defaultOutput
	}
	if s.resolve == nil {
		s.resolve = s.defaultResolve
	}

	for _, spec := range opts.Descriptor.Nodes {
		machine, err := s.machineFor(spec)
		if err != nil {
			return nil, err
		}
		runner, err := s.runners(machine)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", spec.Name, err)
		}

		state := ipc.StateStopped
		if spec.Disabled {
			state = ipc.StateDisabled
		}
		s.nodes[spec.Name] = &managedNode{
			spec:    spec,
			machine: machine,
			runner:  runner,
			state:   state,
		}
	}

	return s, nil
}

// machineFor maps a node's machine attribute to a declaration: the
// named machine, else the descriptor's default machine, else an
// implicit local one.
func (s *Supervisor) machineFor(spec descriptor.Node) (descriptor.Machine, error) {
	if spec.Machine != "" {
		machine, ok := s.desc.Machine(spec.Machine)
		if !ok {
			return descriptor.Machine{}, fmt.Errorf("node %s references undeclared machine %q", spec.Name, spec.Machine)
		}
		return machine, nil
	}
	if machine, ok := s.desc.DefaultMachine(); ok {
		return machine, nil
	}
	return descriptor.Machine{}, nil
}

func defaultOutput(node descriptor.Node) (io.Writer, io.Writer, func() error, error) {
	if node.Output == "screen" {
		return os.Stderr, os.Stderr, func() error { return nil }, nil
	}
	return io.Discard, io.Discard, func() error { return nil }, nil
}

func (s *Supervisor) defaultResolve(node descriptor.Node, machine descriptor.Machine) (string, string, error) {
	if !machine.Local() {
		return node.Exec, "", nil
	}
	path, err := s.cfg.BinaryPath(node.Exec)
	if err != nil {
		return "", "", err
	}
	digest, err := binhash.HashFile(path)
	if err != nil {
		return "", "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return path, binhash.FormatDigest(digest), nil
}

// Run starts every enabled node and blocks until the context is
// canceled or a required node exits. All nodes are stopped (with KILL
// escalation after the configured grace) before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	for _, name := range s.sortedNamesLocked() {
		node := s.nodes[name]
		if node.spec.Disabled {
			s.log.Info("node disabled at launch", "node", name)
			continue
		}
		s.launchLocked(ctx, node)
	}
	s.mu.Unlock()

	var failure error
	select {
	case <-ctx.Done():
	case failure = <-s.failed:
		s.log.Error("terminating launch", "error", failure)
	}

	s.stopAll()
	s.wg.Wait()
	return failure
}

// launchLocked spawns the lifecycle goroutine for a node. Caller
// holds s.mu.
func (s *Supervisor) launchLocked(ctx context.Context, node *managedNode) {
	node.mu.Lock()
	node.loopActive = true
	node.stopReq = false
	node.stopCh = make(chan struct{})
	node.mu.Unlock()

	s.wg.Add(1)
	go s.runLoop(ctx, node)
}

// StartNode starts a stopped or disabled node.
func (s *Supervisor) StartNode(ctx context.Context, name string) (ipc.NodeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[name]
	if !ok {
		return ipc.NodeStatus{}, fmt.Errorf("unknown node %q", name)
	}
	node.mu.Lock()
	active := node.loopActive
	node.mu.Unlock()
	if active {
		return node.status(), fmt.Errorf("node %q is already running", name)
	}

	s.log.Info("starting node on request", "node", name)
	s.launchLocked(ctx, node)
	return node.status(), nil
}

// StopNode gracefully stops a running node: respawn is suppressed,
// the process group gets SIGTERM, and SIGKILL follows if it is still
// alive after the configured grace period.
func (s *Supervisor) StopNode(name string) (ipc.NodeStatus, error) {
	s.mu.Lock()
	node, ok := s.nodes[name]
	s.mu.Unlock()
	if !ok {
		return ipc.NodeStatus{}, fmt.Errorf("unknown node %q", name)
	}

	if !s.stopOne(node) {
		return node.status(), fmt.Errorf("node %q is not running", name)
	}
	s.log.Info("stopping node on request", "node", name)
	return node.status(), nil
}

// stopOne requests a node's loop to finish and escalates on its
// current process. Reports whether the node had an active loop.
func (s *Supervisor) stopOne(node *managedNode) bool {
	node.mu.Lock()
	if !node.loopActive || node.stopReq {
		node.mu.Unlock()
		return false
	}
	node.stopReq = true
	close(node.stopCh)
	proc := node.proc
	node.mu.Unlock()

	if proc == nil {
		return true
	}
	s.escalate(node, proc)
	return true
}

// escalate sends the node's process SIGTERM and arranges SIGKILL after
// the grace period if it is still the node's current process.
func (s *Supervisor) escalate(node *managedNode, proc Process) {
	if err := proc.Terminate(); err != nil {
		s.log.Warn("terminate failed", "node", node.spec.Name, "error", err)
	}

	grace := s.cfg.Launcher.ShutdownGrace.Std()
	s.clk.AfterFunc(grace, func() {
		node.mu.Lock()
		stillRunning := node.proc == proc
		node.mu.Unlock()
		if !stillRunning {
			return
		}
		s.log.Warn("node ignored SIGTERM, killing", "node", node.spec.Name, "grace", grace)
		if err := proc.Kill(); err != nil {
			s.log.Error("kill failed", "node", node.spec.Name, "error", err)
		}
	})
}

// stopAll requests every active node to stop.
func (s *Supervisor) stopAll() {
	s.mu.Lock()
	nodes := make([]*managedNode, 0, len(s.nodes))
	for _, node := range s.nodes {
		nodes = append(nodes, node)
	}
	s.mu.Unlock()

	for _, node := range nodes {
		s.stopOne(node)
	}
}

// Status summarizes the launch for the control socket.
func (s *Supervisor) Status() ipc.LaunchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := ipc.LaunchStatus{Descriptor: s.desc.Path}
	for _, node := range s.nodes {
		if node.status().State == ipc.StateRunning {
			status.Running++
		} else {
			status.Stopped++
		}
	}
	return status
}

// Nodes returns per-node status, sorted by name.
func (s *Supervisor) Nodes() []ipc.NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]ipc.NodeStatus, 0, len(s.nodes))
	for _, name := range s.sortedNamesLocked() {
		statuses = append(statuses, s.nodes[name].status())
	}
	return statuses
}

// NodeStatus returns the status of one node by name.
func (s *Supervisor) NodeStatus(name string) (ipc.NodeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[name]
	if !ok {
		return ipc.NodeStatus{}, fmt.Errorf("unknown node %q", name)
	}
	return node.status(), nil
}

func (s *Supervisor) sortedNamesLocked() []string {
	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
