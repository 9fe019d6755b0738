// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package supervise

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corral-robotics/corral/descriptor"
	"github.com/corral-robotics/corral/lib/ipc"
)

// managedNode is the supervisor's view of one node: its declaration,
// its execution target, and the mutable run state its lifecycle
// goroutine maintains.
type managedNode struct {
	spec    descriptor.Node
	machine descriptor.Machine
	runner  Runner

	mu sync.Mutex

	// loopActive is true while a lifecycle goroutine owns this node.
	loopActive bool

	// stopReq is set (and stopCh closed) when an operator or shutdown
	// asks the loop to finish instead of respawning.
	stopReq bool
	stopCh  chan struct{}

	// proc is the currently running process, nil between runs.
	proc      Process
	pid       int
	state     string
	exec      string
	hash      string
	restarts  int
	exitCode  *int
	startedAt time.Time
}

func (n *managedNode) status() ipc.NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()

	return ipc.NodeStatus{
		Name:       n.spec.Name,
		Exec:       n.exec,
		Machine:    n.machine.Name,
		State:      n.state,
		PID:        n.pid,
		Restarts:   n.restarts,
		ExitCode:   n.exitCode,
		BinaryHash: n.hash,
		StartedAt:  n.startedAt,
	}
}

func (n *managedNode) stopRequested() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopReq
}

// finish marks the loop done and records the final state.
func (n *managedNode) finish(state string) {
	n.mu.Lock()
	n.loopActive = false
	n.proc = nil
	n.pid = 0
	n.state = state
	n.mu.Unlock()
}

// runLoop is a node's lifecycle goroutine: start, wait, and respawn
// until the node stops for good.
func (s *Supervisor) runLoop(ctx context.Context, n *managedNode) {
	defer s.wg.Done()

	log := s.log.With("node", n.spec.Name)

	baseDelay := s.cfg.Launcher.RespawnDelay.Std()
	if n.spec.RespawnDelay > 0 {
		baseDelay = n.spec.RespawnDelay
	}
	ceiling := s.cfg.Launcher.RespawnBackoffCeiling.Std()
	if ceiling < baseDelay {
		ceiling = baseDelay
	}
	delay := baseDelay

	for {
		started := s.clk.Now()
		code, ran := s.runOnce(ctx, n, log, started)

		if n.spec.Required && !n.stopRequested() && ctx.Err() == nil {
			s.failRequired(n, code)
			n.finish(ipc.StateStopped)
			return
		}
		if ctx.Err() != nil || n.stopRequested() || !n.spec.Respawn {
			n.finish(ipc.StateStopped)
			return
		}

		// A run that stayed up long enough resets the backoff.
		if ran && s.clk.Now().Sub(started) >= s.cfg.Launcher.StableRunThreshold.Std() {
			delay = baseDelay
		}

		n.mu.Lock()
		n.state = ipc.StateRespawning
		n.proc = nil
		n.pid = 0
		stopCh := n.stopCh
		n.mu.Unlock()

		log.Info("respawning node", "delay", delay, "restarts", n.status().Restarts+1)
		select {
		case <-s.clk.After(delay):
		case <-ctx.Done():
			n.finish(ipc.StateStopped)
			return
		case <-stopCh:
			n.finish(ipc.StateStopped)
			return
		}

		delay = min(delay*2, ceiling)
		n.mu.Lock()
		n.restarts++
		n.mu.Unlock()
	}
}

// runOnce starts the node's process and waits for it to exit. It
// reports the exit code and whether a process actually ran; start
// failures report (1, false) so required-node semantics still
// terminate the launch.
func (s *Supervisor) runOnce(ctx context.Context, n *managedNode, log *slog.Logger, started time.Time) (int, bool) {
	if n.stopRequested() {
		return 0, false
	}

	execPath, hash, err := s.resolve(n.spec, n.machine)
	if err != nil {
		log.Error("resolving node executable", "exec", n.spec.Exec, "error", err)
		return 1, false
	}

	stdout, stderr, closeOutput, err := s.output(n.spec)
	if err != nil {
		log.Error("opening node output", "error", err)
		return 1, false
	}
	defer func() {
		if err := closeOutput(); err != nil {
			log.Warn("closing node output", "error", err)
		}
	}()

	proc, err := n.runner.Start(ctx, Command{
		Name:   n.spec.Name,
		Exec:   execPath,
		Args:   n.spec.Args,
		Env:    n.spec.Env,
		Dir:    n.spec.CWD,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		log.Error("starting node", "exec", execPath, "error", err)
		return 1, false
	}

	n.mu.Lock()
	n.proc = proc
	n.pid = proc.PID()
	n.state = ipc.StateRunning
	n.exec = execPath
	n.hash = hash
	n.startedAt = started
	n.exitCode = nil
	stopped := n.stopReq
	n.mu.Unlock()

	log.Info("node started",
		"exec", execPath,
		"pid", proc.PID(),
		"machine", n.machine.Name,
		"binary_hash", hash)

	// A stop request that arrived during the start found no process
	// to signal; deliver it now.
	if stopped {
		log.Info("stop raced with start, terminating", "pid", proc.PID())
		s.escalate(n, proc)
	}

	code, waitErr := proc.Wait()
	if waitErr != nil {
		log.Error("waiting for node", "error", waitErr)
	}

	n.mu.Lock()
	n.proc = nil
	n.pid = 0
	n.exitCode = &code
	n.mu.Unlock()

	log.Info("node exited", "exit_code", code, "uptime", s.clk.Now().Sub(started))
	return code, true
}

// failRequired reports the first required-node failure; later ones
// are dropped because the launch is already terminating.
func (s *Supervisor) failRequired(n *managedNode, code int) {
	err := &RequiredExitError{Node: n.spec.Name, Code: code}
	select {
	case s.failed <- err:
	default:
	}
}
