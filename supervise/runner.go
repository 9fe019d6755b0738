// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Command describes one process to start. Exec must already be
// resolved to whatever the runner needs: an absolute path for local
// execution, a name the remote machine can resolve for SSH execution.
type Command struct {
	// Name is the node name, for diagnostics.
	Name string

	// Exec is the program to run.
	Exec string

	// Args are the command-line arguments, not including Exec.
	Args []string

	// Env are additional environment variables layered over the
	// execution environment.
	Env map[string]string

	// Dir is the working directory; empty inherits the runner's.
	Dir string

	// Stdout and Stderr receive the process output. Never nil.
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started command. Wait must be called exactly once.
type Process interface {
	// PID identifies the process for status reporting. Remote
	// processes report the remote PID when known, otherwise zero.
	PID() int

	// Wait blocks until the process exits and returns its exit code.
	// The error is non-nil only for failures of the wait itself, not
	// for non-zero exits.
	Wait() (int, error)

	// Terminate asks the process to shut down (SIGTERM to the local
	// process group, or the SSH equivalent).
	Terminate() error

	// Kill forcibly ends the process.
	Kill() error
}

// Runner starts processes on some execution target.
type Runner interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// LocalRunner executes commands directly on this machine. Each
// process gets its own process group so Terminate and Kill reach any
// children the node spawned.
type LocalRunner struct {
	// BaseEnv is the environment every process starts from, in
	// os.Environ form. Nil means the launcher's own environment.
	BaseEnv []string
}

// Start implements Runner.
func (r *LocalRunner) Start(ctx context.Context, cmd Command) (Process, error) {
	c := exec.Command(cmd.Exec, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	base := r.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	c.Env = make([]string, 0, len(base)+len(cmd.Env))
	c.Env = append(c.Env, base...)
	for name, value := range cmd.Env {
		c.Env = append(c.Env, name+"="+value)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd.Name, err)
	}
	return &localProcess{cmd: c}, nil
}

type localProcess struct {
	cmd *exec.Cmd
}

func (p *localProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *localProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Terminate signals the whole process group.
func (p *localProcess) Terminate() error {
	return signalGroup(p.cmd.Process.Pid, unix.SIGTERM)
}

func (p *localProcess) Kill() error {
	return signalGroup(p.cmd.Process.Pid, unix.SIGKILL)
}

// signalGroup delivers sig to the process group led by pid. ESRCH is
// not an error: the group already exited.
func signalGroup(pid int, sig unix.Signal) error {
	if err := unix.Kill(-pid, sig); err != nil && err != unix.ESRCH {
		return fmt.Errorf("signaling process group %d: %w", pid, err)
	}
	return nil
}
