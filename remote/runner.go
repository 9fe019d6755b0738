// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/corral-robotics/corral/descriptor"
	"github.com/corral-robotics/corral/lib/config"
	"github.com/corral-robotics/corral/supervise"
)

// Runner executes node commands on one remote machine over SSH. Each
// Start opens its own connection; the node's lifetime is the session's
// lifetime, so a dropped connection surfaces as a node exit and the
// usual respawn rules apply.
type Runner struct {
	machine descriptor.Machine
	entry   Entry
	cfg     *config.Config
	log     *slog.Logger
}

// NewRunner builds a Runner for a remote machine declaration.
// Connection details come from the machine itself first, then the
// inventory entry, then the launcher config.
func NewRunner(machine descriptor.Machine, inv *Inventory, cfg *config.Config, log *slog.Logger) (*Runner, error) {
	if machine.Local() {
		return nil, fmt.Errorf("machine %q is local, not remote", machine.Name)
	}
	if inv == nil && cfg.Remote.RequireInventory {
		return nil, fmt.Errorf("machine %q: no inventory configured and remote.require_inventory is set", machine.Name)
	}

	return &Runner{
		machine: machine,
		entry:   inv.Lookup(machine.Name, machine.Address),
		cfg:     cfg,
		log:     log.With("machine", machine.Name, "address", machine.Address),
	}, nil
}

// Start implements supervise.Runner.
func (r *Runner) Start(ctx context.Context, cmd supervise.Command) (supervise.Process, error) {
	client, err := r.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("machine %s: %w", r.machine.Name, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("machine %s: opening session: %w", r.machine.Name, err)
	}
	session.Stdout = cmd.Stdout
	session.Stderr = cmd.Stderr

	command := BuildCommand(r.machine.EnvLoader, cmd)
	if err := session.Start(command); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("machine %s: starting %s: %w", r.machine.Name, cmd.Name, err)
	}

	r.log.Info("remote node started", "node", cmd.Name, "command", command)
	return &remoteProcess{client: client, session: session}, nil
}

// BuildCommand assembles the remote shell command line for a node:
// optional working directory change, optional env prefix, optional
// env-loader wrapper, then the executable and its arguments.
func BuildCommand(envLoader string, cmd supervise.Command) string {
	argv := make([]string, 0, len(cmd.Args)+len(cmd.Env)+4)

	if len(cmd.Env) > 0 {
		argv = append(argv, "env")
		names := make([]string, 0, len(cmd.Env))
		for name := range cmd.Env {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			argv = append(argv, name+"="+cmd.Env[name])
		}
	}
	if envLoader != "" {
		argv = append(argv, envLoader)
	}
	argv = append(argv, cmd.Exec)
	argv = append(argv, cmd.Args...)

	command := shellJoin(argv)
	if cmd.Dir != "" {
		command = "cd " + shellQuote(cmd.Dir) + " && " + command
	}
	return command
}

// dial connects and authenticates, respecting the context deadline
// for both the TCP dial and the SSH handshake.
func (r *Runner) dial(ctx context.Context) (*ssh.Client, error) {
	sshConfig, err := r.clientConfig()
	if err != nil {
		return nil, err
	}

	timeout := r.cfg.Remote.DialTimeout.Std()
	if r.machine.Timeout > 0 {
		timeout = r.machine.Timeout
	}

	port := r.cfg.Remote.Port
	if r.entry.Port != 0 {
		port = r.entry.Port
	}
	if r.machine.Port != 0 {
		port = r.machine.Port
	}
	addr := net.JoinHostPort(r.machine.Address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	// The handshake does not honor the dialer timeout on its own.
	handshakeDeadline := time.Now().Add(timeout)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(handshakeDeadline) {
		handshakeDeadline = deadline
	}
	if err := conn.SetDeadline(handshakeDeadline); err != nil {
		conn.Close()
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (r *Runner) clientConfig() (*ssh.ClientConfig, error) {
	loginUser := r.entry.User
	if r.machine.User != "" {
		loginUser = r.machine.User
	}
	if loginUser == "" {
		current, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("no user configured for machine %q and current user unknown: %w", r.machine.Name, err)
		}
		loginUser = current.Username
	}

	var auth []ssh.AuthMethod
	if r.entry.IdentityFile != "" {
		key, err := os.ReadFile(r.entry.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("reading identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", r.entry.IdentityFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if r.entry.Password != "" {
		auth = append(auth, ssh.Password(r.entry.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("machine %q has no identity file or password in the inventory", r.machine.Name)
	}

	hostKeys, err := r.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            loginUser,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         r.cfg.Remote.DialTimeout.Std(),
	}, nil
}

func (r *Runner) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if r.entry.InsecureSkipHostKey {
		r.log.Warn("host key checking disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := r.entry.KnownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts from %s: %w", path, err)
	}
	return callback, nil
}

// remoteProcess adapts an SSH session to supervise.Process.
type remoteProcess struct {
	client  *ssh.Client
	session *ssh.Session

	closeOnce sync.Once
}

// PID is unknown for remote processes.
func (p *remoteProcess) PID() int { return 0 }

func (p *remoteProcess) Wait() (int, error) {
	err := p.session.Wait()
	p.close()
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		// The remote side gave no status: treat like a killed process.
		return -1, nil
	}
	return -1, err
}

// Terminate asks the remote command to exit. Signal delivery depends
// on the remote sshd; closing the session on Kill is the reliable
// fallback.
func (p *remoteProcess) Terminate() error {
	return p.session.Signal(ssh.SIGTERM)
}

func (p *remoteProcess) Kill() error {
	err := p.session.Signal(ssh.SIGKILL)
	p.close()
	if err != nil {
		return err
	}
	return nil
}

func (p *remoteProcess) close() {
	p.closeOnce.Do(func() {
		p.session.Close()
		p.client.Close()
	})
}
