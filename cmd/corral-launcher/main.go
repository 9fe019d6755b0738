// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/corral-robotics/corral/descriptor"
	"github.com/corral-robotics/corral/lib/binhash"
	"github.com/corral-robotics/corral/lib/config"
	"github.com/corral-robotics/corral/lib/nodelog"
	"github.com/corral-robotics/corral/lib/process"
	"github.com/corral-robotics/corral/lib/version"
	"github.com/corral-robotics/corral/lib/watchdog"
	"github.com/corral-robotics/corral/remote"
	"github.com/corral-robotics/corral/supervise"
)

func main() {
	err := run()
	if err == nil {
		return
	}

	// A required node's exit code becomes the launcher's exit code.
	var required *supervise.RequiredExitError
	if errors.As(err, &required) {
		fmt.Fprintf(os.Stderr, "error: %v\n", required)
		os.Exit(required.Code)
	}
	process.Fatal(err)
}

// argFlags collects repeatable --arg name=value flags.
type argFlags map[string]string

func (a argFlags) String() string {
	pairs := make([]string, 0, len(a))
	for name, value := range a {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, ",")
}

func (a argFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	a[name] = value
	return nil
}

func run() error {
	var (
		descriptorPath string
		configPath     string
		inventoryPath  string
		runDir         string
		stateDir       string
		logDir         string
		showVersion    bool
	)
	args := argFlags{}

	flag.StringVar(&descriptorPath, "descriptor", "", "path to the launch descriptor XML (required)")
	flag.StringVar(&configPath, "config", "", "path to the launcher config file (default: $CORRAL_CONFIG)")
	flag.Var(args, "arg", "descriptor argument override as name=value (repeatable)")
	flag.StringVar(&inventoryPath, "machines", "", "path to the JSONC machine inventory (overrides config)")
	flag.StringVar(&runDir, "run-dir", "", "runtime directory for the control socket and run state (overrides config)")
	flag.StringVar(&stateDir, "state-dir", "", "directory for persistent launcher state (overrides config)")
	flag.StringVar(&logDir, "log-dir", "", "directory for per-node log files (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("corral-launcher %s\n", version.Info())
		return nil
	}
	if descriptorPath == "" {
		return fmt.Errorf("--descriptor is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath, inventoryPath, runDir, stateDir, logDir)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	desc, err := descriptor.ParseFile(descriptorPath, args)
	if err != nil {
		return err
	}
	logger.Info("descriptor loaded",
		"path", desc.Path,
		"nodes", len(desc.Nodes),
		"machines", len(desc.Machines))

	// Refuse to double-launch; clean up after an unclean exit.
	statePath := cfg.RunStatePath()
	previous, stale, err := watchdog.Check(statePath)
	if err != nil {
		return err
	}
	if stale {
		logger.Warn("removing state of uncleanly stopped launcher",
			"pid", previous.PID,
			"descriptor", previous.Descriptor)
		if err := watchdog.Clear(statePath); err != nil {
			return err
		}
		_ = os.Remove(previous.SocketPath)
	}

	launcherHash := hashSelf(logger)

	var inventory *remote.Inventory
	if cfg.Remote.Inventory != "" {
		inventory, err = remote.LoadInventory(cfg.Remote.Inventory)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	localRunner := &supervise.LocalRunner{}
	supervisor, err := supervise.New(supervise.Options{
		Descriptor: desc,
		Config:     cfg,
		Log:        logger,
		RunnerFor: func(machine descriptor.Machine) (supervise.Runner, error) {
			if machine.Local() {
				return localRunner, nil
			}
			return remote.NewRunner(machine, inventory, cfg, logger)
		},
		Output: func(node descriptor.Node) (io.Writer, io.Writer, func() error, error) {
			if node.Output == "screen" {
				return os.Stderr, os.Stderr, func() error { return nil }, nil
			}
			sink, err := nodelog.Open(cfg.Paths.Log, node.Name, nodelog.Options{})
			if err != nil {
				return nil, nil, nil, err
			}
			return sink, sink, sink.Close, nil
		},
	})
	if err != nil {
		return err
	}

	socketPath := cfg.SocketPath()
	listener, err := listenSocket(socketPath)
	if err != nil {
		return err
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	startedAt := time.Now()
	if err := watchdog.Write(statePath, watchdog.State{
		PID:        os.Getpid(),
		Descriptor: desc.Path,
		SocketPath: socketPath,
		StartedAt:  startedAt,
	}); err != nil {
		return err
	}
	defer func() {
		if err := watchdog.Clear(statePath); err != nil {
			logger.Error("clearing run state", "error", err)
		}
	}()

	launcher := &Launcher{
		supervisor: supervisor,
		descriptor: desc.Path,
		binaryHash: launcherHash,
		startedAt:  startedAt,
		shutdown:   cancel,
		logger:     logger,
	}
	go launcher.serve(ctx, listener)

	logger.Info("launch started",
		"descriptor", desc.Path,
		"socket", socketPath,
		"version", version.Info(),
		"binary_hash", launcherHash)

	err = supervisor.Run(ctx)
	logger.Info("launch ended")
	return err
}

// loadConfig resolves the launcher configuration: an explicit --config
// path, else $CORRAL_CONFIG, else built-in defaults. Flag overrides
// are applied before validation so a flag can satisfy (or break) a
// config requirement.
func loadConfig(path, inventoryPath, runDir, stateDir, logDir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv("CORRAL_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if inventoryPath != "" {
		cfg.Remote.Inventory = inventoryPath
	}
	if runDir != "" {
		cfg.Paths.Run = runDir
	}
	if stateDir != "" {
		cfg.Paths.State = stateDir
	}
	if logDir != "" {
		cfg.Paths.Log = logDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// hashSelf computes the launcher's own binary hash for status
// reporting. Failure is logged, not fatal.
func hashSelf(logger *slog.Logger) string {
	self, err := os.Executable()
	if err != nil {
		logger.Warn("locating own binary", "error", err)
		return ""
	}
	digest, err := binhash.HashFile(self)
	if err != nil {
		logger.Warn("hashing own binary", "error", err)
		return ""
	}
	return binhash.FormatDigest(digest)
}

// listenSocket binds the Unix control socket, replacing a leftover
// socket file from an unclean shutdown. Liveness was already settled
// by the run-state check.
func listenSocket(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o660); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return listener, nil
}
