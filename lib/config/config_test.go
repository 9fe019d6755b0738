// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corral.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(writeConfig(t, "environment: development\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.Launcher.ShutdownGrace.Std() != 10*time.Second {
		t.Errorf("ShutdownGrace = %v, want 10s", cfg.Launcher.ShutdownGrace.Std())
	}
	if cfg.Remote.Port != 22 {
		t.Errorf("Remote.Port = %d, want 22", cfg.Remote.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFileDurationStrings(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(writeConfig(t, `
launcher:
  shutdown_grace: 5s
  respawn_delay: 250ms
  respawn_backoff_ceiling: 1m
  stable_run_threshold: 90s
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Launcher.ShutdownGrace.Std() != 5*time.Second {
		t.Errorf("ShutdownGrace = %v", cfg.Launcher.ShutdownGrace.Std())
	}
	if cfg.Launcher.RespawnDelay.Std() != 250*time.Millisecond {
		t.Errorf("RespawnDelay = %v", cfg.Launcher.RespawnDelay.Std())
	}
	if cfg.Launcher.RespawnBackoffCeiling.Std() != time.Minute {
		t.Errorf("RespawnBackoffCeiling = %v", cfg.Launcher.RespawnBackoffCeiling.Std())
	}
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(writeConfig(t, "launcher:\n  shutdown_grace: soon\n"))
	if err == nil {
		t.Fatal("expected an error for an unparseable duration")
	}
	if !strings.Contains(err.Error(), "soon") {
		t.Errorf("error %q should name the bad value", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(writeConfig(t, `
environment: staging
launcher:
  shutdown_grace: 5s
staging:
  launcher:
    shutdown_grace: 20s
  paths:
    root: /srv/corral
production:
  launcher:
    shutdown_grace: 2s
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Launcher.ShutdownGrace.Std() != 20*time.Second {
		t.Errorf("staging override not applied: ShutdownGrace = %v", cfg.Launcher.ShutdownGrace.Std())
	}
	if cfg.Paths.Root != "/srv/corral" {
		t.Errorf("Paths.Root = %q", cfg.Paths.Root)
	}
}

func TestProductionDefaultsRequireInventory(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if !cfg.Remote.RequireInventory {
		t.Error("production without an explicit override should require a machine inventory")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("production config with no inventory should fail validation")
	}
}

func TestVariableExpansion(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
paths:
  root: /data/corral
  log: ${CORRAL_ROOT}/log
  state: ${CORRAL_STATE_OVERRIDE:-/fallback/state}
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Log != "/data/corral/log" {
		t.Errorf("Paths.Log = %q", cfg.Paths.Log)
	}
	if cfg.Paths.State != "/fallback/state" {
		t.Errorf("Paths.State = %q", cfg.Paths.State)
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("CORRAL_CONFIG", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "CORRAL_CONFIG") {
		t.Errorf("Load without CORRAL_CONFIG = %v, want an error naming the variable", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Environment = "demo"
	cfg.Remote.Port = 0
	cfg.Launcher.ShutdownGrace = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"invalid environment", "remote.port", "shutdown_grace"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error %q missing %q", err, want)
		}
	}
}

func TestEnsurePathsAndBinaryPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg := Default()
	cfg.Paths = PathsConfig{
		Root:  root,
		Bin:   filepath.Join(root, "bin"),
		Run:   filepath.Join(root, "run"),
		State: filepath.Join(root, "state"),
		Log:   filepath.Join(root, "log"),
	}

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}

	// A binary placed in the hermetic bin dir resolves without PATH.
	binary := filepath.Join(cfg.Paths.Bin, "tracker_service")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	resolved, err := cfg.BinaryPath("tracker_service")
	if err != nil {
		t.Fatalf("BinaryPath: %v", err)
	}
	if resolved != binary {
		t.Errorf("BinaryPath = %q, want %q", resolved, binary)
	}

	if _, err := cfg.BinaryPath("no-such-node-binary-xyzzy"); err == nil {
		t.Error("expected an error for an unresolvable binary")
	}
}

func TestSocketAndRunStatePaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Paths.Run = "/run/corral"

	if got := cfg.SocketPath(); got != "/run/corral/launcher.sock" {
		t.Errorf("SocketPath = %q", got)
	}
	if got := cfg.RunStatePath(); got != "/run/corral/run-state.json" {
		t.Errorf("RunStatePath = %q", got)
	}
}
