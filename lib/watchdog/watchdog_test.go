// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "run-state.json")
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := statePath(t)
	want := State{
		PID:        424242,
		Descriptor: "/etc/corral/cashier.launch",
		SocketPath: "/run/corral/launcher.sock",
		StartedAt:  time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.PID != want.PID || got.Descriptor != want.Descriptor || got.SocketPath != want.SocketPath {
		t.Errorf("Read = %+v, want %+v", got, want)
	}
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, want.StartedAt)
	}
}

func TestWriteLeavesNoTemporaryFile(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	path := filepath.Join(directory, "run-state.json")
	if err := Write(path, State{PID: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "run-state.json" {
		t.Errorf("directory contents = %v, want only run-state.json", entries)
	}
}

func TestReadMissingWrapsNotExist(t *testing.T) {
	t.Parallel()

	_, err := Read(statePath(t))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read of missing file = %v, want os.ErrNotExist", err)
	}
}

func TestCheckNoFile(t *testing.T) {
	t.Parallel()

	_, unclean, err := Check(statePath(t))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if unclean {
		t.Error("Check with no file reported an unclean shutdown")
	}
}

func TestCheckDeadPID(t *testing.T) {
	t.Parallel()

	path := statePath(t)
	// PID beyond the default pid_max, so it cannot name a live process.
	if err := Write(path, State{PID: 1 << 30, Descriptor: "demo.launch"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, unclean, err := Check(path)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !unclean {
		t.Error("Check with a dead PID should report an unclean shutdown")
	}
	if state.Descriptor != "demo.launch" {
		t.Errorf("state = %+v", state)
	}
}

func TestCheckLivePID(t *testing.T) {
	t.Parallel()

	path := statePath(t)
	if err := Write(path, State{PID: os.Getpid()}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, _, err := Check(path)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Check with a live PID = %v, want ErrAlreadyRunning", err)
	}
}

func TestCheckCorruptFile(t *testing.T) {
	t.Parallel()

	path := statePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := Check(path)
	if err == nil {
		t.Error("Check with corrupt JSON should return an error")
	}
}

func TestClearIdempotent(t *testing.T) {
	t.Parallel()

	path := statePath(t)
	if err := Write(path, State{PID: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}
