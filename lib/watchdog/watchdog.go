// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by Check when the run-state file names
// a process that is still alive.
var ErrAlreadyRunning = errors.New("launcher already running")

// State records the context of a launcher run. Written before the
// first node starts and read on the next startup to determine how the
// previous run ended.
type State struct {
	// PID is the launcher process ID that wrote the state.
	PID int `json:"pid"`

	// Descriptor is the absolute path of the launch descriptor the
	// run was started from. Used for diagnostics only.
	Descriptor string `json:"descriptor"`

	// SocketPath is the control socket the run was serving. After an
	// unclean shutdown the socket file is left behind; the next run
	// removes it.
	SocketPath string `json:"socket_path"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
}

// Write atomically writes a run-state file. The file is written to a
// temporary location in the same directory, fsynced for durability,
// and renamed into place. Readers never see a partial write.
//
// The file is created with mode 0600 (owner read/write only). The
// parent directory must already exist.
func Write(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	// Trailing newline for clean file content.
	data = append(data, '\n')

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary run-state file: %w", err)
	}

	// Write, sync, close — in that order. If any step fails, remove
	// the temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary run-state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary run-state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary run-state file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming run-state file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// between rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Read reads and parses a run-state file. When the file does not
// exist, the returned error wraps os.ErrNotExist (testable with
// errors.Is).
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing run-state file %s: %w", path, err)
	}
	return state, nil
}

// Check inspects a run-state file left by a previous run. Returns
// (zero, false, nil) when no file exists — the previous run shut down
// cleanly. Returns (state, true, nil) when a file exists and the
// recorded PID is no longer alive — the previous run ended uncleanly
// and the caller should clean up. Returns ErrAlreadyRunning when the
// recorded PID is still alive.
//
// Any other error (permission denied, corrupt JSON) is returned as-is
// so the caller can distinguish "no state" from "state unreadable."
func Check(path string) (State, bool, error) {
	state, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, err
	}

	if state.PID > 0 && pidAlive(state.PID) {
		return state, false, fmt.Errorf("%w: pid %d (started %s, descriptor %s)",
			ErrAlreadyRunning, state.PID, state.StartedAt.Format(time.RFC3339), state.Descriptor)
	}

	return state, true, nil
}

// Clear removes a run-state file. Idempotent: returns nil when the
// file does not exist.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing run-state file: %w", err)
	}
	return nil
}

// pidAlive reports whether a process with the given PID exists.
// Signal 0 performs the existence check without delivering anything;
// EPERM still means the process exists.
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
