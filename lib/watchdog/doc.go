// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog provides atomic run-state file operations for
// detecting unclean launcher shutdowns. The launcher writes a run
// state before starting any node and clears it on clean shutdown. On
// the next startup, Check reads the leftover state to distinguish
// three situations:
//
//  1. No file: the previous run shut down cleanly.
//  2. File present, recorded PID dead: the previous run crashed or was
//     killed. The caller should clean up stale sockets and report the
//     unclean shutdown before proceeding.
//  3. File present, recorded PID alive: another launcher instance is
//     already running against this run directory. The caller must
//     refuse to start.
//
// The run-state file is written atomically (write to temporary file,
// fsync, rename) so readers never see a partial or corrupt state.
package watchdog
