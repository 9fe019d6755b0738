// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package nodelog captures node process output to per-node log files.
// Each node gets <log-dir>/<node>.log; when the active file exceeds
// the size limit it is rotated into an lz4-compressed archive named
// <node>.log.<unix-nanos>.lz4 and a fresh file is started. Old
// archives beyond the retention count are pruned.
//
// Sinks are safe for concurrent writes — a node's stdout and stderr
// pipes both feed the same sink.
package nodelog
