// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervise runs the node processes of a resolved launch
// descriptor and keeps them in their declared state.
//
// Each enabled node gets its own lifecycle goroutine: start the
// process, wait for exit, and then either respawn it (with
// exponential backoff), terminate the whole launch (required nodes),
// or settle into the stopped state. Operators can stop and start
// individual nodes at runtime through the Supervisor.
//
// Process execution is abstracted behind the Runner interface so the
// same lifecycle logic drives local processes and SSH-executed remote
// ones.
package supervise
