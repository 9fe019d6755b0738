// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote executes nodes on other machines over SSH.
//
// A machine declaration in the launch descriptor names the host; the
// machine inventory (a JSONC file) supplies connection details the
// descriptor should not carry: login users, identity files, host key
// policy. The Runner implements supervise.Runner, so remote nodes get
// the same lifecycle handling as local ones.
//
// When the machine declares an env-loader, the remote command is
// wrapped as "<env-loader> <exec> <args...>" so the node starts with
// the machine's own environment rather than the bare SSH session's.
package remote
